package middleware

import (
	"fmt"
	"regexp"
)

// OriginPolicy is the browser-origin allow-list shared by the CORS
// middleware and the WebSocket upgrade check: a set of exact origins
// plus regex patterns for preview-deployment subdomains.
type OriginPolicy struct {
	exact    map[string]struct{}
	patterns []*regexp.Regexp
}

// NewOriginPolicy compiles the allow-list. Pattern compile errors are
// configuration mistakes and fail construction.
func NewOriginPolicy(origins []string, patterns []string) (*OriginPolicy, error) {
	p := &OriginPolicy{exact: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		if origin != "" {
			p.exact[origin] = struct{}{}
		}
	}
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid origin pattern %q: %w", pattern, err)
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

// Allowed reports whether the origin may connect. An empty origin
// (non-browser client) is allowed; origin checks only constrain
// browsers.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, re := range p.patterns {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}
