package state

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Projects tracks project-level membership: which user ids have joined
// each project scope. A project exists only while it has at least one
// member.
type Projects struct {
	mu      sync.Mutex
	members map[string]map[string]struct{}
}

// NewProjects returns an empty project table.
func NewProjects() *Projects {
	return &Projects{members: make(map[string]map[string]struct{})}
}

// Join adds the user to the project, creating the project on first join.
func (p *Projects) Join(projectID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	users, ok := p.members[projectID]
	if !ok {
		users = make(map[string]struct{})
		p.members[projectID] = users
		logrus.WithField("project_id", projectID).Info("Project scope created")
	}
	users[userID] = struct{}{}
}

// Leave removes the user and reports whether the project became empty
// (and was therefore deleted).
func (p *Projects) Leave(projectID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	users, ok := p.members[projectID]
	if !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(p.members, projectID)
		logrus.WithField("project_id", projectID).Info("Project scope deleted (no members)")
		return true
	}
	return false
}

// Members returns the project's member user ids, sorted for stable output.
func (p *Projects) Members(projectID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	users := make([]string, 0, len(p.members[projectID]))
	for id := range p.members[projectID] {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// Count returns the number of live projects.
func (p *Projects) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.members)
}
