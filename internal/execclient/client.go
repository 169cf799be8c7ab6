package execclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultBaseURL is the public Piston-compatible execution endpoint.
const DefaultBaseURL = "https://emkc.org/api/v2/piston/execute"

// Request describes one execution: language, optional runtime version,
// the source to run, and stdin to feed it.
type Request struct {
	Language string
	Version  string
	Source   string
	Stdin    string
}

// Result is what the relay reports back to callers.
type Result struct {
	Stdout   string  `json:"stdout"`
	Stderr   string  `json:"stderr"`
	ExitCode int     `json:"exitCode"`
	Timing   float64 `json:"timing"`
}

// Runner executes source remotely. The sandbox is an external service;
// implementations are thin adapters over its wire contract.
type Runner interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}

// Client talks to a Piston-style execution API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the given endpoint. An empty baseURL
// falls back to the public instance.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type pistonFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type pistonRequest struct {
	Language       string       `json:"language"`
	Version        string       `json:"version"`
	Files          []pistonFile `json:"files"`
	Stdin          string       `json:"stdin"`
	CompileTimeout int          `json:"compile_timeout"`
	RunTimeout     int          `json:"run_timeout"`
}

type pistonStage struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Code   int     `json:"code"`
	Time   float64 `json:"time"`
}

type pistonResponse struct {
	Run     *pistonStage `json:"run"`
	Compile *pistonStage `json:"compile"`
	Message string       `json:"message"`
}

// Execute submits the source and maps the runner's response. A failed
// compile stage wins over the run stage, mirroring how the editor
// surfaces errors.
func (c *Client) Execute(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(pistonRequest{
		Language:       req.Language,
		Version:        req.Version,
		Files:          []pistonFile{{Name: "main", Content: req.Source}},
		Stdin:          req.Stdin,
		CompileTimeout: 10000,
		RunTimeout:     3000,
	})
	if err != nil {
		return nil, fmt.Errorf("encode execution request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build execution request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call execution service: %w", err)
	}
	defer resp.Body.Close()

	var decoded pistonResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode execution response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		logrus.WithFields(logrus.Fields{
			"status":  resp.StatusCode,
			"message": decoded.Message,
		}).Warn("Execution service rejected request")
		return nil, fmt.Errorf("execution service returned status %d", resp.StatusCode)
	}

	if decoded.Compile != nil && decoded.Compile.Code != 0 {
		return &Result{
			Stdout:   decoded.Compile.Stdout,
			Stderr:   decoded.Compile.Stderr,
			ExitCode: decoded.Compile.Code,
			Timing:   decoded.Compile.Time,
		}, nil
	}
	if decoded.Run == nil {
		return nil, fmt.Errorf("execution response carries no run stage")
	}
	return &Result{
		Stdout:   decoded.Run.Stdout,
		Stderr:   decoded.Run.Stderr,
		ExitCode: decoded.Run.Code,
		Timing:   decoded.Run.Time,
	}, nil
}
