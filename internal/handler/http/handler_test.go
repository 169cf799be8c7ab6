package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chetanraj-2002/real-coder-jam/internal/execclient"
	"github.com/chetanraj-2002/real-coder-jam/internal/state"
)

func TestHealthHandler_ReportsRoomCount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := state.NewRegistry()
	registry.Ensure("ABCDEF")
	registry.Ensure("GHIJKL")

	engine := gin.New()
	engine.GET("/", NewHealthHandler(registry).Status)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Message   string `json:"message"`
		Rooms     int    `json:"rooms"`
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Collaboration relay is running", body.Message)
	assert.Equal(t, 2, body.Rooms)
	_, err := time.Parse(time.RFC3339, body.Timestamp)
	assert.NoError(t, err)
}

type fakeRunner struct {
	lastReq execclient.Request
	result  *execclient.Result
	err     error
}

func (f *fakeRunner) Execute(_ context.Context, req execclient.Request) (*execclient.Result, error) {
	f.lastReq = req
	return f.result, f.err
}

func executeEngine(runner execclient.Runner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/execute", NewExecuteHandler(runner).Run)
	return engine
}

func TestExecuteHandler_PassesThroughResult(t *testing.T) {
	runner := &fakeRunner{result: &execclient.Result{Stdout: "hello\n", ExitCode: 0, Timing: 12.5}}
	engine := executeEngine(runner)

	body := `{"language":"python","version":"3.10","source":"print('hello')","stdin":"x"}`
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var result execclient.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "hello\n", result.Stdout)
	assert.Equal(t, 12.5, result.Timing)

	assert.Equal(t, execclient.Request{
		Language: "python",
		Version:  "3.10",
		Source:   "print('hello')",
		Stdin:    "x",
	}, runner.lastReq)
}

func TestExecuteHandler_RejectsIncompleteRequests(t *testing.T) {
	engine := executeEngine(&fakeRunner{})

	for name, body := range map[string]string{
		"missing source":   `{"language":"python"}`,
		"missing language": `{"source":"print(1)"}`,
		"not json":         `nope`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestExecuteHandler_RunnerFailureIsBadGateway(t *testing.T) {
	engine := executeEngine(&fakeRunner{err: errors.New("connection refused")})

	body := `{"language":"python","source":"print(1)"}`
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "execution service unavailable")
}
