package execclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ExecuteMapsRunStage(t *testing.T) {
	var received pistonRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(pistonResponse{
			Run: &pistonStage{Stdout: "42\n", Code: 0, Time: 17.2},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	result, err := client.Execute(context.Background(), Request{
		Language: "python",
		Version:  "3.10",
		Source:   "print(42)",
		Stdin:    "in",
	})
	require.NoError(t, err)

	assert.Equal(t, &Result{Stdout: "42\n", ExitCode: 0, Timing: 17.2}, result)

	assert.Equal(t, "python", received.Language)
	assert.Equal(t, "3.10", received.Version)
	require.Len(t, received.Files, 1)
	assert.Equal(t, pistonFile{Name: "main", Content: "print(42)"}, received.Files[0])
	assert.Equal(t, "in", received.Stdin)
	assert.Equal(t, 10000, received.CompileTimeout)
	assert.Equal(t, 3000, received.RunTimeout)
}

func TestClient_CompileFailureWinsOverRunStage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(pistonResponse{
			Compile: &pistonStage{Stderr: "main.c:1: error", Code: 1, Time: 3.1},
			Run:     &pistonStage{Stdout: "stale", Code: 0},
		})
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL).Execute(context.Background(), Request{Language: "c", Source: "x"})
	require.NoError(t, err)

	assert.Equal(t, "main.c:1: error", result.Stderr)
	assert.Equal(t, 1, result.ExitCode)
	assert.Empty(t, result.Stdout, "compile failure must not surface run output")
}

func TestClient_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(pistonResponse{Message: "rate limited"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Execute(context.Background(), Request{Language: "python", Source: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestClient_MissingRunStageIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(pistonResponse{})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Execute(context.Background(), Request{Language: "python", Source: "x"})
	assert.Error(t, err)
}

func TestNewClient_EmptyURLFallsBackToDefault(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, NewClient("").baseURL)
}
