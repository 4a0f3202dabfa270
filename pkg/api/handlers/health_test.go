package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthAlwaysOK(t *testing.T) {
	h := NewHealthHandler(map[string]HealthCheck{
		"broken": func(context.Context) error { return errors.New("down") },
	})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyAllChecksPass(t *testing.T) {
	h := NewHealthHandler(map[string]HealthCheck{
		"storage": func(context.Context) error { return nil },
		"cache":   func(context.Context) error { return nil },
	})

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Ready bool `json:"ready"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Ready)
}

func TestReadyReportsFailures(t *testing.T) {
	h := NewHealthHandler(map[string]HealthCheck{
		"storage": func(context.Context) error { return nil },
		"qdrant":  func(context.Context) error { return errors.New("connection refused") },
	})

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp struct {
		Ready    bool              `json:"ready"`
		Failures map[string]string `json:"failures"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Ready)
	assert.Contains(t, resp.Failures, "qdrant")
	assert.NotContains(t, resp.Failures, "storage")
}

func TestModelsList(t *testing.T) {
	h := NewModelsHandler(&fakeLLM{}, testLogger())

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/models", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Models  []map[string]any `json:"models"`
		Default string           `json:"default"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "test-model", resp.Default)
	require.Len(t, resp.Models, 1)
}
