package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/config"
)

func TestHealthHandler_Health_NoChecks(t *testing.T) {
	handler := NewHealthHandler(&config.Config{}, nil, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var response HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
	assert.Nil(t, response.Checks)
}

func TestHealthHandler_Health_FailingCheck(t *testing.T) {
	checks := []HealthCheck{
		{Name: "database", Check: func(ctx context.Context) error { return nil }},
		{Name: "redis", Check: func(ctx context.Context) error { return errors.New("connection refused") }},
	}
	handler := NewHealthHandler(&config.Config{}, nil, checks, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var response HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "degraded", response.Status)
	assert.Equal(t, map[string]string{"database": "ok", "redis": "unavailable"}, response.Checks)
}

func TestHealthHandler_Ping(t *testing.T) {
	cfg := &config.Config{Version: "test-version", Env: "test"}
	components := map[string]string{"ocr": "tesseract", "meal_oracle": "classifier", "profiles": "memory"}
	handler := NewHealthHandler(cfg, components, nil, zap.NewNop())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var response PingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "test-version", response.Version)
	assert.Equal(t, "nutriscan-engine", response.Service)
	assert.Equal(t, runtime.Version(), response.GoVersion)
	assert.Equal(t, "test", response.Environment)
	assert.Equal(t, components, response.Components)
}
