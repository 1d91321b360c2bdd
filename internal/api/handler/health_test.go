package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/crewroster/internal/api/handler"
)

// mockPinger implements handler.StorePinger for testing.
type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error {
	return m.err
}

func serveHealth(t *testing.T, pinger handler.StorePinger) map[string]any {
	t.Helper()

	h := handler.NewHealthHandler(pinger, "0.1.0")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var env map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Nil(t, env["error"])
	assert.NotNil(t, env["meta"])
	return env["data"].(map[string]any)
}

func TestHealthHandler_Healthy(t *testing.T) {
	data := serveHealth(t, &mockPinger{})

	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, "0.1.0", data["version"])
	assert.Equal(t, true, data["store"].(map[string]any)["connected"])
}

func TestHealthHandler_Degraded(t *testing.T) {
	data := serveHealth(t, &mockPinger{err: errors.New("connection refused")})

	assert.Equal(t, "degraded", data["status"])
	assert.Equal(t, false, data["store"].(map[string]any)["connected"])
}

func TestHealthHandler_NoStore(t *testing.T) {
	data := serveHealth(t, nil)

	assert.Equal(t, "degraded", data["status"])
}
