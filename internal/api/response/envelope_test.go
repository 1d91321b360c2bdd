package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/crewroster/internal/api/response"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestNewMeta_GeneratesUUID(t *testing.T) {
	meta := response.NewMeta("")

	_, err := uuid.Parse(meta.RequestID)
	assert.NoError(t, err, "requestId should be a valid UUID")
}

func TestNewMeta_UsesProvidedRequestID(t *testing.T) {
	meta := response.NewMeta("my-custom-request-id")

	assert.Equal(t, "my-custom-request-id", meta.RequestID)
}

func TestNewMeta_TimestampIsRFC3339(t *testing.T) {
	before := time.Now().UTC().Add(-1 * time.Second)

	meta := response.NewMeta("")

	parsed, err := time.Parse(time.RFC3339, meta.Timestamp)
	require.NoError(t, err)
	assert.False(t, parsed.Before(before), "timestamp should be recent")
	assert.True(t, parsed.Before(time.Now().UTC().Add(time.Second)), "timestamp should not be in the future")
}

func TestSuccess_WritesCorrectEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	response.Success(w, http.StatusOK, map[string]string{"key": "value"}, "test-req-id")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	env := decode(t, w)
	assert.Equal(t, map[string]any{"key": "value"}, env["data"])
	assert.Nil(t, env["error"])

	meta := env["meta"].(map[string]any)
	assert.Equal(t, "test-req-id", meta["requestId"])
	assert.NotEmpty(t, meta["timestamp"])
	assert.NotContains(t, meta, "warning", "warning is omitted when empty")
}

func TestSuccessWithWarning(t *testing.T) {
	w := httptest.NewRecorder()

	response.SuccessWithWarning(w, http.StatusCreated, "saved", "email not sent", "req-1")

	assert.Equal(t, http.StatusCreated, w.Code)
	env := decode(t, w)
	assert.Equal(t, "saved", env["data"])
	assert.Equal(t, "email not sent", env["meta"].(map[string]any)["warning"])
}

func TestSuccessList_IncludesTotal(t *testing.T) {
	w := httptest.NewRecorder()

	response.SuccessList(w, http.StatusOK, []string{"a", "b"}, 2, "req-2")

	env := decode(t, w)
	assert.Len(t, env["data"], 2)
	meta := env["meta"].(map[string]any)
	assert.Equal(t, float64(2), meta["total"])
	assert.Equal(t, "req-2", meta["requestId"])
}

func TestErr_WritesErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	response.Err(w, http.StatusNotFound, "NOT_FOUND", "Invitation not found.", "req-3")

	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decode(t, w)
	assert.Nil(t, env["data"])

	errObj := env["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errObj["code"])
	assert.Equal(t, "Invitation not found.", errObj["message"])
	assert.NotContains(t, errObj, "details")
}

func TestErrWithDetails_IncludesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	details := []map[string]string{{"field": "email", "message": "email is required"}}

	response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", details, "req-4")

	env := decode(t, w)
	errObj := env["error"].(map[string]any)
	got := errObj["details"].([]any)
	require.Len(t, got, 1)
	assert.Equal(t, "email", got[0].(map[string]any)["field"])
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()

	response.NoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())
}
