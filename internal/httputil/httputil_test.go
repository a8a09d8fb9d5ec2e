package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOKWritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	OK(w, map[string]any{"raw_event_id": "abc"})

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "abc", body["raw_event_id"])
}

func TestAcceptedWritesStatus202(t *testing.T) {
	w := httptest.NewRecorder()
	Accepted(w, map[string]any{"queued": 5})

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestWriteErrorWritesOkFalse(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusUnauthorized, "invalid api key")

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "invalid api key", body["error"])
}

func TestWriteValidationErrorIncludesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteValidationError(w, []ValidationError{{Field: "raw_message", Reason: "required"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "raw_message")
	assert.Contains(t, w.Body.String(), "validation_failed")
}

func TestGetClientIPPrefersXForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	r.RemoteAddr = "192.168.1.1:12345"

	assert.Equal(t, "203.0.113.9", GetClientIP(r))
}

func TestGetClientIPFallsBackToXRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("X-Real-IP", "198.51.100.2")
	r.RemoteAddr = "192.168.1.1:12345"

	assert.Equal(t, "198.51.100.2", GetClientIP(r))
}

func TestGetClientIPFallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "192.168.1.1:12345"

	assert.Equal(t, "192.168.1.1:12345", GetClientIP(r))
}

func TestParseIntParam(t *testing.T) {
	assert.Equal(t, 10, ParseIntParam("", 10))
	assert.Equal(t, 25, ParseIntParam("25", 10))
	assert.Equal(t, 10, ParseIntParam("not-a-number", 10))
}
