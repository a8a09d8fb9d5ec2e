package collector

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilnet/vigilnet/internal/logging"
)

type noopDLQ struct{}

func (noopDLQ) Write(ctx context.Context, reason string, events []BufferedEvent) error { return nil }

func newTestCollector(t *testing.T, maxBuffer int) *Collector {
	t.Helper()
	cfg := Config{
		MaxBufferSize: maxBuffer,
		BatchSize:     10,
		FlushInterval: time.Minute,
		MaxRetries:    2,
		RetryBaseMS:   10 * time.Millisecond,
		RetryMaxMS:    time.Second,
	}
	return New(cfg, noopDLQ{}, logging.New(slog.LevelError, "text"))
}

func TestReadyzReportsReadyWhenBelowThresholds(t *testing.T) {
	c := newTestCollector(t, 10)
	mux := HealthHandlers(c)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
	assert.Contains(t, body, "buffer_usage_percent")
	assert.Contains(t, body, "retries")
}

func TestReadyzReportsNotReadyOverBufferThreshold(t *testing.T) {
	c := newTestCollector(t, 10)
	for i := 0; i < 10; i++ {
		c.buffer.Push(BufferedEvent{RawMessage: "x"})
	}
	mux := HealthHandlers(c)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadyzReportsNotReadyOverDLQThreshold(t *testing.T) {
	c := newTestCollector(t, 10)
	for i := 0; i < 101; i++ {
		c.metrics.RecordRetryDLQ()
	}
	mux := HealthHandlers(c)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatusClassifiesHealthy(t *testing.T) {
	c := newTestCollector(t, 10)
	mux := HealthHandlers(c)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestStatusClassifiesUnhealthyOverBufferThreshold(t *testing.T) {
	c := newTestCollector(t, 10)
	for i := 0; i < 10; i++ {
		c.buffer.Push(BufferedEvent{RawMessage: "x"})
	}
	mux := HealthHandlers(c)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])
}

func TestStatusClassifiesDegradedOnHighBufferBelowUnhealthy(t *testing.T) {
	c := newTestCollector(t, 10)
	for i := 0; i < 8; i++ { // 80%, above degraded (75%) but below unready (90%)
		c.buffer.Push(BufferedEvent{RawMessage: "x"})
	}
	mux := HealthHandlers(c)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}
