package ingest

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToQueuedDerivesCollectorNameFromUserAgent(t *testing.T) {
	h := &Handler{}
	r := httptest.NewRequest(http.MethodPost, "/v1/ingest/syslog", nil)
	r.Header.Set("User-Agent", "vigilnet-collector/1.2.3")

	queued := h.toQueued("tenant-1", r, eventPayload{RawMessage: "raw line", SiteID: "site-a", SourceID: "fw-01"})

	assert.Equal(t, "tenant-1", queued.TenantID)
	assert.Equal(t, "site-a", queued.SiteID)
	assert.Equal(t, "fw-01", queued.SourceID)
	assert.Equal(t, "vigilnet-collector/1.2.3", queued.CollectorName)
	assert.Equal(t, "raw line", queued.RawMessage)
	assert.NotEmpty(t, queued.JobID)
}

func TestToQueuedAssignsDistinctJobIDs(t *testing.T) {
	h := &Handler{}
	r := httptest.NewRequest(http.MethodPost, "/v1/ingest/syslog", nil)

	a := h.toQueued("tenant-1", r, eventPayload{RawMessage: "raw line"})
	b := h.toQueued("tenant-1", r, eventPayload{RawMessage: "raw line"})

	assert.NotEqual(t, a.JobID, b.JobID)
}

func TestToQueuedDefaultsTransportToHTTP(t *testing.T) {
	h := &Handler{}
	r := httptest.NewRequest(http.MethodPost, "/v1/ingest/syslog", nil)

	queued := h.toQueued("tenant-1", r, eventPayload{RawMessage: "raw line"})

	assert.Equal(t, "http", queued.Transport)
}

func TestToQueuedHonorsExplicitReceivedAt(t *testing.T) {
	h := &Handler{}
	r := httptest.NewRequest(http.MethodPost, "/v1/ingest/syslog", nil)
	ts := time.Date(2026, 8, 6, 3, 0, 0, 0, time.UTC)

	queued := h.toQueued("tenant-1", r, eventPayload{RawMessage: "raw line", ReceivedAt: &ts})

	assert.True(t, queued.ReceivedAt.Equal(ts))
}

func TestToQueuedFallsBackToClientIP(t *testing.T) {
	h := &Handler{}
	r := httptest.NewRequest(http.MethodPost, "/v1/ingest/syslog", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.5")

	queued := h.toQueued("tenant-1", r, eventPayload{RawMessage: "raw line"})

	assert.Equal(t, "203.0.113.5", queued.SourceIP)
}

func TestToQueuedCarriesPayloadSHA256Header(t *testing.T) {
	h := &Handler{}
	r := httptest.NewRequest(http.MethodPost, "/v1/ingest/syslog", nil)
	r.Header.Set("x-payload-sha256", "deadbeef")

	queued := h.toQueued("tenant-1", r, eventPayload{RawMessage: "raw line"})

	assert.Equal(t, "deadbeef", queued.PayloadSHA256)
}
