package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vigilnet/vigilnet/internal/httputil"
	"github.com/vigilnet/vigilnet/internal/logging"
	"github.com/vigilnet/vigilnet/internal/models"
	"github.com/vigilnet/vigilnet/internal/queue"
)

// eventPayload is the wire shape of one syslog event posted by a Collector,
// mirroring collector.eventPayload.
type eventPayload struct {
	RawMessage string     `json:"raw_message"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
	SourceIP   string     `json:"source_ip,omitempty"`
	Transport  string     `json:"transport,omitempty"`
	SiteID     string     `json:"site_id,omitempty"`
	SourceID   string     `json:"source_id,omitempty"`
}

type bulkPayload struct {
	Events []eventPayload `json:"events"`
}

// QueuedRawEvent is the message published to the ingest stream for the
// Ingest Worker to persist as a RawEvent row.
type QueuedRawEvent struct {
	JobID         string    `json:"job_id"`
	TenantID      string    `json:"tenant_id"`
	SiteID        string    `json:"site_id,omitempty"`
	SourceID      string    `json:"source_id,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
	SourceIP      string    `json:"source_ip,omitempty"`
	Transport     string    `json:"transport"`
	RawMessage    string    `json:"raw_message"`
	CollectorName string    `json:"collector_name,omitempty"`
	PayloadSHA256 string    `json:"payload_sha256,omitempty"`
}

const maxBodyBytes = 256 * 1024

const (
	minBulkEvents = 1
	maxBulkEvents = 100
)

// Handler wires the auth gate, rate limiter and queue publisher together
// behind the ingest HTTP surface.
type Handler struct {
	auth       *AuthGate
	limiter    *RateLimiter
	tierLookup func(tenantID string) (planTier string)
	tierBudget func(planTier string) (limit, windowSeconds int)
	queue      *queue.Client
	log        *logging.Logger
}

func NewHandler(auth *AuthGate, limiter *RateLimiter, tierLookup func(string) string, tierBudget func(string) (int, int), q *queue.Client, log *logging.Logger) *Handler {
	return &Handler{auth: auth, limiter: limiter, tierLookup: tierLookup, tierBudget: tierBudget, queue: q, log: log}
}

// Syslog handles POST /v1/ingest/syslog — a single event.
func (h *Handler) Syslog(w http.ResponseWriter, r *http.Request) {
	key, tenantID, ok := h.gate(w, r)
	if !ok {
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var ev eventPayload
	if err := json.Unmarshal(body, &ev); err != nil || ev.RawMessage == "" {
		eventsTotal.WithLabelValues("syslog", "rejected").Inc()
		httputil.WriteValidationError(w, []httputil.ValidationError{{Field: "raw_message", Reason: "required"}})
		return
	}

	queued := h.toQueued(tenantID, r, ev)
	start := time.Now()
	if err := h.publish(r.Context(), queued); err != nil {
		eventsTotal.WithLabelValues("syslog", "error").Inc()
		httputil.WriteError(w, http.StatusInternalServerError, "queue unavailable")
		return
	}
	enqueueDuration.Observe(time.Since(start).Seconds())

	eventsTotal.WithLabelValues("syslog", "accepted").Inc()
	_ = key
	httputil.Accepted(w, map[string]any{"accepted": true, "job_id": queued.JobID})
}

// SyslogBulk handles POST /v1/ingest/syslog/bulk. Any single malformed
// event rejects the entire batch rather than partially accepting it, so a
// caller never has to reconcile which events landed.
func (h *Handler) SyslogBulk(w http.ResponseWriter, r *http.Request) {
	key, tenantID, ok := h.gate(w, r)
	if !ok {
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var batch bulkPayload
	if err := json.Unmarshal(body, &batch); err != nil {
		httputil.WriteValidationError(w, []httputil.ValidationError{{Field: "events", Reason: "invalid json"}})
		return
	}

	if len(batch.Events) < minBulkEvents || len(batch.Events) > maxBulkEvents {
		eventsTotal.WithLabelValues("syslog_bulk", "rejected").Inc()
		httputil.WriteValidationError(w, []httputil.ValidationError{
			{Field: "events", Reason: fmt.Sprintf("must contain between %d and %d events", minBulkEvents, maxBulkEvents)},
		})
		return
	}

	var details []httputil.ValidationError
	for i, ev := range batch.Events {
		if ev.RawMessage == "" {
			details = append(details, httputil.ValidationError{Field: "events", Reason: fmt.Sprintf("raw_message required at index %d", i)})
		}
	}
	if len(details) > 0 {
		eventsTotal.WithLabelValues("syslog_bulk", "rejected").Inc()
		httputil.WriteValidationError(w, details)
		return
	}

	jobIDs := make([]string, 0, len(batch.Events))
	start := time.Now()
	for _, ev := range batch.Events {
		queued := h.toQueued(tenantID, r, ev)
		if err := h.publish(r.Context(), queued); err != nil {
			eventsTotal.WithLabelValues("syslog_bulk", "error").Inc()
			httputil.WriteError(w, http.StatusInternalServerError, "queue unavailable")
			return
		}
		jobIDs = append(jobIDs, queued.JobID)
	}
	enqueueDuration.Observe(time.Since(start).Seconds())

	eventsTotal.WithLabelValues("syslog_bulk", "accepted").Inc()
	_ = key
	httputil.Accepted(w, map[string]any{"accepted": len(batch.Events), "job_ids": jobIDs})
}

// gate runs the auth and rate-limit checks shared by both endpoints.
func (h *Handler) gate(w http.ResponseWriter, r *http.Request) (key *models.APIKey, tenantID string, ok bool) {
	key, err := h.auth.Authenticate(r)
	if err != nil {
		authFailuresTotal.Inc()
		httputil.WriteError(w, http.StatusUnauthorized, "invalid or missing credentials")
		return nil, "", false
	}

	tier := h.tierLookup(key.TenantID)
	limit, window := h.tierBudget(tier)
	res, err := h.limiter.Allow(r.Context(), key.TenantID, limit, window)
	if err != nil {
		h.log.Error("rate limiter error", "err", err)
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	w.Header().Set("X-RateLimit-Tier", tier)

	if !res.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return nil, "", false
	}

	return key, key.TenantID, true
}

func (h *Handler) toQueued(tenantID string, r *http.Request, ev eventPayload) QueuedRawEvent {
	receivedAt := time.Now().UTC()
	if ev.ReceivedAt != nil {
		receivedAt = *ev.ReceivedAt
	}
	transport := ev.Transport
	if transport == "" {
		transport = string(models.TransportHTTP)
	}
	sourceIP := ev.SourceIP
	if sourceIP == "" {
		sourceIP = httputil.GetClientIP(r)
	}

	collectorName := r.Header.Get("User-Agent")

	return QueuedRawEvent{
		JobID:         uuid.New().String(),
		TenantID:      tenantID,
		SiteID:        ev.SiteID,
		SourceID:      ev.SourceID,
		ReceivedAt:    receivedAt,
		SourceIP:      sourceIP,
		Transport:     transport,
		RawMessage:    ev.RawMessage,
		CollectorName: collectorName,
		PayloadSHA256: r.Header.Get("x-payload-sha256"),
	}
}

func (h *Handler) publish(ctx context.Context, ev QueuedRawEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = h.queue.PublishSync(ctx, "ingest.events", data)
	return err
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return io.ReadAll(r.Body)
}
