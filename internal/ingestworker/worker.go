// Package ingestworker drains the ingest stream and persists each message
// as a RawEvent row, retrying transient storage failures before giving up.
package ingestworker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vigilnet/vigilnet/internal/logging"
	"github.com/vigilnet/vigilnet/internal/models"
	"github.com/vigilnet/vigilnet/internal/queue"
	"github.com/vigilnet/vigilnet/internal/store"
)

// queuedRawEvent mirrors ingest.QueuedRawEvent; kept as an unexported local
// type so this package has no compile-time dependency on the HTTP layer.
type queuedRawEvent struct {
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

const (
	maxAttempts    = 3
	retryBaseDelay = 1 * time.Second
)

// Worker pulls batches from the ingest stream with a bounded number of
// concurrent handlers.
type Worker struct {
	consumer    *queue.Consumer
	rawEvents   *store.RawEventRepository
	concurrency int
	log         *logging.Logger

	failedMu sync.Mutex
	failed   []queuedRawEvent
}

func New(consumer *queue.Consumer, rawEvents *store.RawEventRepository, concurrency int, log *logging.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Worker{consumer: consumer, rawEvents: rawEvents, concurrency: concurrency, log: log}
}

// Run pulls and processes messages until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		default:
		}

		batch, err := w.consumer.Fetch(w.concurrency, 2*time.Second)
		if err != nil {
			continue
		}

		for msg := range batch.Messages() {
			sem <- struct{}{}
			wg.Add(1)
			go func(m queue.Msg) {
				defer wg.Done()
				defer func() { <-sem }()
				w.handle(ctx, m)
			}(msg)
		}
		if err := batch.Error(); err != nil && err != ctx.Err() {
			w.log.Error("fetch batch error", "err", err)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg queue.Msg) {
	var ev queuedRawEvent
	if err := json.Unmarshal(msg.Data(), &ev); err != nil {
		w.log.Error("malformed queued raw event, dropping", "err", err)
		_ = msg.Ack()
		return
	}

	if err := w.persistWithRetry(ctx, ev); err != nil {
		w.log.Error("raw event persist exhausted retries", "err", err, "tenant_id", ev.TenantID)
		w.failedMu.Lock()
		w.failed = append(w.failed, ev)
		w.failedMu.Unlock()
	}
	_ = msg.Ack()
}

func (w *Worker) persistWithRetry(ctx context.Context, ev queuedRawEvent) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := w.persist(ctx, ev); err != nil {
			lastErr = err
			delay := time.Duration(float64(retryBaseDelay) * math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("persist raw event after %d attempts: %w", maxAttempts, lastErr)
}

func (w *Worker) persist(ctx context.Context, ev queuedRawEvent) error {
	raw := &models.RawEvent{
		ID:         uuid.New().String(),
		TenantID:   ev.TenantID,
		ReceivedAt: ev.ReceivedAt,
		Transport:  models.Transport(ev.Transport),
		RawMessage: ev.RawMessage,
	}
	if ev.SiteID != "" {
		raw.SiteID = &ev.SiteID
	}
	if ev.SourceID != "" {
		raw.SourceID = &ev.SourceID
	}
	if ev.SourceIP != "" {
		raw.SourceIP = &ev.SourceIP
	}
	if ev.CollectorName != "" {
		raw.CollectorName = &ev.CollectorName
	}
	if ev.PayloadSHA256 != "" {
		raw.PayloadSHA256 = &ev.PayloadSHA256
	}

	return w.rawEvents.Create(ctx, raw)
}

// FailedJobs returns the events that exhausted their retry budget since the
// last call, clearing the internal buffer.
func (w *Worker) FailedJobs() []queuedRawEvent {
	w.failedMu.Lock()
	defer w.failedMu.Unlock()
	out := w.failed
	w.failed = nil
	return out
}
