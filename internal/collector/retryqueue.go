package collector

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// DLQWriter persists events that exhausted their retry budget. The NATS
// JetStream-backed implementation mirrors the dlq mirror queue described in
// the domain stack; tests can swap in an in-memory stub.
type DLQWriter interface {
	Write(ctx context.Context, reason string, events []BufferedEvent) error
}

// retryJob is one batch of events awaiting redelivery.
type retryJob struct {
	events    []BufferedEvent
	attempt   int
	notBefore time.Time
}

// RetryQueue holds batches that failed their first flush attempt, redriving
// them with exponential backoff and jitter, and routing exhausted batches to
// a dead-letter sink.
type RetryQueue struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration

	mu   sync.Mutex
	jobs []*retryJob

	dlq     DLQWriter
	metrics *Metrics

	running sync.Mutex // guards against overlapping drain passes
}

func NewRetryQueue(maxRetries int, baseDelay, maxDelay time.Duration, dlq DLQWriter, metrics *Metrics) *RetryQueue {
	return &RetryQueue{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		dlq:        dlq,
		metrics:    metrics,
	}
}

// Enqueue adds a failed batch for retry at attempt 1.
func (q *RetryQueue) Enqueue(events []BufferedEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, &retryJob{
		events:    events,
		attempt:   1,
		notBefore: time.Now().Add(q.backoff(1)),
	})
	q.metrics.RecordRetryQueued()
}

// backoff computes baseDelay*2^(attempt-1) capped at maxDelay, with up to 20%
// jitter either side.
func (q *RetryQueue) backoff(attempt int) time.Duration {
	d := q.baseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > q.maxDelay {
			d = q.maxDelay
			break
		}
	}
	jitter := time.Duration((rand.Float64()*0.4 - 0.2) * float64(d))
	out := d + jitter
	if out < 0 {
		out = q.baseDelay
	}
	return out
}

// Drain redrives every job whose backoff has elapsed, calling send for each.
// send returns true on success. Jobs that exhaust maxRetries are written to
// the DLQ. Reentrant calls are no-ops — only one drain pass runs at a time.
func (q *RetryQueue) Drain(ctx context.Context, send func([]BufferedEvent) bool) {
	if !q.running.TryLock() {
		return
	}
	defer q.running.Unlock()

	now := time.Now()

	q.mu.Lock()
	due := q.jobs[:0:0]
	remaining := make([]*retryJob, 0, len(q.jobs))
	for _, j := range q.jobs {
		if !j.notBefore.After(now) {
			due = append(due, j)
		} else {
			remaining = append(remaining, j)
		}
	}
	q.jobs = remaining
	q.mu.Unlock()

	for _, j := range due {
		if send(j.events) {
			q.metrics.RecordRetrySuccess()
			continue
		}

		if j.attempt >= q.maxRetries {
			for range j.events {
				q.metrics.RecordRetryDLQ()
			}
			if q.dlq != nil {
				_ = q.dlq.Write(ctx, "max_retries_exceeded", j.events)
			}
			continue
		}

		j.attempt++
		j.notBefore = time.Now().Add(q.backoff(j.attempt))
		q.mu.Lock()
		q.jobs = append(q.jobs, j)
		q.mu.Unlock()
		q.metrics.RecordRetryQueued()
	}
}

// Len reports the number of jobs currently awaiting redelivery.
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
