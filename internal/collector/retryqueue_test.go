package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffAppliesJitterWithinTwentyPercent(t *testing.T) {
	q := NewRetryQueue(5, 200*time.Millisecond, 5*time.Second, noopDLQ{}, NewMetrics())

	base := 200 * time.Millisecond
	lower := time.Duration(float64(base) * 0.8)
	upper := time.Duration(float64(base) * 1.2)

	distinct := map[time.Duration]bool{}
	for i := 0; i < 50; i++ {
		d := q.backoff(1)
		require.GreaterOrEqual(t, d, lower)
		require.LessOrEqual(t, d, upper)
		distinct[d] = true
	}
	assert.Greater(t, len(distinct), 1, "jitter should vary the backoff across calls")
}

func TestBackoffCapsAtMaxDelay(t *testing.T) {
	q := NewRetryQueue(10, 100*time.Millisecond, 300*time.Millisecond, noopDLQ{}, NewMetrics())

	d := q.backoff(10)
	assert.LessOrEqual(t, d, time.Duration(float64(300*time.Millisecond)*1.2))
}

func TestDrainMovesExhaustedJobsToDLQ(t *testing.T) {
	metrics := NewMetrics()
	var written []BufferedEvent
	dlq := dlqFunc(func(ctx context.Context, reason string, events []BufferedEvent) error {
		written = append(written, events...)
		return nil
	})

	q := NewRetryQueue(1, time.Millisecond, time.Millisecond, dlq, metrics)
	q.Enqueue([]BufferedEvent{{RawMessage: "one"}})

	time.Sleep(5 * time.Millisecond)
	q.Drain(context.Background(), func(events []BufferedEvent) bool { return false })

	assert.Len(t, written, 1)
	assert.Equal(t, int64(1), metrics.retriesDLQ.Load())
	assert.Equal(t, 0, q.Len())
}

type dlqFunc func(ctx context.Context, reason string, events []BufferedEvent) error

func (f dlqFunc) Write(ctx context.Context, reason string, events []BufferedEvent) error {
	return f(ctx, reason, events)
}
