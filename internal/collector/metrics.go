package collector

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks the counters exposed at the Collector's /metrics endpoint.
// Field names track the wire shape of the health/metrics JSON payload
// (events, retries, latency, rates, buffer, connections, config).
type Metrics struct {
	startedAt time.Time

	received atomic.Int64
	sent     atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64

	retriesQueued  atomic.Int64
	retriesSuccess atomic.Int64
	retriesDLQ     atomic.Int64

	tcpConnections atomic.Int64

	mu         sync.Mutex
	lastFlush  time.Time
	lastLatMS  int64
	latSamples int64
	latTotalMS int64
}

func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

func (m *Metrics) RecordReceived()     { m.received.Add(1) }
func (m *Metrics) RecordDropped()      { m.dropped.Add(1) }
func (m *Metrics) RecordRetryQueued()  { m.retriesQueued.Add(1) }
func (m *Metrics) RecordRetrySuccess() { m.retriesSuccess.Add(1) }
func (m *Metrics) RecordRetryDLQ()     { m.retriesDLQ.Add(1) }
func (m *Metrics) IncTCPConnections()  { m.tcpConnections.Add(1) }
func (m *Metrics) DecTCPConnections()  { m.tcpConnections.Add(-1) }

// RecordFlush records the outcome and latency of one flush attempt covering
// n events.
func (m *Metrics) RecordFlush(n int, ok bool, latency time.Duration) {
	if ok {
		m.sent.Add(int64(n))
	} else {
		m.failed.Add(int64(n))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFlush = time.Now()
	m.lastLatMS = latency.Milliseconds()
	m.latSamples++
	m.latTotalMS += latency.Milliseconds()
}

// Snapshot is the JSON-serializable metrics payload.
type Snapshot struct {
	UptimeMS    int64       `json:"uptime_ms"`
	UptimeHuman string      `json:"uptime_human"`
	Events      EventStats  `json:"events"`
	Retries     RetryStats  `json:"retries"`
	Latency     LatStats    `json:"latency"`
	Rates       RateStats   `json:"rates"`
	Buffer      BufferStats `json:"buffer"`
	Connections ConnStats   `json:"connections"`
	Config      ConfigStats `json:"config"`
}

type EventStats struct {
	Received int64 `json:"received"`
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
	Dropped  int64 `json:"dropped"`
	Pending  int64 `json:"pending"`
}

type RetryStats struct {
	Queued  int64 `json:"queued"`
	Success int64 `json:"success"`
	DLQ     int64 `json:"dlq"`
}

type LatStats struct {
	AvgMS  float64 `json:"avg_ms"`
	LastMS int64   `json:"last_ms"`
}

type RateStats struct {
	EventsPerSecond float64 `json:"events_per_second"`
	SuccessRate     float64 `json:"success_rate"`
}

type BufferStats struct {
	Size    int   `json:"size"`
	Max     int   `json:"max"`
	Dropped int64 `json:"dropped"`
}

type ConnStats struct {
	TCP int64 `json:"tcp"`
}

type ConfigStats struct {
	BatchSize       int   `json:"batch_size"`
	FlushIntervalMS int64 `json:"flush_interval_ms"`
	MaxRetries      int   `json:"max_retries"`
}

// Snapshot renders the current counters plus buffer/config context supplied
// by the caller (the Collector knows its own buffer and config).
func (m *Metrics) Snapshot(bufSize, bufMax int, cfg ConfigStats) Snapshot {
	uptime := time.Since(m.startedAt)

	m.mu.Lock()
	lastLatMS := m.lastLatMS
	avgLatMS := float64(0)
	if m.latSamples > 0 {
		avgLatMS = float64(m.latTotalMS) / float64(m.latSamples)
	}
	m.mu.Unlock()

	received := m.received.Load()
	sent := m.sent.Load()
	failed := m.failed.Load()
	dropped := m.dropped.Load()

	successRate := float64(0)
	if sent+failed > 0 {
		successRate = 100 * float64(sent) / float64(sent+failed)
	}
	eventsPerSec := float64(0)
	if uptime.Seconds() > 0 {
		eventsPerSec = float64(received) / uptime.Seconds()
	}

	return Snapshot{
		UptimeMS:    uptime.Milliseconds(),
		UptimeHuman: uptime.Round(time.Second).String(),
		Events: EventStats{
			Received: received,
			Sent:     sent,
			Failed:   failed,
			Dropped:  dropped,
			Pending:  int64(bufSize),
		},
		Retries: RetryStats{
			Queued:  m.retriesQueued.Load(),
			Success: m.retriesSuccess.Load(),
			DLQ:     m.retriesDLQ.Load(),
		},
		Latency: LatStats{AvgMS: avgLatMS, LastMS: lastLatMS},
		Rates:   RateStats{EventsPerSecond: eventsPerSec, SuccessRate: successRate},
		Buffer: BufferStats{
			Size:    bufSize,
			Max:     bufMax,
			Dropped: dropped,
		},
		Connections: ConnStats{TCP: m.tcpConnections.Load()},
		Config:      cfg,
	}
}
