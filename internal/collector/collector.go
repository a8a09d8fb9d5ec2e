// Package collector implements the edge syslog Collector: UDP/TCP intake,
// a bounded in-memory buffer, batched forwarding to the cloud ingest API
// with retry-and-DLQ on failure, and health/metrics endpoints.
package collector

import (
	"context"
	"sync"
	"time"

	"github.com/vigilnet/vigilnet/internal/logging"
)

// Config configures one Collector instance.
type Config struct {
	Name           string
	Version        string
	SiteID         string
	UDPAddr        string
	TCPAddr        string
	HealthAddr     string
	BulkURL        string
	SingleURL      string
	APIKey         string
	BatchSize      int
	FlushInterval  time.Duration
	MaxBufferSize  int
	MaxRetries     int
	RetryBaseMS    time.Duration
	RetryMaxMS     time.Duration
	RequestTimeout time.Duration
}

// Collector wires together the buffer, forwarder, retry queue and listeners
// for one edge collector process, following the same flush-loop/ticker/
// context-cancellation shape used elsewhere for periodic background work.
type Collector struct {
	cfg Config
	log *logging.Logger

	buffer    *Buffer
	forwarder *Forwarder
	retries   *RetryQueue
	metrics   *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, dlq DLQWriter, log *logging.Logger) *Collector {
	metrics := NewMetrics()
	ctx, cancel := context.WithCancel(context.Background())

	return &Collector{
		cfg:       cfg,
		log:       log,
		buffer:    NewBuffer(cfg.MaxBufferSize),
		forwarder: NewForwarder(cfg.BulkURL, cfg.SingleURL, cfg.APIKey, cfg.Name, cfg.SiteID, cfg.Version, cfg.RequestTimeout),
		retries:   NewRetryQueue(cfg.MaxRetries, cfg.RetryBaseMS, cfg.RetryMaxMS, dlq, metrics),
		metrics:   metrics,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the UDP/TCP listeners and the flush loop. It returns
// immediately; call Stop to shut everything down.
func (c *Collector) Start() {
	udp := NewUDPServer(c.cfg.UDPAddr, c.buffer, c.metrics, c.log)
	tcp := NewTCPServer(c.cfg.TCPAddr, c.buffer, c.metrics, c.log)

	stopCh := make(chan struct{})
	go func() {
		<-c.ctx.Done()
		close(stopCh)
	}()

	c.wg.Add(3)
	go func() { defer c.wg.Done(); c.runListener("udp", func() error { return udp.Serve(stopCh) }) }()
	go func() { defer c.wg.Done(); c.runListener("tcp", func() error { return tcp.Serve(stopCh) }) }()
	go func() { defer c.wg.Done(); c.flushLoop() }()
}

func (c *Collector) runListener(name string, serve func() error) {
	if err := serve(); err != nil {
		c.log.Error("listener exited", "listener", name, "err", err)
	}
}

// flushLoop periodically pops full batches off the buffer and forwards
// them, and drains the retry queue each tick too.
func (c *Collector) flushLoop() {
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.flushOnce()
			return
		case <-ticker.C:
			c.flushOnce()
		}
	}
}

func (c *Collector) flushOnce() {
	batch := c.buffer.PopBatch(c.cfg.BatchSize)
	if len(batch) > 0 {
		start := time.Now()
		failed, retryable := c.forwarder.FlushBatch(c.ctx, batch)
		c.metrics.RecordFlush(len(batch)-len(failed), true, time.Since(start))
		if len(failed) > 0 {
			c.metrics.RecordFlush(len(failed), false, time.Since(start))
			if retryable {
				c.retries.Enqueue(failed)
			}
		}
	}

	c.retries.Drain(c.ctx, func(events []BufferedEvent) bool {
		failed, _ := c.forwarder.FlushBatch(c.ctx, events)
		return len(failed) == 0
	})
}

// Snapshot returns the current metrics, annotated with live buffer state.
func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot(c.buffer.Len(), c.cfg.MaxBufferSize, ConfigStats{
		BatchSize:       c.cfg.BatchSize,
		FlushIntervalMS: c.cfg.FlushInterval.Milliseconds(),
		MaxRetries:      c.cfg.MaxRetries,
	})
}

// BufferUsagePercent reports current buffer occupancy, used by the
// readiness probe to shed load before the buffer is completely full.
func (c *Collector) BufferUsagePercent() float64 {
	return c.buffer.UsagePercent()
}

// DLQSize reports the number of events that have exhausted their retry
// budget and moved to the dead-letter sink, used by the readiness probe.
func (c *Collector) DLQSize() int64 {
	return c.metrics.retriesDLQ.Load()
}

// Stop cancels all background work and waits for it to exit.
func (c *Collector) Stop() {
	c.cancel()
	c.wg.Wait()
}
