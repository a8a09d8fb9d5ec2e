// Package scheduler runs the pipeline's recurring tick: normalize,
// detect, dispatch high-severity detections to AI, batch into digests,
// and send. Two ticks never run concurrently across backend instances,
// enforced by a shared lease.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/vigilnet/vigilnet/internal/aidispatch"
	"github.com/vigilnet/vigilnet/internal/batcher"
	"github.com/vigilnet/vigilnet/internal/email"
	"github.com/vigilnet/vigilnet/internal/lease"
	"github.com/vigilnet/vigilnet/internal/logging"
	"github.com/vigilnet/vigilnet/internal/normalizer"
	"github.com/vigilnet/vigilnet/internal/queue"
	"github.com/vigilnet/vigilnet/internal/rules"
	"github.com/vigilnet/vigilnet/internal/store"
)

// Config is the set of knobs the tick needs, independent of how they're
// sourced (env, flags, tests).
type Config struct {
	TickInterval       time.Duration
	NormalizeBatchSize int
	LeaseTTL           time.Duration
}

type Scheduler struct {
	cfg Config

	lease      *lease.Manager
	holderID   string
	normalizer *normalizer.Normalizer
	rules      *rules.Engine
	detections *store.DetectionRepository
	queue      *queue.Client
	batcher    *batcher.Batcher
	dispatcher *email.Dispatcher
	log        *logging.Logger
}

// New wires a Scheduler. AI dispatch is handed off asynchronously: the
// tick enqueues detection IDs onto the AI dispatch stream rather than
// calling the AI Orchestrator Client in-line, so a slow orchestrator
// response never stalls the next stage of the tick. See aidispatch.Worker
// for the consumer side.
func New(cfg Config, leaseMgr *lease.Manager, norm *normalizer.Normalizer, rulesEngine *rules.Engine,
	detections *store.DetectionRepository, q *queue.Client,
	b *batcher.Batcher, dispatcher *email.Dispatcher, log *logging.Logger) *Scheduler {
	hostname, _ := os.Hostname()
	return &Scheduler{
		cfg:        cfg,
		lease:      leaseMgr,
		holderID:   fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		normalizer: norm,
		rules:      rulesEngine,
		detections: detections,
		queue:      q,
		batcher:    b,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Run blocks, firing Tick on cfg.TickInterval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one pass of Normalize → Detect → Enqueue-AI → Batch → Send,
// skipping entirely if another instance already holds the lease.
func (s *Scheduler) Tick(ctx context.Context) {
	acquired, err := s.lease.TryAcquire(ctx, s.holderID, s.cfg.LeaseTTL)
	if err != nil {
		s.log.Error("pipeline lease acquire failed", "err", err)
		return
	}
	if !acquired {
		s.log.Debug("pipeline tick skipped, lease held elsewhere")
		return
	}
	defer func() {
		if err := s.lease.Release(ctx, s.holderID); err != nil {
			s.log.Error("pipeline lease release failed", "err", err)
		}
	}()

	s.runStage(ctx, "normalize", func() error {
		n, err := s.normalizer.NormalizeBatch(ctx, s.cfg.NormalizeBatchSize)
		s.log.Info("normalize stage done", "count", n)
		return err
	})

	s.runStage(ctx, "detect", func() error {
		n, err := s.rules.EvaluateAll(ctx)
		s.log.Info("detect stage done", "detections", n)
		return err
	})

	s.runStage(ctx, "enqueue_ai", func() error {
		return s.enqueueAI(ctx)
	})

	s.runStage(ctx, "batch", func() error {
		n, err := s.batcher.RunAll(ctx)
		s.log.Info("batch stage done", "digests", n)
		return err
	})

	s.runStage(ctx, "send", func() error {
		n, err := s.dispatcher.RunAll(ctx)
		s.log.Info("send stage done", "sent", n)
		return err
	})
}

// runStage isolates one stage's error so it aborts only itself; the next
// stage in this tick, and every stage on the next tick, still runs.
func (s *Scheduler) runStage(ctx context.Context, name string, fn func() error) {
	if err := fn(); err != nil {
		s.log.Error("pipeline stage failed", "stage", name, "err", err)
	}
}

func (s *Scheduler) enqueueAI(ctx context.Context) error {
	awaiting, err := s.detections.ListHighSeverityAwaitingAI(ctx)
	if err != nil {
		return fmt.Errorf("list detections awaiting ai: %w", err)
	}

	for _, d := range awaiting {
		data, err := json.Marshal(aidispatch.Message{DetectionID: d.ID})
		if err != nil {
			s.log.Error("ai dispatch marshal failed", "detection_id", d.ID, "err", err)
			continue
		}
		if _, err := s.queue.PublishSync(ctx, "ai.dispatch", data); err != nil {
			s.log.Error("ai dispatch enqueue failed", "detection_id", d.ID, "err", err)
			continue
		}
	}
	return nil
}
