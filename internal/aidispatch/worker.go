// Package aidispatch drains the AI dispatch queue: the pipeline scheduler
// enqueues high-severity detection IDs onto the AI dispatch stream during
// its tick, and a bounded worker pool here fans them out to the AI
// Orchestrator Client, mirroring the ingest worker's consumer shape.
package aidispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/vigilnet/vigilnet/internal/aiclient"
	"github.com/vigilnet/vigilnet/internal/logging"
	"github.com/vigilnet/vigilnet/internal/queue"
	"github.com/vigilnet/vigilnet/internal/store"
)

// Message is the payload published to the AI dispatch stream.
type Message struct {
	DetectionID string `json:"detection_id"`
}

// Worker pulls detection IDs from the AI dispatch stream with a bounded
// number of concurrent handlers.
type Worker struct {
	consumer    *queue.Consumer
	detections  *store.DetectionRepository
	aiclient    *aiclient.Client
	concurrency int
	log         *logging.Logger
}

func New(consumer *queue.Consumer, detections *store.DetectionRepository, ai *aiclient.Client, concurrency int, log *logging.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Worker{consumer: consumer, detections: detections, aiclient: ai, concurrency: concurrency, log: log}
}

// Run pulls and dispatches messages until ctx is cancelled.
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
			w.log.Error("ai dispatch fetch batch error", "err", err)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg queue.Msg) {
	var m Message
	if err := json.Unmarshal(msg.Data(), &m); err != nil {
		w.log.Error("malformed ai dispatch message, dropping", "err", err)
		_ = msg.Ack()
		return
	}

	d, err := w.detections.GetByID(ctx, m.DetectionID)
	if err != nil {
		w.log.Error("ai dispatch detection lookup failed", "err", err, "detection_id", m.DetectionID)
		_ = msg.Ack()
		return
	}

	if err := w.aiclient.Dispatch(ctx, d); err != nil {
		w.log.Error("ai dispatch failed", "detection_id", d.ID, "err", err)
	}
	_ = msg.Ack()
}
