// Command pipeline runs the recurring Normalize → Detect → Enqueue-AI →
// Batch → Send tick that turns raw events into delivered digests.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vigilnet/vigilnet/internal/aiclient"
	"github.com/vigilnet/vigilnet/internal/aidispatch"
	"github.com/vigilnet/vigilnet/internal/batcher"
	"github.com/vigilnet/vigilnet/internal/config"
	"github.com/vigilnet/vigilnet/internal/email"
	"github.com/vigilnet/vigilnet/internal/lease"
	"github.com/vigilnet/vigilnet/internal/logging"
	"github.com/vigilnet/vigilnet/internal/normalizer"
	"github.com/vigilnet/vigilnet/internal/queue"
	"github.com/vigilnet/vigilnet/internal/rules"
	"github.com/vigilnet/vigilnet/internal/scheduler"
	"github.com/vigilnet/vigilnet/internal/store"
)

func main() {
	config.MustLoad()
	cfg := config.GetConfig()

	log := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(log)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	pool, err := store.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	cancel()
	if err != nil {
		log.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
	})
	defer redisClient.Close()

	qc, err := queue.Connect(queue.DefaultConfig("vigilnet-pipeline"))
	if err != nil {
		log.Error("failed to connect to nats", "err", err)
		os.Exit(1)
	}
	defer qc.Close()

	streamCtx, streamCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := qc.EnsureStream(streamCtx, queue.AIDispatchStream); err != nil {
		log.Error("failed to ensure ai dispatch stream", "err", err)
		os.Exit(1)
	}
	streamCancel()

	rawEvents := store.NewRawEventRepository(pool)
	normalizedEvents := store.NewNormalizedEventRepository(pool)
	detections := store.NewDetectionRepository(pool)
	digests := store.NewDigestRepository(pool)
	tenants := store.NewTenantRepository(pool)
	deliveries := store.NewEmailDeliveryRepository(pool)
	aiCache := store.NewAICacheRepository(pool)
	aiAnalyses := store.NewAIAnalysisRepository(pool)

	norm := normalizer.New(&normalizer.FortiGateParser{}, rawEvents, log)

	rulesEngine := rules.NewEngine(rules.ReferenceRules, normalizedEvents, detections, log)

	if err := rules.InvalidateChangedRules(context.Background(), rules.ReferenceRules, redisClient, aiCache, log); err != nil {
		log.Error("rule-change cache invalidation failed", "err", err)
	}

	aiClient := aiclient.New(cfg.Pipeline.OrchestratorURL, aiCache, aiAnalyses, normalizedEvents, rawEvents,
		cfg.Pipeline.AICacheTTLDays, log)

	aiConsumer, err := qc.EnsureConsumer(context.Background(), queue.AIDispatchStream.Name, "ai-dispatch-worker", 60*time.Second)
	if err != nil {
		log.Error("failed to create ai dispatch consumer", "err", err)
		os.Exit(1)
	}
	aiWorker := aidispatch.New(aiConsumer, detections, aiClient, cfg.Pipeline.AIConcurrency, log)

	aiWorkerCtx, aiWorkerCancel := context.WithCancel(context.Background())
	go aiWorker.Run(aiWorkerCtx)

	batch := batcher.New(detections, digests, tenants, log)

	sender := email.NewSMTPSender(email.SMTPConfig{
		Host:   cfg.Email.SMTPHost,
		Port:   cfg.Email.SMTPPort,
		Secure: cfg.Email.SMTPSecure,
		User:   cfg.Email.SMTPUser,
		Pass:   cfg.Email.SMTPPass,
		From:   cfg.Email.SMTPFrom,
	})
	dispatcher := email.New(digests, deliveries, sender, cfg.Email.RecipientFallback, log)

	leaseMgr := lease.NewManager(redisClient, cfg.Pipeline.LeaseKey)

	sched := scheduler.New(scheduler.Config{
		TickInterval:       cfg.Pipeline.TickInterval,
		NormalizeBatchSize: cfg.Pipeline.NormalizeBatchSize,
		LeaseTTL:           cfg.Pipeline.LeaseTTL,
	}, leaseMgr, norm, rulesEngine, detections, qc, batch, dispatcher, log)

	runCtx, runCancel := context.WithCancel(context.Background())
	go sched.Run(runCtx)

	log.Info("pipeline started", "tick_interval", cfg.Pipeline.TickInterval)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("pipeline shutting down")
	runCancel()
	aiWorkerCancel()
	log.Info("pipeline stopped")
}
