// Command ingest runs the Ingest Front Door HTTP API: auth, tenant rate
// limiting, and enqueueing accepted syslog events for the Ingest Worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vigilnet/vigilnet/internal/config"
	"github.com/vigilnet/vigilnet/internal/ingest"
	"github.com/vigilnet/vigilnet/internal/ingestworker"
	"github.com/vigilnet/vigilnet/internal/logging"
	"github.com/vigilnet/vigilnet/internal/middleware"
	"github.com/vigilnet/vigilnet/internal/queue"
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

	qc, err := queue.Connect(queue.DefaultConfig("vigilnet-ingest"))
	if err != nil {
		log.Error("failed to connect to nats", "err", err)
		os.Exit(1)
	}
	defer qc.Close()

	streamCtx, streamCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := qc.EnsureStream(streamCtx, queue.IngestStream); err != nil {
		log.Error("failed to ensure ingest stream", "err", err)
		os.Exit(1)
	}
	streamCancel()

	apiKeys := store.NewAPIKeyRepository(pool)
	tenants := store.NewTenantRepository(pool)
	rawEvents := store.NewRawEventRepository(pool)

	workerConsumer, err := qc.EnsureConsumer(context.Background(), queue.IngestStream.Name, "ingest-worker", 30*time.Second)
	if err != nil {
		log.Error("failed to create ingest worker consumer", "err", err)
		os.Exit(1)
	}
	worker := ingestworker.New(workerConsumer, rawEvents, cfg.Ingest.WorkerConcurrency, log)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	go worker.Run(workerCtx)

	// tierCache caches resolved plan tiers briefly so the hot ingest path
	// doesn't hit Postgres on every request just to learn the rate budget.
	tierCache := newTierCache(tenants, log)

	auth := ingest.NewAuthGate(apiKeys, cfg.Ingest.AuthDelayOnMiss, log)
	limiter := ingest.NewRateLimiter(redisClient, log)

	handler := ingest.NewHandler(auth, limiter, tierCache.Lookup, cfg.RateLimit.Tier, qc, log)

	router := ingest.NewRouter(handler, middleware.CORSConfig{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "x-payload-sha256"},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Ingest.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("ingest front door listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("ingest server failed", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("ingest shutting down")
	workerCancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("ingest stopped")
}

// tierCache resolves a tenant's plan tier, refreshing from Postgres at most
// once per tenant per minute.
type tierCache struct {
	tenants *store.TenantRepository
	log     *logging.Logger

	mu      sync.Mutex
	entries map[string]tierEntry
}

type tierEntry struct {
	tier      string
	expiresAt time.Time
}

func newTierCache(tenants *store.TenantRepository, log *logging.Logger) *tierCache {
	return &tierCache{tenants: tenants, log: log, entries: make(map[string]tierEntry)}
}

func (c *tierCache) Lookup(tenantID string) string {
	c.mu.Lock()
	if e, ok := c.entries[tenantID]; ok && time.Now().Before(e.expiresAt) {
		c.mu.Unlock()
		return e.tier
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	tenant, err := c.tenants.GetByID(ctx, tenantID)
	tier := "free"
	if err != nil {
		c.log.Error("tier lookup failed, defaulting to free", "err", err, "tenant_id", tenantID)
	} else {
		tier = string(tenant.PlanTier)
	}

	c.mu.Lock()
	c.entries[tenantID] = tierEntry{tier: tier, expiresAt: time.Now().Add(1 * time.Minute)}
	c.mu.Unlock()

	return tier
}
