// Command collector runs the edge syslog Collector: UDP/TCP intake, an
// in-memory buffer, and batched forwarding to the cloud ingest API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vigilnet/vigilnet/internal/collector"
	"github.com/vigilnet/vigilnet/internal/config"
	"github.com/vigilnet/vigilnet/internal/logging"
	"github.com/vigilnet/vigilnet/internal/queue"
)

const version = "1.0.0"

func main() {
	config.MustLoad()
	cfg := config.GetConfig()

	log := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(log)

	var dlq collector.DLQWriter
	qc, err := queue.Connect(queue.DefaultConfig(cfg.Collector.CollectorName))
	if err != nil {
		log.Warn("nats unavailable, collector dlq disabled", "err", err)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := qc.EnsureStream(ctx, queue.CollectorDLQStream); err != nil {
			log.Warn("could not ensure collector dlq stream", "err", err)
		} else {
			dlq = collector.NewJetStreamDLQ(qc)
		}
		cancel()
	}

	col := collector.New(collector.Config{
		Name:           cfg.Collector.CollectorName,
		Version:        version,
		SiteID:         cfg.Collector.SiteID,
		UDPAddr:        fmt.Sprintf("%s:%d", cfg.Collector.UDPBind, cfg.Collector.UDPPort),
		TCPAddr:        fmt.Sprintf("%s:%d", cfg.Collector.TCPBind, cfg.Collector.TCPPort),
		HealthAddr:     fmt.Sprintf(":%d", cfg.Collector.HealthPort),
		BulkURL:        cfg.Collector.APIURL + "/v1/ingest/syslog/bulk",
		SingleURL:      cfg.Collector.APIURL + "/v1/ingest/syslog",
		APIKey:         cfg.Collector.APIKey,
		BatchSize:      cfg.Collector.BatchSize,
		FlushInterval:  cfg.Collector.FlushInterval,
		MaxBufferSize:  cfg.Collector.MaxBufferSize,
		MaxRetries:     cfg.Collector.MaxRetries,
		RetryBaseMS:    cfg.Collector.RetryBaseDelay,
		RetryMaxMS:     cfg.Collector.RetryMaxDelay,
		RequestTimeout: 10 * time.Second,
	}, dlq, log)

	col.Start()
	log.Info("collector started",
		"udp", cfg.Collector.UDPEnabled,
		"tcp", cfg.Collector.TCPEnabled,
		"health_port", cfg.Collector.HealthPort,
	)

	healthSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Collector.HealthPort),
		Handler: collector.HealthHandlers(col),
	}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("health server failed", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("collector shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(shutdownCtx)
	col.Stop()
	if qc != nil {
		_ = qc.Close()
	}
	log.Info("collector stopped")
}
