package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigilnet_ingest_events_total",
			Help: "Total number of syslog events received by the ingest front door",
		},
		[]string{"endpoint", "status"},
	)

	authFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigilnet_ingest_auth_failures_total",
			Help: "Total number of requests rejected by the auth gate",
		},
	)

	rateLimitHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigilnet_ingest_rate_limit_hits_total",
			Help: "Total number of requests rejected by the tenant rate limiter",
		},
		[]string{"tenant_id"},
	)

	enqueueDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigilnet_ingest_enqueue_duration_seconds",
			Help:    "Duration of publishing an accepted event to the ingest stream",
			Buckets: prometheus.DefBuckets,
		},
	)
)
