package collector

import (
	"net/http"

	"github.com/vigilnet/vigilnet/internal/httputil"
)

// readyThresholdPercent is the buffer occupancy above which readyz reports
// unready so an upstream load balancer stops sending this instance traffic.
const readyThresholdPercent = 90.0

// readyThresholdDLQ is the DLQ size above which readyz reports unready —
// an operator needs to intervene and replay before this instance is
// trusted with more traffic.
const readyThresholdDLQ = 100

// degradedBufferPercent and degradedSuccessRate are the thresholds /status
// uses to classify a Collector that's still accepting traffic but showing
// strain, distinct from the hard readyz cutoffs above.
const degradedBufferPercent = 75.0
const degradedSuccessRate = 90.0

// HealthHandlers returns the health/metrics/status mux for a Collector.
func HealthHandlers(c *Collector) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.OK(w, map[string]any{"status": "ok"})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		bufferPct := c.BufferUsagePercent()
		dlqSize := c.DLQSize()
		snap := c.Snapshot()

		body := map[string]any{
			"buffer_usage_percent": bufferPct,
			"dlq_size":             dlqSize,
			"retries":              snap.Retries,
		}

		if bufferPct > readyThresholdPercent || dlqSize > readyThresholdDLQ {
			body["status"] = "not_ready"
			httputil.WriteJSON(w, http.StatusServiceUnavailable, body)
			return
		}

		body["status"] = "ready"
		httputil.WriteJSON(w, http.StatusOK, body)
	})

	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, c.Snapshot())
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": classify(c)})
	})

	return mux
}

// classify renders a terse healthy/degraded/unhealthy verdict from the
// same counters readyz and metrics expose, for callers that just want a
// one-word answer instead of the full snapshot.
func classify(c *Collector) string {
	bufferPct := c.BufferUsagePercent()
	if bufferPct >= readyThresholdPercent || c.DLQSize() > readyThresholdDLQ {
		return "unhealthy"
	}

	snap := c.Snapshot()
	hasTraffic := snap.Events.Sent+snap.Events.Failed > 0
	if bufferPct >= degradedBufferPercent || (hasTraffic && snap.Rates.SuccessRate < degradedSuccessRate) {
		return "degraded"
	}

	return "healthy"
}
