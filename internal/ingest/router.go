package ingest

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vigilnet/vigilnet/internal/httputil"
	"github.com/vigilnet/vigilnet/internal/middleware"
)

// NewRouter builds the Ingest Front Door's HTTP surface: request-ID
// propagation and CORS wrap every route, health and metrics are
// unauthenticated, and the two syslog endpoints run through the handler's
// auth/rate-limit gate.
func NewRouter(h *Handler, cors middleware.CORSConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.OK(w, map[string]any{"status": "ok"})
	})
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/ingest/syslog", h.Syslog)
	mux.HandleFunc("POST /v1/ingest/syslog/bulk", h.SyslogBulk)

	return middleware.RequestID(middleware.CORS(cors)(mux))
}
