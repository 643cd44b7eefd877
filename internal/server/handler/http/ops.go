package http

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// OpsHandler serves the health and metrics endpoints.
type OpsHandler struct {
	DB       Pinger
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

// Health pings the database with a short deadline.
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.DB.PingContext(ctx); err != nil {
		h.Log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics exposes the registry in the Prometheus text format.
func (h *OpsHandler) Metrics() http.Handler {
	return promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})
}
