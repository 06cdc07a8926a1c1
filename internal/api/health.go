package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsReporter exposes counters for the readiness report.
type StatsReporter interface {
	Stats() map[string]int64
}

// HealthHandler handles dependency health checks.
type HealthHandler struct {
	checks  map[string]Pinger
	stats   map[string]StatsReporter
	timeout time.Duration
}

// NewHealthHandler creates a health handler checking every named dependency.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks, stats: map[string]StatsReporter{}, timeout: 5 * time.Second}
}

// WithStats adds a counter source to the report.
func (h *HealthHandler) WithStats(name string, s StatsReporter) *HealthHandler {
	h.stats[name] = s
	return h
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			slog.Error("Health check failed", "dependency", name, "error", err)
			checks[name] = "unreachable"
			status["status"] = "degraded"
			statusCode = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	if len(h.stats) > 0 {
		stats := make(map[string]map[string]int64, len(h.stats))
		for name, s := range h.stats {
			stats[name] = s.Stats()
		}
		status["stats"] = stats
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the readiness route. /health itself is answered by
// the heartbeat middleware.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health/ready", h.Health)
}
