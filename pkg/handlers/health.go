package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/config"
)

// checkTimeout bounds each dependency check run by /health.
const checkTimeout = 2 * time.Second

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	Service     string            `json:"service"`
	GoVersion   string            `json:"go_version"`
	Hostname    string            `json:"hostname"`
	Environment string            `json:"environment"`
	Components  map[string]string `json:"components,omitempty"`
}

// HealthResponse reports the state of each backing dependency.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthCheck probes one dependency, e.g. the PostgreSQL pool or the Redis cache.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg        *config.Config
	components map[string]string
	checks     []HealthCheck
	logger     *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. components names the active adapters
// (ocr engine, meal oracle, profile store) and is reported by /ping.
func NewHealthHandler(cfg *config.Config, components map[string]string, checks []HealthCheck, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, components: components, checks: checks, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
// Returns 503 when any dependency check fails.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok"}
	status := http.StatusOK

	if len(h.checks) > 0 {
		response.Checks = make(map[string]string, len(h.checks))
	}
	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			h.logger.Warn("Health check failed", zap.String("check", c.Name), zap.Error(err))
			response.Checks[c.Name] = "unavailable"
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Checks[c.Name] = "ok"
	}

	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "nutriscan-engine",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
		Components:  h.components,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
