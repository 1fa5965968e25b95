package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/jthoms1/the-collector/internal/logging"
	"github.com/jthoms1/the-collector/internal/startup"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// pingTimeout bounds the database check behind health and readiness probes.
const pingTimeout = 2 * time.Second

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Store summary
	TotalItems           int64 `json:"totalItems"`
	TotalImages          int64 `json:"totalImages"`
	LegacyImagesMigrated bool  `json:"legacyImagesMigrated"`
}

func (h *Handlers) pingDatabase(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return h.db.Ping(ctx)
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	status := http.StatusOK
	if err := h.pingDatabase(r.Context()); err != nil {
		logging.WarnCtx(r.Context(), "Health check: database unavailable: %v", err)
		response.Status = statusUnhealthy
		response.Database = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		response.Status = statusHealthy
		response.Ready = true
		response.Database = "ok"

		if stats, err := h.db.Stats(r.Context()); err == nil {
			response.TotalItems = stats.TotalItems
			response.TotalImages = stats.TotalImages
			response.LegacyImagesMigrated = stats.LegacyImagesMigrated
		}
	}

	writeJSON(w, status, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessCheck returns 200 only when the database answers
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.pingDatabase(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
