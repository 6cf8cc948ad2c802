package handlers

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"journiv/internal/database"
	"journiv/internal/logging"
	"journiv/internal/seed"
	"journiv/internal/startup"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status        string   `json:"status"`
	Ready         bool     `json:"ready"`
	Version       string   `json:"version"`
	Uptime        string   `json:"uptime"`
	SchemaVersion string   `json:"schemaVersion,omitempty"`
	Degraded      []string `json:"degraded,omitempty"`
	Error         string   `json:"error,omitempty"`

	// Reference data
	Moods       int    `json:"moods"`
	Prompts     int    `json:"prompts"`
	Users       int    `json:"users"`
	SeedVersion string `json:"seedVersion,omitempty"`
	SeedLastRun string `json:"seedLastRun,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := HealthResponse{
		Status:       statusHealthy,
		Ready:        true,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Degraded:     h.Degraded(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if err := h.db.Ping(ctx); err != nil {
		logging.Warn("health check: database unavailable: %v", err)
		response.Status = statusUnhealthy
		response.Ready = false
		response.Error = "database unavailable"

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, response)
		return
	}

	if v, err := h.db.SchemaVersion(ctx); err == nil {
		response.SchemaVersion = v
	}
	response.Moods = h.count(r, "mood")
	response.Prompts = h.count(r, "prompt")
	response.Users = h.count(r, "user")
	response.SeedVersion = h.metadata(r, seed.MetaVersion)
	response.SeedLastRun = h.metadata(r, seed.MetaLastRun)

	if len(h.degraded) > 0 {
		response.Status = statusDegraded
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	writeJSON(w, response)
}

// count returns the row count of table, or 0 when it cannot be read.
func (h *Handlers) count(r *http.Request, table string) int {
	n, err := h.db.CountRows(r.Context(), table)
	if err != nil {
		logging.Debug("health check: count %s: %v", table, err)
		return 0
	}
	return n
}

// metadata returns a metadata value, or "" when it is unset or unreadable.
func (h *Handlers) metadata(r *http.Request, key string) string {
	v, err := h.db.GetMetadata(r.Context(), key)
	if err != nil {
		if !errors.Is(err, database.ErrMetadataNotFound) {
			logging.Debug("health check: metadata %s: %v", key, err)
		}
		return ""
	}
	return v
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the database answers. A degraded
// startup is still ready but says so in the body.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := h.db.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
		return
	}

	status := "ready"
	if len(h.degraded) > 0 {
		status = statusDegraded
	}
	w.WriteHeader(http.StatusOK)
	writeJSON(w, map[string]any{
		"status":   status,
		"degraded": h.Degraded(),
	})
}
