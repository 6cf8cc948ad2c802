package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"journiv/internal/logging"
	"journiv/internal/startup"
)

// VersionResponse is the build information plus the schema the server runs on.
type VersionResponse struct {
	startup.BuildInfo
	SchemaVersion string `json:"schemaVersion"`
}

// GetVersion returns the build information and current schema version.
func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	resp := VersionResponse{BuildInfo: startup.GetBuildInfo()}

	schema, err := h.db.SchemaVersion(r.Context())
	if err != nil {
		logging.Warn("Version: reading schema version: %v", err)
	}
	resp.SchemaVersion = orUnknown(schema)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, resp)
}

// MetricsHandler serves the default registry, with OpenMetrics negotiation.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
