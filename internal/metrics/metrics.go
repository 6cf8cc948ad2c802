package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bootstrap metrics
var (
	BootstrapStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journiv_bootstrap_steps_total",
			Help: "Total number of bootstrap step outcomes",
		},
		[]string{"step", "status"},
	)

	BootstrapStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "journiv_bootstrap_step_duration_seconds",
			Help:    "Bootstrap step duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"step"},
	)

	BootstrapDegraded = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "journiv_bootstrap_degraded",
			Help: "Whether a bootstrap step failed and startup continued (1 = degraded)",
		},
		[]string{"step"},
	)
)

// Migration metrics. Migrations run in a short-lived child of the
// entrypoint, so the server derives these from the database at startup.
var (
	MigrationsApplied = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "journiv_migrations_applied",
			Help: "Number of schema migrations currently applied",
		},
	)

	MigrationsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "journiv_migrations_pending",
			Help: "Number of registered schema migrations not yet applied",
		},
	)

	MigrationFailed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "journiv_migration_failed",
			Help: "Migration version that failed in the last upgrade run (value is always 1)",
		},
		[]string{"version"},
	)

	SchemaVersion = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "journiv_schema_version_info",
			Help: "Current schema version (value is always 1)",
		},
		[]string{"version"},
	)
)

// Seeding metrics
var (
	SeedRowsInserted = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "journiv_seed_rows_inserted",
			Help: "Reference rows inserted by the most recent seeding run",
		},
		[]string{"table"},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journiv_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "journiv_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "journiv_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journiv_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "journiv_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

// Reload metrics
var (
	ReloadRestarts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "journiv_reload_restarts",
			Help: "Server restarts by the reload supervisor before this process started",
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "journiv_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

// SetMigrationState records the applied and pending migration counts and
// the version that failed last, if any.
func SetMigrationState(applied, pending int, failedVersion string) {
	MigrationsApplied.Set(float64(applied))
	MigrationsPending.Set(float64(pending))
	MigrationFailed.Reset()
	if failedVersion != "" {
		MigrationFailed.WithLabelValues(failedVersion).Set(1)
	}
}

// SetSchemaVersion replaces the schema version info label.
func SetSchemaVersion(version string) {
	SchemaVersion.Reset()
	SchemaVersion.WithLabelValues(version).Set(1)
}
