// Package metrics provides Prometheus instrumentation for journiv.
//
// All metrics are prefixed with "journiv_".
//
// # Metric Categories
//
// ## Bootstrap Metrics
//
// The entrypoint replaces itself with the server, so the server records these
// at startup from the step outcomes handed over in its environment:
//   - BootstrapStepsTotal: Counter of step outcomes by step and status
//   - BootstrapStepDuration: Histogram of step duration by step
//   - BootstrapDegraded: Gauge set to 1 for each step that failed and was skipped
//
// ## Migration Metrics
//
// Read from the database when the server starts:
//   - MigrationsApplied: Gauge of applied migrations
//   - MigrationsPending: Gauge of migrations not yet applied
//   - MigrationFailed: Gauge set to 1 for the version whose last upgrade failed
//   - SchemaVersion: Info gauge labelled with the current schema version
//
// ## Seeding Metrics
//   - SeedRowsInserted: Gauge of reference rows inserted by the last seed run, by table
//
// ## Reload Metrics
//   - ReloadRestarts: Gauge of server restarts made by the reload supervisor
//
// ## HTTP and Database Metrics
//
// Request counts, latencies and in-flight requests for the server, and
// database query counts and latencies.
package metrics
