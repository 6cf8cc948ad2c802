// Package handlers provides the HTTP handlers of the journiv server.
//
// It includes handlers for:
//   - Health, liveness and readiness probes
//   - Version and build information
//   - Prometheus metrics
//
// Readiness and health reflect both the database and the outcome of the
// bootstrap sequence that started the server: a migration or seeding step
// that failed during startup is reported as a degraded status.
package handlers
