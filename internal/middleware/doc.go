// Package middleware provides HTTP middleware for the journiv server.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics with bounded path cardinality
//   - Configurable filtering for probe endpoints
package middleware
