// Package server provides the HTTP surface of the exporter.
//
// Available endpoints:
//   - /           : status page showing readiness and last cycle info
//   - /metrics    : Prometheus metrics endpoint
//   - /health     : liveness probe (always returns 200)
//   - /ready      : readiness probe (200 once a polling cycle completed
//     without per-account failures)
//
// The server is configured with sensible timeout defaults (15s read,
// 15s write, 60s idle) and supports graceful shutdown via Shutdown.
package server
