// Package api hosts the optional status server. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes; readiness
//     turns green once the first polling cycle has finished.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the last cycle report.
package api
