// Package api hosts the HTTP server, middleware, and REST handlers. Notable routes:
//   - GET /healthz and /readyz for probes, GET /metrics for Prometheus.
//   - POST /v1/auth/login to exchange credentials for a bearer token.
//   - /v1/crawls to submit, inspect, cancel, and delete crawl tasks.
//   - /v1/opportunities and /v1/departments to browse stored records.
package api
