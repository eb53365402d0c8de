// Package api hosts the HTTP server, middleware, and REST handlers for
// the roasting service. Notable routes:
//   - GET /healthz / /readyz for Kubernetes probes (readyz reports the
//     remaining daily roast budget).
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/roasts to roast a startup website.
//   - GET /v1/roasts/{roast_id} and GET /v1/leaderboard for reads.
//   - POST /v1/roasts/{roast_id}/votes to toggle a fire vote.
package api
