// Package api hosts the HTTP server, middleware, and REST handlers for the
// ranking service. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/rankings and /v1/rankings/{ranking_id} for snapshot queries.
//   - GET /v1/rankings/today/{category} for the scrape-on-empty today view.
//   - POST /v1/rankings/scrape/{category} for on-demand scrapes.
//   - GET /v1/rankings/{ranking_id}/export for the xlsx download.
package api
