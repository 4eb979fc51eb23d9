// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - GET / for the service description and endpoint listing.
//   - POST /metadata to collect and store metadata for a URL.
//   - GET /metadata to look a URL up, queueing background collection on a miss.
//   - GET /health for load-balancer checks (pings the database).
//   - GET /metrics for Prometheus scraping.
package api
