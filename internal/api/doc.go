// Package api hosts the preview HTTP server for a publish root. Notable routes:
//   - GET /healthz and /readyz for probes; readyz fails until a site has been published.
//   - GET /metrics for Prometheus scraping.
//   - GET /* serves the published files, hiding dot-prefixed entries.
package api
