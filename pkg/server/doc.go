// Package server provides the HTTP API of the archivist.
//
// The server exposes retention policy management, table grants, on-demand
// sweeps and archive reads over JSON, plus the health, version and metrics
// endpoints used by orchestrators.
//
// # Basic Usage
//
//	cfg := config.GetConfig()
//	srv := server.NewServer(&cfg.API, &cfg.Security, &cfg.Telemetry, server.Options{
//	    Service: svc,
//	    Health:  checker,
//	    Metrics: collector,
//	    Version: version,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until ctx is cancelled or Stop is called, then shuts down
// gracefully within api.shutdown_timeout.
//
// # Routes
//
// Under /api/v1/archival, every request must carry the trusted identity
// headers (X-Username and X-Roles by default):
//
//   - POST /configuration - create or replace a retention policy (201)
//   - GET /configuration - list policies visible to the caller
//   - GET /configuration/{tableName} - one policy
//   - DELETE /configuration/{tableName} - remove a policy (204)
//   - POST /run-now - trigger a sweep, admin only (202 with runId)
//   - PUT /assign-tables - replace a user's table grant, admin only
//   - GET /assign-tables - list grants, admin only
//   - GET /data/{tableName}?startDate&endDate&sort&page&size - read the archive
//
// Outside the API prefix, without identity:
//
//   - GET /health, /ready, /version (paths from telemetry.health)
//   - GET /metrics (telemetry.metrics.path)
//
// # Errors
//
// Errors are returned as {"message": "..."} with the status chosen by
// StatusFor:
//
//   - 400: malformed body or parameter, invalid policy
//   - 401: missing identity header
//   - 403: table not granted, or admin role required
//   - 404: no retention policy (or grant) for the table
//   - 409: a sweep is already running
//   - 500: anything else; the cause is logged, not returned
//
// # Middleware Chain
//
// Requests pass through, outermost first: recovery, request ID, tracing,
// logging, CORS (when enabled), then identity and user context on the API
// routes.
package server
