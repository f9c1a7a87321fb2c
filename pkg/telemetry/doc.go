// Package telemetry groups the archivist's observability packages.
//
// # Components
//
//   - logging: slog setup with run, request and user context fields
//   - metrics: Prometheus collectors for sweeps, tables, queries and the schema cache
//   - tracing: OpenTelemetry spans for sweeps, tables, queries and API requests
//   - health: liveness and readiness checks for the databases and the scheduler
//
// # Usage
//
//	cfg := config.GetConfig()
//
//	logger, _ := logging.New(logging.Config{Level: cfg.Telemetry.Logging.Level, Format: cfg.Telemetry.Logging.Format})
//	slog.SetDefault(logger)
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//	tracer, _ := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(context.Background())
package telemetry
