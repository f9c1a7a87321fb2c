// Package tracing provides OpenTelemetry tracing for the archivist.
//
// New installs a tracer provider exporting over OTLP gRPC and sets the W3C
// Trace Context and Baggage propagators globally. Packages open spans through
// StartSpan and close them with End, so they need no tracer handle and stay
// noop while tracing is disabled.
//
// Spans:
//   - archival.sweep: one scheduled or on-demand sweep
//   - archival.table: one table within a sweep
//   - archival.query: one archive read
//   - "<METHOD> <path>": one API request, via HTTPMiddleware
//
// # Sampling
//
// Three sampler strategies are supported, each wrapped in ParentBased:
//   - always: sample every trace
//   - never: sample nothing
//   - ratio: sample a fraction of traces by trace ID
//
// # Configuration
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    exporter: otlp
//	    endpoint: "otel-collector:4317"
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.1
package tracing
