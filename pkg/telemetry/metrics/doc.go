// Package metrics provides Prometheus metrics for the archivist.
//
// The Collector implements the recorder interfaces of the retention
// orchestrator, the archive query gateway and the schema introspector, so
// wiring it in is a matter of passing it as an option:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	orch := retention.NewOrchestrator(store, mover, purger, rcfg, retention.WithRecorder(collector))
//	gw := query.NewGateway(archive, store, authz, limits, query.WithRecorder(collector))
//	router.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Metrics
//
// With the default namespace "archivist" and subsystem "archival":
//
//	archivist_archival_sweeps_total{status}
//	archivist_archival_sweep_duration_seconds
//	archivist_archival_table_runs_total{table,status}
//	archivist_archival_table_duration_seconds{table}
//	archivist_archival_rows_archived_total{table}
//	archivist_archival_rows_purged_total{table}
//	archivist_archival_count_mismatches_total{table}
//	archivist_archival_last_success_timestamp_seconds{table}
//	archivist_archival_queries_total{table,status}
//	archivist_archival_query_duration_seconds{table}
//	archivist_archival_cache_{hits,misses,evictions}_total{cache}
//	archivist_archival_cache_entries{cache}
//
// # Cardinality Management
//
// Table labels are limited to 1000 distinct values; further tables are
// recorded as "other".
package metrics
