package metrics

import (
	"time"

	"mercator-hq/archivist/pkg/archival"
	"mercator-hq/archivist/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// SweepMetrics tracks archival sweeps and the tables they process.
//
// Metrics:
//   - archivist_archival_sweeps_total: Sweeps by status
//   - archivist_archival_sweep_duration_seconds: Sweep wall time
//   - archivist_archival_table_runs_total: Table runs by table and status
//   - archivist_archival_table_duration_seconds: Per-table processing time
//   - archivist_archival_rows_archived_total: Rows copied to the archive
//   - archivist_archival_rows_purged_total: Expired archive rows deleted
//   - archivist_archival_count_mismatches_total: Inserted/deleted count mismatches
//   - archivist_archival_last_success_timestamp_seconds: Last successful table run
type SweepMetrics struct {
	sweepsTotal   *prometheus.CounterVec
	sweepDuration prometheus.Histogram

	tableRunsTotal *prometheus.CounterVec
	tableDuration  *prometheus.HistogramVec

	rowsArchived *prometheus.CounterVec
	rowsPurged   *prometheus.CounterVec
	mismatches   *prometheus.CounterVec

	lastSuccess *prometheus.GaugeVec
}

// NewSweepMetrics creates and registers sweep metrics with the provided registry.
func NewSweepMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *SweepMetrics {
	sm := &SweepMetrics{
		sweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sweeps_total",
				Help:      "Total number of archival sweeps by status",
			},
			[]string{"status"},
		),

		sweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of archival sweeps in seconds",
				Buckets:   cfg.TableDurationBuckets,
			},
		),

		tableRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "table_runs_total",
				Help:      "Total number of per-table archival runs by status",
			},
			[]string{"table", "status"},
		),

		tableDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "table_duration_seconds",
				Help:      "Duration of moving and purging one table in seconds",
				Buckets:   cfg.TableDurationBuckets,
			},
			[]string{"table"},
		),

		rowsArchived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rows_archived_total",
				Help:      "Total number of rows copied to archive tables",
			},
			[]string{"table"},
		),

		rowsPurged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rows_purged_total",
				Help:      "Total number of expired rows deleted from archive tables",
			},
			[]string{"table"},
		),

		mismatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "count_mismatches_total",
				Help:      "Total number of moves whose source delete count differed from the archive insert count",
			},
			[]string{"table"},
		),

		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful run per table",
			},
			[]string{"table"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		sm.sweepsTotal,
		sm.sweepDuration,
		sm.tableRunsTotal,
		sm.tableDuration,
		sm.rowsArchived,
		sm.rowsPurged,
		sm.mismatches,
		sm.lastSuccess,
	)

	return sm
}

// RecordSweep records a finished sweep.
func (sm *SweepMetrics) RecordSweep(status string, duration time.Duration) {
	sm.sweepsTotal.WithLabelValues(status).Inc()
	sm.sweepDuration.Observe(duration.Seconds())
}

// RecordTable records one table outcome under the given label.
// Counts are recorded even for failed tables: a move can commit before the
// purge fails.
func (sm *SweepMetrics) RecordTable(table string, outcome archival.TableOutcome) {
	status := "success"
	if outcome.Failed() {
		status = "failed"
	}
	sm.tableRunsTotal.WithLabelValues(table, status).Inc()
	sm.tableDuration.WithLabelValues(table).Observe(outcome.Duration.Seconds())

	if outcome.ArchivedCount > 0 {
		sm.rowsArchived.WithLabelValues(table).Add(float64(outcome.ArchivedCount))
	}
	if outcome.DeletedCount > 0 {
		sm.rowsPurged.WithLabelValues(table).Add(float64(outcome.DeletedCount))
	}
	if outcome.Mismatch {
		sm.mismatches.WithLabelValues(table).Inc()
	}
	if !outcome.Failed() {
		sm.lastSuccess.WithLabelValues(table).SetToCurrentTime()
	}
}
