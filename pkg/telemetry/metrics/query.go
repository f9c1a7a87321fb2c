package metrics

import (
	"time"

	"mercator-hq/archivist/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// QueryMetrics tracks archive reads.
//
// Metrics:
//   - archivist_archival_queries_total: Queries by table and status
//   - archivist_archival_query_duration_seconds: Query latency by table
type QueryMetrics struct {
	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
}

// NewQueryMetrics creates and registers query metrics with the provided registry.
func NewQueryMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *QueryMetrics {
	qm := &QueryMetrics{
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "queries_total",
				Help:      "Total number of archive queries by status",
			},
			[]string{"table", "status"},
		),

		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "query_duration_seconds",
				Help:      "Duration of archive queries in seconds",
				Buckets:   cfg.QueryDurationBuckets,
			},
			[]string{"table"},
		),
	}

	registry.MustRegister(qm.queriesTotal, qm.queryDuration)

	return qm
}

// RecordQuery records one archive query.
func (qm *QueryMetrics) RecordQuery(table, status string, duration time.Duration) {
	qm.queriesTotal.WithLabelValues(table, status).Inc()
	qm.queryDuration.WithLabelValues(table).Observe(duration.Seconds())
}
