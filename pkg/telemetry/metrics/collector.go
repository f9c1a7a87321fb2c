package metrics

import (
	"fmt"
	"sync"
	"time"

	"mercator-hq/archivist/pkg/archival"
	"mercator-hq/archivist/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// OtherTable is the table label used once the cardinality limit is reached.
const OtherTable = "other"

// Collector is the main orchestrator for all Prometheus metrics in the
// archivist. It satisfies the recorder interfaces of the retention
// orchestrator, the archive query gateway and the schema introspector.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Sweep and per-table metrics
	sweepMetrics *SweepMetrics

	// Archive query metrics
	queryMetrics *QueryMetrics

	// Schema cache metrics
	cacheMetrics *CacheMetrics

	// Cardinality tracking
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a new registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "archivist",
//		Subsystem: "archival",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	// Set defaults if not specified
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.TableDurationBuckets) == 0 {
		// Per-table move and purge, 100ms - 15m
		cfg.TableDurationBuckets = []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900}
	}
	if len(cfg.QueryDurationBuckets) == 0 {
		cfg.QueryDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(1000),
	}

	c.sweepMetrics = NewSweepMetrics(cfg, registry)
	c.queryMetrics = NewQueryMetrics(cfg, registry)
	c.cacheMetrics = NewCacheMetrics(cfg, registry)

	return c
}

// RecordTableOutcome records the result of processing one table in a sweep.
func (c *Collector) RecordTableOutcome(outcome archival.TableOutcome) {
	if !c.config.Enabled {
		return
	}

	c.sweepMetrics.RecordTable(c.tableLabel(outcome.Table), outcome)
}

// RecordSweep records a finished sweep.
//
// Parameters:
//   - status: "success", "partial" or "failed"
//   - duration: wall time of the whole sweep
func (c *Collector) RecordSweep(status string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.sweepMetrics.RecordSweep(status, duration)
}

// RecordQuery records one archive query.
//
// Parameters:
//   - table: source table name
//   - status: "ok", "denied", "not_found", "invalid" or "error"
//   - duration: time to serve the query
func (c *Collector) RecordQuery(table, status string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.queryMetrics.RecordQuery(c.tableLabel(table), status, duration)
}

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit(cacheName string) {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.RecordHit(cacheName)
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(cacheName string) {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.RecordMiss(cacheName)
}

// RecordCacheEviction records an entry leaving a cache.
func (c *Collector) RecordCacheEviction(cacheName string) {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.RecordEviction(cacheName)
}

// UpdateCacheSize updates the current size of a cache.
func (c *Collector) UpdateCacheSize(cacheName string, size int) {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.UpdateSize(cacheName, size)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// tableLabel folds tables past the cardinality limit into OtherTable.
func (c *Collector) tableLabel(table string) string {
	if !c.cardinalityLimiter.Allow(fmt.Sprintf("table:%s", table)) {
		return OtherTable
	}
	return table
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
// Returns false if adding this label set would exceed the limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
