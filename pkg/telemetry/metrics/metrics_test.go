package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/archivist/pkg/archival"
	"mercator-hq/archivist/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Helper function to create test config
func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:              true,
		Namespace:            "test",
		Subsystem:            "archival",
		TableDurationBuckets: []float64{0.1, 1, 10},
		QueryDurationBuckets: []float64{0.01, 0.1, 1},
	}
}

// TestCollector_NewCollector tests collector creation
func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector == nil {
		t.Fatal("Expected non-nil collector")
	}
	if collector.config != cfg {
		t.Error("Collector config not set correctly")
	}
	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
}

func TestCollector_Defaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	collector := NewCollector(cfg, nil)

	if collector.Registry() == nil {
		t.Fatal("Expected a registry to be created")
	}
	if cfg.Namespace != config.DefaultMetricsNamespace || cfg.Subsystem != config.DefaultMetricsSubsystem {
		t.Errorf("namespace/subsystem = %q/%q", cfg.Namespace, cfg.Subsystem)
	}
	if len(cfg.TableDurationBuckets) == 0 || len(cfg.QueryDurationBuckets) == 0 {
		t.Error("Expected default buckets")
	}
}

func TestCollector_RecordTableOutcome(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	sm := collector.sweepMetrics

	tests := []struct {
		name     string
		outcome  archival.TableOutcome
		status   string
		archived float64
		purged   float64
		mismatch float64
	}{
		{
			name:     "success",
			outcome:  archival.TableOutcome{Table: "orders", ArchivedCount: 10, DeletedCount: 3, Duration: time.Second},
			status:   "success",
			archived: 10,
			purged:   3,
		},
		{
			name:     "mismatch",
			outcome:  archival.TableOutcome{Table: "events", ArchivedCount: 5, Mismatch: true},
			status:   "success",
			archived: 5,
			mismatch: 1,
		},
		{
			name:     "failed after move",
			outcome:  archival.TableOutcome{Table: "invoices", ArchivedCount: 2, Err: errors.New("purge: boom")},
			status:   "failed",
			archived: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector.RecordTableOutcome(tt.outcome)
			table := tt.outcome.Table

			if got := testutil.ToFloat64(sm.tableRunsTotal.WithLabelValues(table, tt.status)); got != 1 {
				t.Errorf("table_runs_total{%s,%s} = %v, want 1", table, tt.status, got)
			}
			if got := testutil.ToFloat64(sm.rowsArchived.WithLabelValues(table)); got != tt.archived {
				t.Errorf("rows_archived_total = %v, want %v", got, tt.archived)
			}
			if got := testutil.ToFloat64(sm.rowsPurged.WithLabelValues(table)); got != tt.purged {
				t.Errorf("rows_purged_total = %v, want %v", got, tt.purged)
			}
			if got := testutil.ToFloat64(sm.mismatches.WithLabelValues(table)); got != tt.mismatch {
				t.Errorf("count_mismatches_total = %v, want %v", got, tt.mismatch)
			}
			last := testutil.ToFloat64(sm.lastSuccess.WithLabelValues(table))
			if tt.status == "success" && last == 0 {
				t.Error("last_success_timestamp_seconds not set")
			}
			if tt.status == "failed" && last != 0 {
				t.Error("last_success_timestamp_seconds set for failed run")
			}
		})
	}
}

func TestCollector_RecordSweep(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordSweep("success", 2*time.Second)
	collector.RecordSweep("partial", time.Second)
	collector.RecordSweep("success", time.Second)

	if got := testutil.ToFloat64(collector.sweepMetrics.sweepsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("sweeps_total{success} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.sweepMetrics.sweepsTotal.WithLabelValues("partial")); got != 1 {
		t.Errorf("sweeps_total{partial} = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(collector.sweepMetrics.sweepDuration); got != 1 {
		t.Errorf("sweep_duration_seconds series = %d, want 1", got)
	}
}

func TestCollector_RecordQuery(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordQuery("orders", "ok", 20*time.Millisecond)
	collector.RecordQuery("orders", "ok", 5*time.Millisecond)
	collector.RecordQuery("orders", "denied", time.Millisecond)

	if got := testutil.ToFloat64(collector.queryMetrics.queriesTotal.WithLabelValues("orders", "ok")); got != 2 {
		t.Errorf("queries_total{orders,ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.queryMetrics.queriesTotal.WithLabelValues("orders", "denied")); got != 1 {
		t.Errorf("queries_total{orders,denied} = %v, want 1", got)
	}
}

func TestCollector_CacheMetrics(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordCacheHit("schema")
	collector.RecordCacheHit("schema")
	collector.RecordCacheMiss("schema")
	collector.RecordCacheEviction("schema")
	collector.UpdateCacheSize("schema", 7)

	cm := collector.cacheMetrics
	if got := testutil.ToFloat64(cm.hitsTotal.WithLabelValues("schema")); got != 2 {
		t.Errorf("cache_hits_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(cm.missesTotal.WithLabelValues("schema")); got != 1 {
		t.Errorf("cache_misses_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(cm.evictionsTotal.WithLabelValues("schema")); got != 1 {
		t.Errorf("cache_evictions_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(cm.entries.WithLabelValues("schema")); got != 7 {
		t.Errorf("cache_entries = %v, want 7", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordSweep("success", time.Second)
	collector.RecordQuery("orders", "ok", time.Millisecond)
	collector.RecordTableOutcome(archival.TableOutcome{Table: "orders", ArchivedCount: 1})

	if got := testutil.ToFloat64(collector.sweepMetrics.sweepsTotal.WithLabelValues("success")); got != 0 {
		t.Errorf("sweeps_total = %v, want 0 when disabled", got)
	}
	if got := testutil.ToFloat64(collector.queryMetrics.queriesTotal.WithLabelValues("orders", "ok")); got != 0 {
		t.Errorf("queries_total = %v, want 0 when disabled", got)
	}
}

func TestCollector_TableCardinality(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.cardinalityLimiter = NewCardinalityLimiter(2)

	collector.RecordQuery("a", "ok", time.Millisecond)
	collector.RecordQuery("b", "ok", time.Millisecond)
	collector.RecordQuery("c", "ok", time.Millisecond)
	collector.RecordQuery("a", "ok", time.Millisecond)

	if got := testutil.ToFloat64(collector.queryMetrics.queriesTotal.WithLabelValues("a", "ok")); got != 2 {
		t.Errorf("queries_total{a} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.queryMetrics.queriesTotal.WithLabelValues(OtherTable, "ok")); got != 1 {
		t.Errorf("queries_total{other} = %v, want 1", got)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	limiter := NewCardinalityLimiter(3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow(fmt.Sprintf("label%d", i)) {
			t.Errorf("Expected label%d to be allowed", i)
		}
	}
	if limiter.Allow("label3") {
		t.Error("Expected label3 to be rejected (limit reached)")
	}
	if !limiter.Allow("label0") {
		t.Error("Expected existing label0 to be allowed")
	}
	if limiter.Count() != 3 {
		t.Errorf("Expected count 3, got %d", limiter.Count())
	}
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordQuery("orders", "ok", time.Millisecond)
			collector.RecordTableOutcome(archival.TableOutcome{Table: "orders", ArchivedCount: 1})
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(collector.queryMetrics.queriesTotal.WithLabelValues("orders", "ok")); got != 50 {
		t.Errorf("queries_total = %v, want 50", got)
	}
	if got := testutil.ToFloat64(collector.sweepMetrics.rowsArchived.WithLabelValues("orders")); got != 50 {
		t.Errorf("rows_archived_total = %v, want 50", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	if err := collector.RegisterRuntimeCollectors(); err != nil {
		t.Fatalf("RegisterRuntimeCollectors() error = %v", err)
	}
	collector.RecordSweep("success", time.Second)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"test_archival_sweeps_total", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
