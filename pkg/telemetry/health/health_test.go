package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/archivist/internal/testdb"
)

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

type scheduler struct{ running bool }

func (s scheduler) IsRunning() bool { return s.running }

var errRefused = errors.New("connection refused")

func newArchivistChecker(sourceErr, archiveErr error, schedulerRunning bool) *Checker {
	c := New(time.Second)
	c.RegisterCheck("source", DatabaseCheck(pinger{sourceErr}))
	c.RegisterCheck("archive", DatabaseCheck(pinger{archiveErr}))
	c.RegisterOptionalCheck("scheduler", SchedulerCheck(scheduler{schedulerRunning}))
	return c
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name        string
		sourceErr   error
		archiveErr  error
		running     bool
		wantStatus  string
		wantServing bool
		wantFailed  string
	}{
		{"all healthy", nil, nil, true, StatusReady, true, ""},
		{"scheduler stopped", nil, nil, false, StatusDegraded, true, "scheduler"},
		{"archive down", nil, errRefused, true, StatusUnhealthy, false, "archive"},
		{"source down and scheduler stopped", errRefused, nil, false, StatusUnhealthy, false, "source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := newArchivistChecker(tt.sourceErr, tt.archiveErr, tt.running).Readiness(context.Background())

			if report.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", report.Status, tt.wantStatus)
			}
			if report.Serving() != tt.wantServing {
				t.Errorf("Serving() = %v, want %v", report.Serving(), tt.wantServing)
			}
			if len(report.Checks) != 3 {
				t.Fatalf("len(Checks) = %d, want 3", len(report.Checks))
			}
			if !report.Checks["scheduler"].Optional || report.Checks["archive"].Optional {
				t.Errorf("optional flags = %+v", report.Checks)
			}
			if tt.wantFailed != "" && report.Checks[tt.wantFailed].Status != StatusUnhealthy {
				t.Errorf("Checks[%q] = %+v, want unhealthy", tt.wantFailed, report.Checks[tt.wantFailed])
			}
		})
	}
}

func TestReadiness_NoChecks(t *testing.T) {
	if got := New(0).Readiness(context.Background()).Status; got != StatusReady {
		t.Errorf("Status = %q, want %q", got, StatusReady)
	}
}

func TestReadiness_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.RegisterCheck("archive", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	report := c.Readiness(context.Background())
	res := report.Checks["archive"]
	if res.Status != StatusUnhealthy || res.Message != ErrCheckTimeout.Error() {
		t.Errorf("Checks[archive] = %+v, want timeout", res)
	}
	if report.Status != StatusUnhealthy {
		t.Errorf("Status = %q, want %q", report.Status, StatusUnhealthy)
	}
}

func TestRegisterCheck_Replaces(t *testing.T) {
	c := New(time.Second)
	c.RegisterOptionalCheck("archive", DatabaseCheck(pinger{errRefused}))
	c.RegisterCheck("archive", DatabaseCheck(pinger{errRefused}))

	if got := c.Readiness(context.Background()).Status; got != StatusUnhealthy {
		t.Errorf("Status = %q, want %q after re-registering as required", got, StatusUnhealthy)
	}
}

func TestDatabaseCheck(t *testing.T) {
	db := testdb.OpenSQLite(t, "archive")
	if err := DatabaseCheck(db)(context.Background()); err != nil {
		t.Errorf("DatabaseCheck(sqlite) = %v, want nil", err)
	}

	err := DatabaseCheck(pinger{errRefused})(context.Background())
	if !errors.Is(err, errRefused) {
		t.Errorf("DatabaseCheck() = %v, want wrapped %v", err, errRefused)
	}
}

func TestSchedulerCheck(t *testing.T) {
	if err := SchedulerCheck(scheduler{true})(context.Background()); err != nil {
		t.Errorf("running scheduler = %v, want nil", err)
	}
	if err := SchedulerCheck(scheduler{false})(context.Background()); !errors.Is(err, ErrSchedulerStopped) {
		t.Errorf("stopped scheduler = %v, want %v", err, ErrSchedulerStopped)
	}
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name       string
		checker    *Checker
		path       string
		wantCode   int
		wantStatus string
	}{
		{"liveness ignores failing databases", newArchivistChecker(errRefused, errRefused, false), "/health", http.StatusOK, StatusOK},
		{"ready", newArchivistChecker(nil, nil, true), "/ready", http.StatusOK, StatusReady},
		{"degraded still serves", newArchivistChecker(nil, nil, false), "/ready", http.StatusOK, StatusDegraded},
		{"database failure is unavailable", newArchivistChecker(nil, errRefused, true), "/ready", http.StatusServiceUnavailable, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.checker.Handlers(BuildInfo{Version: "1.2.3"})
			handler := h.Readiness
			if tt.path == "/health" {
				handler = h.Liveness
			}

			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			var report Report
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if report.Status != tt.wantStatus {
				t.Errorf("body status = %q, want %q", report.Status, tt.wantStatus)
			}
		})
	}
}

func TestHandlers_Version(t *testing.T) {
	h := New(0).Handlers(BuildInfo{Version: "1.2.3", Commit: "abc123", BuildTime: "2024-03-15"})

	rec := httptest.NewRecorder()
	h.Version(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info BuildInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if info.Version != "1.2.3" || info.Commit != "abc123" || info.GoVersion == "" {
		t.Errorf("version body = %+v", info)
	}

	rec = httptest.NewRecorder()
	h.Version(rec, httptest.NewRequest(http.MethodHead, "/version", nil))
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD body = %q, want empty", rec.Body.String())
	}
}
