package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"mercator-hq/archivist/pkg/archival"
	"mercator-hq/archivist/pkg/archival/mover"
	"mercator-hq/archivist/pkg/telemetry/logging"
	"mercator-hq/archivist/pkg/telemetry/tracing"
)

// Sweep status labels passed to Recorder.RecordSweep.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// PolicySource lists the retention policies to enforce.
type PolicySource interface {
	ListPolicies(ctx context.Context) ([]archival.RetentionPolicy, error)
}

// RowMover moves aging rows for one table.
type RowMover interface {
	MoveAgingRows(ctx context.Context, table string, archiveAfter int64, unit archival.TimeUnit, ageColumn string) (*mover.Result, error)
}

// ArchivePurger deletes expired archive rows for one table.
type ArchivePurger interface {
	PurgeExpired(ctx context.Context, archiveTable string, deleteAfter int64, unit archival.TimeUnit, ageColumn string) (int64, error)
}

// Recorder receives sweep telemetry.
type Recorder interface {
	RecordTableOutcome(outcome archival.TableOutcome)
	RecordSweep(status string, duration time.Duration)
}

// Config controls sweep execution.
type Config struct {
	// TableTimeout bounds the move and purge of one table. Zero means no limit.
	TableTimeout time.Duration

	// Workers is the number of tables processed concurrently. Values below 2
	// process tables one at a time in policy order.
	Workers int
}

// DefaultConfig returns the default sweep configuration.
func DefaultConfig() *Config {
	return &Config{
		TableTimeout: 10 * time.Minute,
		Workers:      1,
	}
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRecorder attaches a telemetry recorder.
func WithRecorder(r Recorder) OrchestratorOption {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// Orchestrator runs sweeps: for every policy, move aging rows then purge
// expired archive rows. A failing table does not stop the sweep.
type Orchestrator struct {
	policies PolicySource
	mover    RowMover
	purger   ArchivePurger
	recorder Recorder
	config   *Config
	logger   *slog.Logger

	running atomic.Bool
	async   sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(policies PolicySource, m RowMover, p ArchivePurger, config *Config, opts ...OrchestratorOption) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	o := &Orchestrator{
		policies: policies,
		mover:    m,
		purger:   p,
		config:   config,
		logger:   slog.Default().With("component", "archival.orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunSweep runs one sweep synchronously. Only a failure to list policies is
// returned as an error; per-table failures are reported in the result.
// It returns ErrSweepInProgress if another sweep is running.
func (o *Orchestrator) RunSweep(ctx context.Context) (*archival.SweepResult, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, archival.ErrSweepInProgress
	}
	defer o.running.Store(false)

	return o.sweep(ctx, uuid.NewString())
}

// Trigger starts a sweep in the background and returns its run id without
// waiting for the outcome. The sweep is detached from ctx cancellation.
func (o *Orchestrator) Trigger(ctx context.Context) (string, error) {
	if !o.running.CompareAndSwap(false, true) {
		return "", archival.ErrSweepInProgress
	}

	runID := uuid.NewString()
	detached := context.WithoutCancel(ctx)

	o.async.Add(1)
	go func() {
		defer o.async.Done()
		defer o.running.Store(false)

		if _, err := o.sweep(detached, runID); err != nil {
			o.logger.Error("triggered sweep failed", "run_id", runID, "error", err)
		}
	}()

	return runID, nil
}

// Running reports whether a sweep is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Wait blocks until background sweeps started by Trigger finish.
func (o *Orchestrator) Wait() {
	o.async.Wait()
}

func (o *Orchestrator) sweep(ctx context.Context, runID string) (result *archival.SweepResult, err error) {
	logger := o.logger.With("run_id", runID)
	start := time.Now()

	ctx = logging.WithRunID(ctx, runID)
	ctx, span := tracing.StartSpan(ctx, tracing.SpanSweep, attribute.String(tracing.AttrRunID, runID))
	defer func() { tracing.End(span, err) }()

	policies, err := o.policies.ListPolicies(ctx)
	if err != nil {
		logger.Error("failed to list retention policies", "error", err)
		o.recordSweep(StatusFailed, time.Since(start))
		return nil, fmt.Errorf("failed to list retention policies: %w", err)
	}
	span.SetAttributes(attribute.Int(tracing.AttrTablesTotal, len(policies)))

	logger.Info("archival sweep started", "tables", len(policies), "workers", o.workers())

	result = &archival.SweepResult{
		RunID:     runID,
		StartedAt: start.UTC(),
		Outcomes:  make([]archival.TableOutcome, len(policies)),
	}

	if o.workers() <= 1 {
		for i, p := range policies {
			result.Outcomes[i] = o.processTable(ctx, logger, runID, p)
		}
	} else {
		sem := make(chan struct{}, o.workers())
		var wg sync.WaitGroup
		for i, p := range policies {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, p archival.RetentionPolicy) {
				defer wg.Done()
				defer func() { <-sem }()
				result.Outcomes[i] = o.processTable(ctx, logger, runID, p)
			}(i, p)
		}
		wg.Wait()
	}

	result.FinishedAt = time.Now().UTC()

	status := StatusSuccess
	if result.Failures() > 0 {
		status = StatusPartial
	}
	o.recordSweep(status, time.Since(start))

	logger.Info("archival sweep completed",
		"status", status,
		"tables", len(result.Outcomes),
		"failed_tables", result.Failures(),
		"archived_count", result.TotalArchived(),
		"deleted_count", result.TotalDeleted(),
		"duration", time.Since(start),
	)
	return result, nil
}

func (o *Orchestrator) processTable(ctx context.Context, logger *slog.Logger, runID string, p archival.RetentionPolicy) (outcome archival.TableOutcome) {
	start := time.Now()
	outcome.Table = p.TableName
	logger = logger.With("table", p.TableName)

	ctx, span := tracing.StartSpan(ctx, tracing.SpanTable, tracing.TableAttributes(runID, p.TableName)...)

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = fmt.Errorf("panic: %v", r)
		}
		outcome.Duration = time.Since(start)
		tracing.SetTableOutcome(span, outcome.ArchivedCount, outcome.DeletedCount, outcome.Mismatch)
		tracing.End(span, outcome.Err)
		if outcome.Err != nil {
			logger.Error("table archival failed",
				"archived_count", outcome.ArchivedCount,
				"deleted_count", outcome.DeletedCount,
				"error", outcome.Err,
			)
		} else {
			logger.Info("table archival completed",
				"archived_count", outcome.ArchivedCount,
				"deleted_count", outcome.DeletedCount,
				"duration", outcome.Duration,
			)
		}
		if o.recorder != nil {
			o.recorder.RecordTableOutcome(outcome)
		}
	}()

	if err := ctx.Err(); err != nil {
		outcome.Err = fmt.Errorf("sweep cancelled: %w", err)
		return outcome
	}

	if o.config.TableTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.TableTimeout)
		defer cancel()
	}

	ageColumn := p.AgeColumn
	if ageColumn == "" {
		ageColumn = archival.DefaultAgeColumn
	}

	moved, err := o.mover.MoveAgingRows(ctx, p.TableName, p.ArchiveAfter, p.ArchiveUnit, ageColumn)
	if err != nil {
		outcome.Err = fmt.Errorf("move: %w", deadline(ctx, err))
		return outcome
	}
	outcome.ArchivedCount = moved.Inserted
	outcome.Mismatch = moved.Mismatch()

	purged, err := o.purger.PurgeExpired(ctx, p.ArchiveTable(), p.DeleteAfter, p.DeleteUnit, ageColumn)
	if err != nil {
		outcome.Err = fmt.Errorf("purge: %w", deadline(ctx, err))
		return outcome
	}
	outcome.DeletedCount = purged

	return outcome
}

// deadline surfaces a table timeout even when the driver reports it
// as a generic error.
func deadline(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(err, context.DeadlineExceeded)
	}
	return err
}

func (o *Orchestrator) workers() int {
	if o.config.Workers < 1 {
		return 1
	}
	return o.config.Workers
}

func (o *Orchestrator) recordSweep(status string, d time.Duration) {
	if o.recorder != nil {
		o.recorder.RecordSweep(status, d)
	}
}
