package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/archivist/pkg/archival"
)

// DefaultSchedule runs a sweep daily at 01:00.
const DefaultSchedule = "0 1 * * *"

// Sweeper runs one sweep.
type Sweeper interface {
	RunSweep(ctx context.Context) (*archival.SweepResult, error)
}

// Scheduler triggers sweeps on a cron schedule.
type Scheduler struct {
	sweeper  Sweeper
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewScheduler creates a scheduler for a standard five-field cron expression.
// A "CRON_TZ=Zone " prefix pins the schedule to a time zone.
func NewScheduler(sweeper Sweeper, schedule string) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "archival.scheduler"),
	}
}

// ValidateSchedule reports whether schedule is a valid cron expression.
func ValidateSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// Start registers the sweep job and starts the cron loop. The scheduler stops
// when ctx is cancelled. An empty schedule disables scheduling.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("archival schedule not configured, skipping scheduler")
		return nil
	}

	if err := ValidateSchedule(s.schedule); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runSweep(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule archival sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("archival scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) runSweep(ctx context.Context) {
	s.logger.Info("starting scheduled archival sweep")

	result, err := s.sweeper.RunSweep(ctx)
	if errors.Is(err, archival.ErrSweepInProgress) {
		s.logger.Warn("scheduled sweep skipped, previous sweep still running")
		return
	}
	if err != nil {
		s.logger.Error("scheduled sweep failed", "error", err)
		return
	}

	s.logger.Info("scheduled sweep completed",
		"run_id", result.RunID,
		"archived_count", result.TotalArchived(),
		"deleted_count", result.TotalDeleted(),
		"failed_tables", result.Failures(),
	)
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("archival scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled sweep time, or nil if none is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
