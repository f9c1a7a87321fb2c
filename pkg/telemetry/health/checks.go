package health

import (
	"context"
	"errors"
	"fmt"
)

// Pinger is satisfied by *sql.DB and *database.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DatabaseCheck returns a check that pings db.
func DatabaseCheck(db Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		return nil
	}
}

// SchedulerState reports whether the sweep scheduler is running.
type SchedulerState interface {
	IsRunning() bool
}

// ErrSchedulerStopped is reported when the sweep scheduler is not running.
var ErrSchedulerStopped = errors.New("sweep scheduler is not running")

// SchedulerCheck returns a check that fails while the scheduler is stopped.
func SchedulerCheck(s SchedulerState) CheckFunc {
	return func(context.Context) error {
		if !s.IsRunning() {
			return ErrSchedulerStopped
		}
		return nil
	}
}
