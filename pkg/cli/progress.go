package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"mercator-hq/archivist/pkg/archival"
)

// ProgressReporter reports progress for long-running operations.
type ProgressReporter interface {
	Start(total int64)
	Update(current int64)
	Finish()
	Error(err error)
}

// SimpleProgress implements a simple text-based progress reporter.
type SimpleProgress struct {
	mu      sync.Mutex
	total   int64
	current int64
	started time.Time
	writer  io.Writer
}

// NewProgressReporter creates a new progress reporter that writes to w.
// If w is nil, it defaults to os.Stderr.
func NewProgressReporter(w io.Writer) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &SimpleProgress{
		writer: w,
	}
}

// Start initializes the progress reporter with the total number of items.
func (p *SimpleProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.current = 0
	p.started = time.Now()

	p.render()
}

// Update updates the current progress.
func (p *SimpleProgress) Update(current int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	p.render()
}

// Finish marks the progress as complete.
func (p *SimpleProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = p.total
	p.render()
	fmt.Fprintln(p.writer)
}

// Error reports an error during progress.
func (p *SimpleProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.writer, "\n✗ Error: %v\n", err)
}

func (p *SimpleProgress) render() {
	if p.total == 0 {
		return
	}

	percent := float64(p.current) / float64(p.total) * 100
	barWidth := 40
	filled := int(float64(barWidth) * percent / 100)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	fmt.Fprintf(p.writer, "\rArchiving: [%s] %.1f%% (%d/%d tables) %s",
		bar, percent, p.current, p.total, time.Since(p.started).Round(time.Second))
}

// SweepRecorder receives sweep telemetry. It matches the orchestrator's
// recorder so a SweepProgress can sit in front of the metrics collector.
type SweepRecorder interface {
	RecordTableOutcome(outcome archival.TableOutcome)
	RecordSweep(status string, duration time.Duration)
}

// SweepProgress advances a ProgressReporter once per finished table and
// forwards every event to next when set.
type SweepProgress struct {
	reporter ProgressReporter
	next     SweepRecorder

	mu   sync.Mutex
	done int64
}

// NewSweepProgress creates a SweepProgress for a sweep over total tables.
func NewSweepProgress(reporter ProgressReporter, total int64, next SweepRecorder) *SweepProgress {
	reporter.Start(total)
	return &SweepProgress{reporter: reporter, next: next}
}

// RecordTableOutcome advances the progress bar.
func (s *SweepProgress) RecordTableOutcome(outcome archival.TableOutcome) {
	s.mu.Lock()
	s.done++
	done := s.done
	s.mu.Unlock()

	s.reporter.Update(done)
	if s.next != nil {
		s.next.RecordTableOutcome(outcome)
	}
}

// RecordSweep finishes the progress bar.
func (s *SweepProgress) RecordSweep(status string, duration time.Duration) {
	s.reporter.Finish()
	if s.next != nil {
		s.next.RecordSweep(status, duration)
	}
}
