package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"resumetailor-hq/tailor/pkg/quota"
)

// DefaultSweepSchedule is the sweep cadence when none is configured.
const DefaultSweepSchedule = "@every 15m"

// Sweeper periodically deletes expired quota records from backends that
// have no native expiry.
type Sweeper struct {
	expirer  quota.Expirer
	clock    quota.Clock
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	recorder SweepRecorder
	running  bool
}

// SweepRecorder receives the number of records removed by each sweep.
type SweepRecorder interface {
	RecordSweep(removed int)
}

// NewSweeper creates a sweeper for expirer. An empty schedule selects
// DefaultSweepSchedule.
func NewSweeper(expirer quota.Expirer, schedule string, clock quota.Clock) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if clock == nil {
		clock = quota.SystemClock{}
	}
	return &Sweeper{
		expirer:  expirer,
		clock:    clock,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "quota.sweeper"),
	}
}

// Named sets the component name used in the sweeper's log lines.
func (s *Sweeper) Named(name string) *Sweeper {
	s.logger = slog.Default().With("component", name)
	return s
}

// WithRecorder reports every successful sweep to r.
func (s *Sweeper) WithRecorder(r SweepRecorder) *Sweeper {
	s.recorder = r
	return s
}

// Start schedules sweeps using standard cron syntax or a descriptor such
// as "@every 15m". The sweeper stops when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("sweeper started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Sweep runs one deletion pass and returns the number of removed records.
func (s *Sweeper) Sweep(ctx context.Context) int {
	deleted, err := s.expirer.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
		return 0
	}
	if s.recorder != nil {
		s.recorder.RecordSweep(deleted)
	}
	if deleted > 0 {
		s.logger.Info("sweep completed", "deleted_count", deleted)
	} else {
		s.logger.Debug("sweep completed, nothing expired")
	}
	return deleted
}

// Stop stops the schedule and waits for a running sweep.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("sweeper stopped")
	}
}

// NextRun returns the next scheduled sweep, or nil when not running.
func (s *Sweeper) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
