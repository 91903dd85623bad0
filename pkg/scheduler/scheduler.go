// Package scheduler runs periodic integrity sweeps in the background.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/libreary/libreary/internal/logger"
	"github.com/libreary/libreary/pkg/config"
	"github.com/libreary/libreary/pkg/manager"
)

// Checker is the slice of the archive the scheduler drives. CheckDue honors
// the per-level check frequencies, so a short scheduler interval does not
// force full sweeps.
type Checker interface {
	CheckDue(ctx context.Context, deep, repair bool) (*manager.Report, error)
}

// Scheduler triggers a repairing sweep on a fixed interval.
type Scheduler struct {
	checker  Checker
	interval time.Duration
	deep     bool

	stopCh    chan struct{}
	stoppedCh chan struct{}
	started   bool

	mu         sync.Mutex
	sweeps     int
	failed     int
	lastReport *manager.Report
	lastError  error
	lastRunAt  time.Time
}

// New creates a scheduler from configuration.
func New(checker Checker, cfg config.SchedulerConfig) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		checker:   checker,
		interval:  interval,
		deep:      cfg.Deep,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start begins the sweep loop. The first sweep runs after one interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	logger.Info("Starting integrity scheduler",
		"interval", s.interval.String(), logger.Deep(s.deep))
	go s.loop(ctx)
}

// Stop shuts the loop down, waiting up to timeout for an in-flight sweep.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.stoppedCh:
		logger.Info("Integrity scheduler stopped")
	case <-time.After(timeout):
		logger.Warn("Integrity scheduler stop timed out")
	}
}

// RunNow triggers one sweep synchronously, outside the timer.
func (s *Scheduler) RunNow(ctx context.Context) (*manager.Report, error) {
	return s.sweep(ctx)
}

// Stats reports sweep counters and the last outcome.
func (s *Scheduler) Stats() (sweeps, failed int, lastReport *manager.Report, lastRunAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeps, s.failed, s.lastReport, s.lastRunAt
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.sweep(ctx); err != nil {
				logger.Error("Scheduled sweep failed", logger.Err(err))
			}
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) (*manager.Report, error) {
	report, err := s.checker.CheckDue(ctx, s.deep, true)

	s.mu.Lock()
	s.sweeps++
	s.lastRunAt = time.Now()
	s.lastError = err
	if err != nil {
		s.failed++
	} else {
		s.lastReport = report
	}
	s.mu.Unlock()

	return report, err
}
