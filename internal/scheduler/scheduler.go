// Package scheduler triggers ingestion runs: once at startup and then on a
// cron cadence.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/babcs2035/enzetsu-navi/internal/domain"
)

// Runner is the orchestrator's full-run entry point.
type Runner interface {
	RunAll(ctx context.Context) (*domain.RunReport, error)
}

type Scheduler struct {
	runner     Runner
	schedule   string
	runTimeout time.Duration
	cron       *cron.Cron
	started    atomic.Bool
	logger     *slog.Logger
}

func New(runner Runner, schedule string, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		schedule:   schedule,
		runTimeout: runTimeout,
		cron:       cron.New(),
		logger:     logger.With("component", "scheduler"),
	}
}

// Start runs one ingestion pass immediately, then registers the cron entry.
// Repeated calls are no-ops: the timer is registered at most once per process
// lifetime, so a restart-in-place cannot stack duplicate timers.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		s.logger.Warn("scheduler already started, ignoring")
		return nil
	}

	s.logger.Info("scheduler started", "schedule", s.schedule)

	s.run(ctx)

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.run(ctx)
	})
	if err != nil {
		return fmt.Errorf("register schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	report, err := s.runner.RunAll(runCtx)
	if err != nil {
		s.logger.Error("ingestion run failed", "error", err)
		return
	}

	s.logger.Info("scheduled run completed",
		"sources", len(report.Results),
		"failed", report.Failed(),
		"duration", report.Duration,
	)
}
