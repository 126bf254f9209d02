package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tjusucks/parkops/internal/clock"
	"github.com/tjusucks/parkops/internal/domain"
)

// PassRunner triggers one full reconciliation pass.
type PassRunner interface {
	RunAll(ctx context.Context, recordTime time.Time) (PassSummary, error)
}

const (
	defaultReconcileInterval = 15 * time.Minute
	defaultFailureCooldown   = time.Minute
)

// Scheduler drives the reconciler on a fixed interval. After a pass-level
// failure it waits a short cooldown instead of tightening the loop, and it
// exits promptly when the context is cancelled.
type Scheduler struct {
	runner   PassRunner
	clock    clock.Clock
	logger   *slog.Logger
	interval time.Duration
	cooldown time.Duration
}

func NewScheduler(runner PassRunner, clk clock.Clock, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		runner:   runner,
		clock:    clk,
		logger:   logger,
		interval: defaultReconcileInterval,
		cooldown: defaultFailureCooldown,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SchedulerOption func(*Scheduler)

// WithInterval overrides the reconciliation interval.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithCooldown overrides the wait after a failed pass.
func WithCooldown(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// Run loops until ctx is cancelled and returns the context's error.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("traffic stat scheduler started", "interval", s.interval)
	defer s.logger.Info("traffic stat scheduler stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		recordTime := domain.QuantizeRecordTime(s.clock.Now())
		wait := s.interval

		summary, err := s.runner.RunAll(ctx, recordTime)
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			// The select below returns promptly once ctx is done.
		case err != nil:
			s.logger.Error("reconciliation pass failed", "error", err)
			wait = s.cooldown
		default:
			s.logger.Info("reconciliation pass complete",
				"record_time", recordTime,
				"total", summary.Total,
				"processed", summary.Processed,
				"failed", summary.Failed,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
