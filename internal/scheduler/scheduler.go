package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"social_scheduler/internal/domain"
	"social_scheduler/internal/metrics"
)

const DefaultTickTimeout = 30 * time.Minute

// Runner is one pass of a polling loop.
type Runner interface {
	Tick(ctx context.Context) (*domain.TickStats, error)
}

type Scheduler struct {
	name        string
	runner      Runner
	interval    time.Duration
	tickTimeout time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewScheduler(name string, runner Runner, interval, tickTimeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	if tickTimeout <= 0 {
		tickTimeout = DefaultTickTimeout
	}
	return &Scheduler{
		name:        name,
		runner:      runner,
		interval:    interval,
		tickTimeout: tickTimeout,
		metrics:     m,
		logger:      logger.With("loop", name),
	}
}

// Start runs a tick immediately and then once per interval until ctx is done.
// Ticks never overlap: a slow tick delays the next one.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "tick_timeout", s.tickTimeout)

	s.runTick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, s.tickTimeout)
	defer cancel()

	started := time.Now()
	stats, err := s.safeTick(tickCtx)
	if stats == nil {
		stats = &domain.TickStats{Loop: s.name, StartedAt: started, Duration: time.Since(started)}
	}
	s.metrics.ObserveTick(stats, err)

	if err != nil {
		s.logger.Error("tick failed", "error", err)
	}
}

func (s *Scheduler) safeTick(ctx context.Context) (stats *domain.TickStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			stats = nil
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	return s.runner.Tick(ctx)
}
