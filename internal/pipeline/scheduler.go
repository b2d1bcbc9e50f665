package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler drives the planner/executor loop in watch mode. Cycles never
// overlap: each tick plans and executes to completion before the next tick is
// considered.
type Scheduler struct {
	clock    clockwork.Clock
	interval time.Duration
	planner  *Planner
	executor *Executor
	logger   *slog.Logger
	metrics  *Metrics
}

// NewScheduler creates a scheduler ticking at the given interval. When the
// interval is zero, the graph's minimum effective lag is used, floored at one
// second.
func NewScheduler(clock clockwork.Clock, interval time.Duration, graph *Graph,
	planner *Planner, executor *Executor, logger *slog.Logger, metrics *Metrics) *Scheduler {
	if interval <= 0 {
		interval = graph.MinLag()
	}
	if interval < time.Second {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clock:    clock,
		interval: interval,
		planner:  planner,
		executor: executor,
		logger:   logger,
		metrics:  metrics,
	}
}

// Interval returns the tick interval.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Run executes refresh cycles until the context is cancelled. The first cycle
// runs immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			s.cycle(ctx)
		}
	}
}

// RunOnce performs a single plan/execute cycle.
func (s *Scheduler) RunOnce(ctx context.Context) (*Result, error) {
	return s.cycle(ctx)
}

func (s *Scheduler) cycle(ctx context.Context) (*Result, error) {
	now := s.clock.Now()
	plan, err := s.planner.Plan(now)
	if err != nil {
		s.logger.Error("planning failed", "error", err)
		return nil, err
	}

	if plan.Empty() && len(plan.NoOps) == 0 {
		s.logger.Debug("nothing to refresh")
	}

	result, err := s.executor.Execute(ctx, plan)
	if err != nil {
		s.logger.Error("refresh cycle failed", "error", err)
		return nil, err
	}

	if s.metrics != nil {
		if statuses, serr := s.planner.Status(s.clock.Now()); serr == nil {
			s.metrics.ObserveStatus(statuses)
		}
	}
	if len(result.Steps) > 0 {
		s.logger.Info("refresh cycle complete",
			"steps", len(result.Steps), "failed", result.Failed(), "duration", result.Duration)
	}
	return result, nil
}
