package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alitto/pond/v2"

	"slicehouse/internal/store"
	"slicehouse/internal/stream"
	"slicehouse/pkg/errors"
)

// StepResult is the outcome of one executed refresh step.
type StepResult struct {
	Table    string
	Mode     Mode
	Rows     int // Rows written (full) or mutations applied (incremental)
	Duration time.Duration
	Err      error
	Skipped  bool // True when an upstream step failed this cycle
}

// Result is the outcome of one executed plan.
type Result struct {
	Started  time.Time
	Duration time.Duration
	Steps    []StepResult
}

// Failed returns the number of failed steps.
func (r *Result) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Err != nil && !s.Skipped {
			n++
		}
	}
	return n
}

// Executor runs refresh plans. Steps at the same depth run concurrently on a
// bounded worker pool; a failed step skips its downstream dependents for the
// cycle and leaves their freshness clocks untouched.
type Executor struct {
	wh         *store.Warehouse
	streams    *stream.Manager
	state      *State
	pool       pond.Pool
	maxRetries int
	logger     *slog.Logger
	metrics    *Metrics
}

// NewExecutor creates an executor with the given worker pool size and
// per-step retry budget. metrics may be nil.
func NewExecutor(wh *store.Warehouse, streams *stream.Manager, state *State,
	maxParallel, maxRetries int, logger *slog.Logger, metrics *Metrics) *Executor {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		wh:         wh,
		streams:    streams,
		state:      state,
		pool:       pond.NewPool(maxParallel),
		maxRetries: maxRetries,
		logger:     logger,
		metrics:    metrics,
	}
}

// Close stops the worker pool, waiting for in-flight steps to finish. The
// executor must not be used afterwards.
func (e *Executor) Close() {
	e.pool.StopAndWait()
}

// Execute runs the plan and returns per-step results. The returned error is
// non-nil only for infrastructure failures; individual step failures are
// reported in the result.
func (e *Executor) Execute(ctx context.Context, plan *Plan) (*Result, error) {
	started := time.Now()
	result := &Result{Started: started}

	for _, name := range plan.NoOps {
		e.state.RecordNoOp(name, plan.At)
		e.logger.Debug("freshness clock reset without refresh", "table", name)
	}

	if plan.Empty() {
		result.Duration = time.Since(started)
		return result, nil
	}

	// Group steps by depth; each level waits for the previous one.
	maxDepth := 0
	for _, s := range plan.Steps {
		if s.Depth > maxDepth {
			maxDepth = s.Depth
		}
	}

	failed := make(map[string]bool)
	var mu sync.Mutex

	for depth := 0; depth <= maxDepth; depth++ {
		// Same-depth workers write failed concurrently with this submit loop,
		// so reads go through a per-depth snapshot. Upstream failures can only
		// come from lower depths, which have already drained.
		mu.Lock()
		failedAbove := make(map[string]bool, len(failed))
		for name := range failed {
			failedAbove[name] = true
		}
		mu.Unlock()

		group := e.pool.NewGroup()
		for _, step := range plan.Steps {
			if step.Depth != depth {
				continue
			}
			step := step

			// Skip steps below a failed upstream.
			if upstream := e.failedUpstream(step.Def, failedAbove); upstream != "" {
				e.logger.Warn("skipping refresh, upstream failed",
					"table", step.Def.Name, "upstream", upstream)
				mu.Lock()
				failed[step.Def.Name] = true
				result.Steps = append(result.Steps, StepResult{
					Table:   step.Def.Name,
					Mode:    step.Mode,
					Skipped: true,
					Err: errors.New(errors.ErrCodeRefreshSkipped,
						fmt.Sprintf("upstream %s failed", upstream)),
				})
				mu.Unlock()
				continue
			}

			group.Submit(func() {
				res := e.runStep(ctx, step, plan.At)
				mu.Lock()
				if res.Err != nil {
					failed[step.Def.Name] = true
				}
				result.Steps = append(result.Steps, res)
				mu.Unlock()
			})
		}
		group.Wait()
	}

	result.Duration = time.Since(started)
	if e.metrics != nil {
		e.metrics.CycleDuration.Observe(result.Duration.Seconds())
	}
	return result, nil
}

func (e *Executor) failedUpstream(def *Definition, failed map[string]bool) string {
	for _, input := range def.Inputs {
		if failed[input] {
			return input
		}
	}
	return ""
}

func (e *Executor) runStep(ctx context.Context, step Step, at time.Time) StepResult {
	def := step.Def
	started := time.Now()

	var rows int
	mode := step.Mode
	retryCfg := &RetryAdapter{MaxRetries: e.maxRetries}
	err := errors.Retry(ctx, retryCfg.Config(), func(ctx context.Context) error {
		n, m, err := e.refreshOnce(ctx, def, step.Mode)
		rows, mode = n, m
		return err
	})

	d := time.Since(started)
	res := StepResult{Table: def.Name, Mode: mode, Rows: rows, Duration: d, Err: err}

	if err != nil {
		e.state.RecordFailure(def.Name, mode, at, d, err)
		e.logger.Error("refresh failed", "table", def.Name, "mode", mode, "error", err)
		if e.metrics != nil {
			e.metrics.RefreshTotal.WithLabelValues(def.Name, string(mode), "error").Inc()
		}
		return res
	}

	e.state.RecordSuccess(def.Name, mode, at, d, rows)
	e.logger.Info("refreshed", "table", def.Name, "mode", mode,
		"rows", rows, "duration", d, "reason", step.Reason)
	if e.metrics != nil {
		e.metrics.RefreshTotal.WithLabelValues(def.Name, string(mode), "ok").Inc()
		e.metrics.LastRefreshRows.WithLabelValues(def.Name).Set(float64(rows))
	}
	return res
}

// refreshOnce performs a single refresh attempt and returns the mode that was
// actually used. Input offsets are captured before the transform runs so
// changes arriving mid-refresh are not lost.
func (e *Executor) refreshOnce(ctx context.Context, def *Definition, mode Mode) (int, Mode, error) {
	target, err := e.wh.Table(def.Name)
	if err != nil {
		return 0, mode, err
	}

	type capture struct {
		s       *stream.Stream
		upTo    int64
		pending []store.ChangeEvent
	}
	captures := make([]capture, 0, len(def.Inputs))
	changes := make(map[string][]store.ChangeEvent, len(def.Inputs))
	appendOnly := true
	for _, input := range def.Inputs {
		s, err := e.streams.EnsureFromStart(streamName(def, input), input)
		if err != nil {
			return 0, mode, err
		}
		pending := s.Pending()
		upTo := s.Offset()
		for _, ev := range pending {
			if ev.Seq > upTo {
				upTo = ev.Seq
			}
			if ev.Action != store.ActionInsert {
				appendOnly = false
			}
		}
		captures = append(captures, capture{s: s, upTo: upTo, pending: pending})
		changes[input] = pending
	}

	// Upstream rebuilds earlier in the cycle may have broken the append-only
	// assumption the planner made; fall back to a full rebuild.
	if mode == ModeIncremental && !appendOnly {
		mode = ModeFull
	}

	var rows int
	switch mode {
	case ModeIncremental:
		muts, err := def.Apply(ctx, NewReader(e.wh), changes)
		if err != nil {
			return 0, mode, errors.RefreshError(def.Name, err)
		}
		for _, m := range muts {
			switch m.Kind {
			case MutationUpsert:
				if err := target.Upsert(m.Row); err != nil {
					return 0, mode, errors.RefreshError(def.Name, err)
				}
			case MutationDelete:
				if err := target.Delete(m.Row[target.Key()]); err != nil {
					return 0, mode, errors.RefreshError(def.Name, err)
				}
			}
		}
		rows = len(muts)
	default:
		built, err := def.Build(ctx, NewReader(e.wh))
		if err != nil {
			return 0, mode, errors.RefreshError(def.Name, err)
		}
		if err := target.Replace(built); err != nil {
			return 0, mode, errors.RefreshError(def.Name, err)
		}
		rows = len(built)
	}

	for _, c := range captures {
		if err := c.s.Advance(c.upTo); err != nil {
			return rows, mode, errors.RefreshError(def.Name, err)
		}
	}
	return rows, mode, nil
}

// RetryAdapter builds a retry config for refresh steps.
type RetryAdapter struct {
	MaxRetries int
}

// Config returns the retry configuration. Refresh errors are recoverable;
// validation and definition errors abort immediately.
func (a *RetryAdapter) Config() *errors.RetryConfig {
	cfg := errors.DefaultRetryConfig()
	cfg.MaxRetries = a.MaxRetries
	cfg.InitialDelay = 50 * time.Millisecond
	cfg.MaxDelay = 2 * time.Second
	return cfg
}
