package task

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"slicehouse/internal/store"
	"slicehouse/pkg/errors"
)

const defaultHistorySize = 50

// Metrics are the task runner's Prometheus collectors.
type Metrics struct {
	RunsTotal *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
}

// NewMetrics registers task collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slicehouse", Subsystem: "task",
			Name: "runs_total", Help: "Task executions by result.",
		}, []string{"task", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "slicehouse", Subsystem: "task",
			Name: "run_duration_seconds", Help: "Task execution duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
	}
	reg.MustRegister(m.RunsTotal, m.Duration)
	return m
}

// Runner schedules tasks on a clock. Interval tasks fire when their interval
// has elapsed since their last run; chained tasks fire after their parent
// succeeds. Runs never overlap: a cycle that arrives while one is in flight
// is skipped.
type Runner struct {
	clock    clockwork.Clock
	wh       *store.Warehouse
	logger   *slog.Logger
	metrics  *Metrics
	tasks    []Task
	scheds   map[string]schedule
	children map[string][]string
	disabled map[string]bool

	runMu   sync.Mutex // Held for the duration of a cycle
	mu      sync.Mutex // Guards lastRun and history
	lastRun map[string]time.Time
	history []RunRecord
	histCap int
}

// NewRunner validates the task set and builds a runner. Chained tasks must
// reference an existing parent and must not form a cycle.
func NewRunner(clock clockwork.Clock, wh *store.Warehouse, tasks []Task, opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		clock:    clock,
		wh:       wh,
		logger:   slog.Default(),
		tasks:    tasks,
		scheds:   make(map[string]schedule, len(tasks)),
		children: make(map[string][]string),
		disabled: make(map[string]bool),
		lastRun:  make(map[string]time.Time),
		histCap:  defaultHistorySize,
	}
	for _, o := range opts {
		o(r)
	}

	for _, t := range tasks {
		if _, dup := r.scheds[t.Name]; dup {
			return nil, errors.New(errors.ErrCodePipelineDuplicate,
				fmt.Sprintf("duplicate task %s", t.Name))
		}
		if t.Run == nil {
			return nil, errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("task %s has no body", t.Name))
		}
		sched, err := parseSchedule(t.Schedule)
		if err != nil {
			return nil, err
		}
		r.scheds[t.Name] = sched
	}
	for name, sched := range r.scheds {
		if !sched.chained() {
			continue
		}
		if _, ok := r.scheds[sched.after]; !ok {
			return nil, errors.New(errors.ErrCodePipelineUnknownInput,
				fmt.Sprintf("task %s runs after unknown task %s", name, sched.after))
		}
		r.children[sched.after] = append(r.children[sched.after], name)
	}
	for _, kids := range r.children {
		sort.Strings(kids)
	}
	if err := r.checkCycles(); err != nil {
		return nil, err
	}
	return r, nil
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithDisabled skips the named tasks and their chained children.
func WithDisabled(names []string) RunnerOption {
	return func(r *Runner) {
		for _, n := range names {
			r.disabled[n] = true
		}
	}
}

// WithHistorySize bounds the kept run history.
func WithHistorySize(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.histCap = n
		}
	}
}

func (r *Runner) checkCycles() error {
	for name, sched := range r.scheds {
		seen := map[string]bool{name: true}
		for cur := sched; cur.chained(); cur = r.scheds[cur.after] {
			if seen[cur.after] {
				return errors.New(errors.ErrCodePipelineCycle,
					fmt.Sprintf("task chain cycle involving %s", name))
			}
			seen[cur.after] = true
		}
	}
	return nil
}

// Tasks returns the configured task set.
func (r *Runner) Tasks() []Task { return r.tasks }

// Due returns the interval tasks whose interval has elapsed at now.
func (r *Runner) Due(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []string
	for _, t := range r.tasks {
		sched := r.scheds[t.Name]
		if sched.chained() || r.disabled[t.Name] {
			continue
		}
		last, ran := r.lastRun[t.Name]
		if !ran || now.Sub(last) >= sched.every {
			due = append(due, t.Name)
		}
	}
	return due
}

// RunDue executes every due interval task and cascades to chained children of
// the ones that succeed. It returns the run records of this cycle. If another
// cycle is in flight it returns nil immediately.
func (r *Runner) RunDue(ctx context.Context) ([]RunRecord, error) {
	if !r.runMu.TryLock() {
		r.logger.Warn("task cycle skipped, previous cycle still running")
		return nil, nil
	}
	defer r.runMu.Unlock()

	now := r.clock.Now()
	var records []RunRecord
	for _, name := range r.Due(now) {
		recs, err := r.runChain(ctx, name, now)
		records = append(records, recs...)
		if err != nil {
			return records, err
		}
	}
	return records, nil
}

// RunTask executes one task by name immediately, then its chained children.
func (r *Runner) RunTask(ctx context.Context, name string) ([]RunRecord, error) {
	if _, ok := r.scheds[name]; !ok {
		return nil, errors.New(errors.ErrCodePipelineUnknownInput,
			fmt.Sprintf("unknown task %s", name))
	}
	r.runMu.Lock()
	defer r.runMu.Unlock()
	return r.runChain(ctx, name, r.clock.Now())
}

// runChain executes the named task; on success its children follow.
func (r *Runner) runChain(ctx context.Context, name string, now time.Time) ([]RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := r.runOne(ctx, name, now)
	records := []RunRecord{rec}
	if rec.Failed() {
		return records, nil
	}
	for _, child := range r.children[name] {
		if r.disabled[child] {
			continue
		}
		recs, err := r.runChain(ctx, child, now)
		records = append(records, recs...)
		if err != nil {
			return records, err
		}
	}
	return records, nil
}

func (r *Runner) runOne(ctx context.Context, name string, now time.Time) RunRecord {
	var body Func
	for _, t := range r.tasks {
		if t.Name == name {
			body = t.Run
			break
		}
	}

	start := r.clock.Now()
	rows, err := body(ctx, r.wh, now)
	rec := RunRecord{Task: name, At: now, Duration: r.clock.Since(start), Rows: rows}
	result := "success"
	if err != nil {
		rec.Err = err.Error()
		result = "failure"
		r.logger.Error("task failed", "task", name, "error", err)
	} else {
		r.logger.Info("task completed", "task", name, "rows", rows, "duration", rec.Duration)
	}
	if r.metrics != nil {
		r.metrics.RunsTotal.WithLabelValues(name, result).Inc()
		r.metrics.Duration.WithLabelValues(name).Observe(rec.Duration.Seconds())
	}

	r.mu.Lock()
	r.lastRun[name] = now
	r.history = append([]RunRecord{rec}, r.history...)
	if len(r.history) > r.histCap {
		r.history = r.history[:r.histCap]
	}
	r.mu.Unlock()
	return rec
}

// History returns run records, newest first.
func (r *Runner) History() []RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunRecord, len(r.history))
	copy(out, r.history)
	return out
}

// Loop runs due tasks on the given interval until the context is cancelled.
func (r *Runner) Loop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunDue(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}
