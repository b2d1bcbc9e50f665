package pipeline

import (
	"fmt"
	"time"

	"slicehouse/internal/store"
	"slicehouse/internal/stream"
)

// Step is one refresh the executor must perform.
type Step struct {
	Def    *Definition
	Mode   Mode
	Reason string
	Depth  int // Level among included steps; equal depths may run in parallel
}

// Plan is the outcome of one planning pass.
type Plan struct {
	At    time.Time
	Steps []Step   // Topological order, upstream first
	NoOps []string // Tables that were due but had no upstream changes
}

// Empty reports whether the plan has no refresh work.
func (p *Plan) Empty() bool { return len(p.Steps) == 0 }

// Planner decides which derived tables to refresh and how. A table is due
// when its effective lag has elapsed since the last refresh; a due table is
// only refreshed when at least one input actually changed. Upstreams with
// pending changes are folded in ahead of any refreshed dependent.
type Planner struct {
	graph     *Graph
	streams   *stream.Manager
	state     *State
	wh        *store.Warehouse
	threshold float64 // Change-volume fraction above which incremental loses to full
}

// NewPlanner creates a planner. threshold is the pending-change fraction of
// the target's row count above which AUTO definitions rebuild fully.
func NewPlanner(graph *Graph, streams *stream.Manager, state *State, wh *store.Warehouse, threshold float64) *Planner {
	if threshold <= 0 {
		threshold = 0.2
	}
	return &Planner{
		graph:     graph,
		streams:   streams,
		state:     state,
		wh:        wh,
		threshold: threshold,
	}
}

// streamName scopes a stream to one definition/input pair so definitions
// consume changes independently.
func streamName(def *Definition, input string) string {
	return def.Name + ":" + input
}

func (p *Planner) defStreams(def *Definition) ([]*stream.Stream, error) {
	out := make([]*stream.Stream, 0, len(def.Inputs))
	for _, input := range def.Inputs {
		s, err := p.streams.EnsureFromStart(streamName(def, input), input)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Plan computes the refresh plan for the given instant.
func (p *Planner) Plan(now time.Time) (*Plan, error) {
	defs := p.graph.Definitions()
	included := make(map[string]*Step, len(defs))
	plan := &Plan{At: now}

	// Pass 1: tables whose effective lag has elapsed.
	for _, def := range defs {
		st := p.state.Table(def.Name)
		never := st.LastRefresh.IsZero()
		due := never || now.Sub(st.LastRefresh) >= p.graph.EffectiveLag(def.Name)
		if !due {
			continue
		}

		changed, err := p.hasPendingChanges(def)
		if err != nil {
			return nil, err
		}
		// An included upstream counts as a pending change: its refresh lands
		// before this table's within the same plan.
		if !changed {
			for _, input := range def.Inputs {
				if included[input] != nil {
					changed = true
					break
				}
			}
		}
		switch {
		case never:
			included[def.Name] = &Step{Def: def, Reason: "initial build"}
		case changed:
			included[def.Name] = &Step{Def: def, Reason: "lag target reached"}
		default:
			// Due but nothing changed upstream: reset the freshness clock
			// without recomputing.
			plan.NoOps = append(plan.NoOps, def.Name)
		}
	}

	// Pass 2, downstream first: fold in upstreams with pending changes so
	// every refreshed table reads fresh inputs.
	for i := len(defs) - 1; i >= 0; i-- {
		def := defs[i]
		if included[def.Name] != nil {
			continue
		}
		dep := p.includedDependent(def.Name, included)
		if dep == "" {
			continue
		}
		changed, err := p.hasPendingChanges(def)
		if err != nil {
			return nil, err
		}
		if changed {
			included[def.Name] = &Step{Def: def, Reason: fmt.Sprintf("required by %s", dep)}
		}
	}

	// Assemble steps in topological order and pick refresh modes and depths.
	depth := make(map[string]int, len(included))
	for _, def := range defs {
		step, ok := included[def.Name]
		if !ok {
			continue
		}
		mode, err := p.chooseMode(def)
		if err != nil {
			return nil, err
		}
		step.Mode = mode

		d := 0
		for _, input := range def.Inputs {
			if up, ok := depth[input]; ok && up+1 > d {
				d = up + 1
			}
		}
		depth[def.Name] = d
		step.Depth = d
		plan.Steps = append(plan.Steps, *step)
	}

	return plan, nil
}

func (p *Planner) hasPendingChanges(def *Definition) (bool, error) {
	streams, err := p.defStreams(def)
	if err != nil {
		return false, err
	}
	for _, s := range streams {
		if s.HasData() {
			return true, nil
		}
	}
	return false, nil
}

func (p *Planner) includedDependent(name string, included map[string]*Step) string {
	for _, dep := range p.graph.Dependents(name) {
		if included[dep] != nil {
			return dep
		}
	}
	return ""
}

// chooseMode picks the refresh mode: incremental needs an apply function, a
// previous successful refresh, append-only pending changes, and (for AUTO)
// a change volume below the configured fraction of the target's size.
func (p *Planner) chooseMode(def *Definition) (Mode, error) {
	if !def.Incremental() {
		return ModeFull, nil
	}
	st := p.state.Table(def.Name)
	if st.LastRefresh.IsZero() {
		return ModeFull, nil
	}

	streams, err := p.defStreams(def)
	if err != nil {
		return ModeFull, err
	}
	pending := 0
	for _, s := range streams {
		if !s.AppendOnly() {
			return ModeFull, nil
		}
		pending += s.PendingCount()
	}

	if def.Mode == ModeIncremental {
		return ModeIncremental, nil
	}

	target, err := p.wh.Table(def.Name)
	if err != nil {
		return ModeFull, nil
	}
	size := target.Count()
	if size == 0 {
		return ModeFull, nil
	}
	if float64(pending) > p.threshold*float64(size) {
		return ModeFull, nil
	}
	return ModeIncremental, nil
}

// TableStatus is a point-in-time view of one derived table for status output.
type TableStatus struct {
	Name         string
	Layer        Layer
	Lag          time.Duration
	EffectiveLag time.Duration
	Staleness    time.Duration // Time since last successful refresh; -1 if never
	Pending      int           // Unconsumed upstream change events
	LastMode     Mode
	LastRows     int
	LastDuration time.Duration
	LastError    string
}

// Status reports the state of every definition in topological order.
func (p *Planner) Status(now time.Time) ([]TableStatus, error) {
	var out []TableStatus
	for _, def := range p.graph.Definitions() {
		st := p.state.Table(def.Name)
		staleness := time.Duration(-1)
		if !st.LastRefresh.IsZero() {
			staleness = now.Sub(st.LastRefresh)
		}
		streams, err := p.defStreams(def)
		if err != nil {
			return nil, err
		}
		pending := 0
		for _, s := range streams {
			pending += s.PendingCount()
		}
		out = append(out, TableStatus{
			Name:         def.Name,
			Layer:        def.Layer,
			Lag:          def.Lag,
			EffectiveLag: p.graph.EffectiveLag(def.Name),
			Staleness:    staleness,
			Pending:      pending,
			LastMode:     st.LastMode,
			LastRows:     st.LastRows,
			LastDuration: st.LastDuration,
			LastError:    st.LastError,
		})
	}
	return out, nil
}
