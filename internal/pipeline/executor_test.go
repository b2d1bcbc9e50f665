package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slicehouse/internal/store"
	"slicehouse/internal/stream"
)

func TestExecuteInitialBuild(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, 1, 10, 40)
	f.addOrder(t, 2, 10, 70)
	f.addOrder(t, 3, 11, 20)

	res := f.refresh(t, t0)
	require.Len(t, res.Steps, 2)

	assert.Equal(t, 110.0, f.tableRevenue(t, "customer_totals", 10))
	assert.Equal(t, 20.0, f.tableRevenue(t, "customer_totals", 11))

	// Only customer 10 crosses the 100 threshold.
	spenders, err := f.wh.Table("big_spenders")
	require.NoError(t, err)
	assert.Equal(t, 1, spenders.Count())
	assert.Equal(t, 110.0, f.tableRevenue(t, "big_spenders", 10))
}

func TestExecuteIncrementalRefresh(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 10; i++ {
		f.addOrder(t, i, i, 50)
	}
	f.refresh(t, t0)

	f.addOrder(t, 11, 1, 60)

	// Two hours later both tables are due.
	res := f.refresh(t, t0.Add(2*time.Hour))
	step, ok := stepFor(res, "customer_totals")
	require.True(t, ok, "steps: %s", fmtSteps(res))
	assert.Equal(t, ModeIncremental, step.Mode)

	// 50 from the initial order plus the incremental 60.
	assert.Equal(t, 110.0, f.tableRevenue(t, "customer_totals", 1))

	// The incremental upsert is an UPDATE on customer_totals, so the gold
	// table fell back to a full rebuild and still sees the new value.
	spenders, ok := stepFor(res, "big_spenders")
	require.True(t, ok)
	assert.Equal(t, ModeFull, spenders.Mode)
	assert.Equal(t, 110.0, f.tableRevenue(t, "big_spenders", 1))
}

func TestExecuteAdvancesStreams(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, 1, 10, 40)
	f.refresh(t, t0)

	// After the refresh the definition's stream is fully consumed; a plan at
	// the next due instant is a no-op, not a refresh.
	plan, err := f.planner.Plan(t0.Add(10 * time.Minute))
	require.NoError(t, err)
	assert.Empty(t, plan.Steps)
	assert.Contains(t, plan.NoOps, "customer_totals")
}

func TestFailedUpstreamSkipsDependents(t *testing.T) {
	wh := store.NewWarehouse()
	_, err := wh.Create("orders", "id")
	require.NoError(t, err)
	_, err = wh.Create("broken", "id")
	require.NoError(t, err)
	_, err = wh.Create("downstream", "id")
	require.NoError(t, err)

	g := NewGraph([]string{"orders"})
	require.NoError(t, g.Add(&Definition{
		Name: "broken", Layer: LayerSilver, Inputs: []string{"orders"},
		Lag: time.Minute, Mode: ModeFull, Key: "id",
		Build: func(ctx context.Context, r Reader) ([]store.Row, error) {
			return nil, fmt.Errorf("transform exploded")
		},
	}))
	require.NoError(t, g.Add(&Definition{
		Name: "downstream", Layer: LayerGold, Inputs: []string{"broken"},
		Lag: time.Minute, Mode: ModeFull, Key: "id", Build: noopBuild,
	}))
	require.NoError(t, g.Validate())

	streams := stream.NewManager(wh)
	state := NewState(10)
	planner := NewPlanner(g, streams, state, wh, 0.2)
	executor := NewExecutor(wh, streams, state, 2, 0, testLogger(t), nil)
	defer executor.Close()

	ordersTbl, err := wh.Table("orders")
	require.NoError(t, err)
	require.NoError(t, ordersTbl.Insert(store.Row{"id": 1}))

	plan, err := planner.Plan(t0)
	require.NoError(t, err)
	res, err := executor.Execute(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed())

	brokenStep, ok := stepFor(res, "broken")
	require.True(t, ok)
	assert.Error(t, brokenStep.Err)
	assert.False(t, brokenStep.Skipped)

	downStep, ok := stepFor(res, "downstream")
	require.True(t, ok)
	assert.True(t, downStep.Skipped)

	// The skipped table keeps its zero freshness clock and stays due.
	assert.True(t, state.Table("downstream").LastRefresh.IsZero())
}

// A wide depth level exercises the pool with many concurrent steps whose
// failures must stay isolated from each other and from the submit loop.
func TestExecuteConcurrentStepFailures(t *testing.T) {
	const silverCount = 60

	wh := store.NewWarehouse()
	_, err := wh.Create("orders", "id")
	require.NoError(t, err)

	g := NewGraph([]string{"orders"})
	for i := 0; i < silverCount; i++ {
		name := fmt.Sprintf("metric_%02d", i)
		_, err := wh.Create(name, "id")
		require.NoError(t, err)

		build := noopBuild
		if i%3 == 0 {
			build = func(ctx context.Context, r Reader) ([]store.Row, error) {
				return nil, fmt.Errorf("aggregation failed")
			}
		}
		require.NoError(t, g.Add(&Definition{
			Name: name, Layer: LayerSilver, Inputs: []string{"orders"},
			Lag: time.Minute, Mode: ModeFull, Key: "id", Build: build,
		}))
	}
	_, err = wh.Create("rollup_bad", "id")
	require.NoError(t, err)
	_, err = wh.Create("rollup_ok", "id")
	require.NoError(t, err)
	require.NoError(t, g.Add(&Definition{
		Name: "rollup_bad", Layer: LayerGold, Inputs: []string{"metric_00"},
		Lag: time.Minute, Mode: ModeFull, Key: "id", Build: noopBuild,
	}))
	require.NoError(t, g.Add(&Definition{
		Name: "rollup_ok", Layer: LayerGold, Inputs: []string{"metric_01"},
		Lag: time.Minute, Mode: ModeFull, Key: "id", Build: noopBuild,
	}))
	require.NoError(t, g.Validate())

	streams := stream.NewManager(wh)
	state := NewState(10)
	planner := NewPlanner(g, streams, state, wh, 0.2)
	executor := NewExecutor(wh, streams, state, 16, 0, testLogger(t), nil)
	defer executor.Close()

	ordersTbl, err := wh.Table("orders")
	require.NoError(t, err)
	require.NoError(t, ordersTbl.Insert(store.Row{"id": 1}))

	plan, err := planner.Plan(t0)
	require.NoError(t, err)
	res, err := executor.Execute(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, res.Steps, silverCount+2)
	assert.Equal(t, silverCount/3, res.Failed())

	failures, skips := 0, 0
	for _, s := range res.Steps {
		switch {
		case s.Skipped:
			skips++
		case s.Err != nil:
			failures++
		}
	}
	assert.Equal(t, silverCount/3, failures)
	assert.Equal(t, 1, skips)

	bad, ok := stepFor(res, "rollup_bad")
	require.True(t, ok)
	assert.True(t, bad.Skipped)
	good, ok := stepFor(res, "rollup_ok")
	require.True(t, ok)
	require.NoError(t, good.Err)
	assert.False(t, good.Skipped)
}

func TestHistoryRecordsRuns(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, 1, 10, 40)
	f.refresh(t, t0)

	hist := f.state.History()
	require.Len(t, hist, 2)
	// Newest first.
	assert.Equal(t, "big_spenders", hist[0].Table)
	assert.Equal(t, "customer_totals", hist[1].Table)
	assert.Empty(t, hist[0].Err)
}
