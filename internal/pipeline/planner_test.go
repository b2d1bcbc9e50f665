package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestPlanInitialBuildIsFull(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, 1, 10, 40)

	plan, err := f.planner.Plan(t0)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)

	assert.Equal(t, "customer_totals", plan.Steps[0].Def.Name)
	assert.Equal(t, ModeFull, plan.Steps[0].Mode)
	assert.Equal(t, "initial build", plan.Steps[0].Reason)
	assert.Equal(t, 0, plan.Steps[0].Depth)

	assert.Equal(t, "big_spenders", plan.Steps[1].Def.Name)
	assert.Equal(t, ModeFull, plan.Steps[1].Mode)
	assert.Equal(t, 1, plan.Steps[1].Depth)
}

func TestPlanNothingDueBeforeLag(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, 1, 10, 40)
	f.refresh(t, t0)

	f.addOrder(t, 2, 10, 60)

	// One minute later: customer_totals (5m lag) is not yet due.
	plan, err := f.planner.Plan(t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, plan.Steps)
	assert.Empty(t, plan.NoOps)
}

func TestPlanDueWithoutChangesIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, 1, 10, 40)
	f.refresh(t, t0)

	plan, err := f.planner.Plan(t0.Add(10 * time.Minute))
	require.NoError(t, err)
	assert.Empty(t, plan.Steps)
	assert.Contains(t, plan.NoOps, "customer_totals")
}

func TestPlanPicksIncrementalForAppendOnlyChanges(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 10; i++ {
		f.addOrder(t, i, i, 50)
	}
	f.refresh(t, t0)

	// Two inserts against ten existing rows is under the 0.5 threshold.
	f.addOrder(t, 11, 1, 25)
	f.addOrder(t, 12, 2, 25)

	plan, err := f.planner.Plan(t0.Add(10 * time.Minute))
	require.NoError(t, err)
	require.NotEmpty(t, plan.Steps, "plan: %s", fmtSteps(&Result{}))
	assert.Equal(t, "customer_totals", plan.Steps[0].Def.Name)
	assert.Equal(t, ModeIncremental, plan.Steps[0].Mode)
}

func TestPlanFallsBackToFullOnUpdates(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, 1, 10, 40)
	f.refresh(t, t0)

	require.NoError(t, f.orders.Update(1, map[string]interface{}{"id": 1, "customer_id": 10, "total": 99.0}))

	plan, err := f.planner.Plan(t0.Add(10 * time.Minute))
	require.NoError(t, err)
	require.NotEmpty(t, plan.Steps)
	assert.Equal(t, ModeFull, plan.Steps[0].Mode)
}

func TestPlanFallsBackToFullOnLargeChangeVolume(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, 1, 10, 40)
	f.addOrder(t, 2, 11, 40)
	f.refresh(t, t0)

	// Three inserts against a two-row target exceeds the 0.5 fraction.
	f.addOrder(t, 3, 12, 10)
	f.addOrder(t, 4, 13, 10)
	f.addOrder(t, 5, 14, 10)

	plan, err := f.planner.Plan(t0.Add(10 * time.Minute))
	require.NoError(t, err)
	require.NotEmpty(t, plan.Steps)
	assert.Equal(t, ModeFull, plan.Steps[0].Mode)
}

func TestPlanFoldsUpstreamAheadOfDueDependent(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, 1, 10, 150)
	f.refresh(t, t0)

	f.addOrder(t, 2, 11, 200)

	// Only big_spenders (1h lag) is due, but its upstream has pending
	// changes and must refresh first. customer_totals' effective lag is
	// already tightened to 5m by the dependent, so it is due as well; both
	// paths must agree on the ordering.
	plan, err := f.planner.Plan(t0.Add(2 * time.Hour))
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "customer_totals", plan.Steps[0].Def.Name)
	assert.Equal(t, "big_spenders", plan.Steps[1].Def.Name)
	assert.Less(t, plan.Steps[0].Depth, plan.Steps[1].Depth)
}

func TestPlanIncludesDownstreamOfRefreshedUpstream(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, 1, 10, 150)
	f.refresh(t, t0)

	f.addOrder(t, 2, 11, 200)

	// big_spenders has no direct pending changes at plan time; its input
	// refresh lands within the same plan and must pull it in.
	plan, err := f.planner.Plan(t0.Add(2 * time.Hour))
	require.NoError(t, err)

	var names []string
	for _, s := range plan.Steps {
		names = append(names, s.Def.Name)
	}
	assert.Contains(t, names, "big_spenders")
}

func TestStatusReportsStalenessAndPending(t *testing.T) {
	f := newFixture(t)
	f.addOrder(t, 1, 10, 40)
	f.refresh(t, t0)
	f.addOrder(t, 2, 11, 60)

	statuses, err := f.planner.Status(t0.Add(3 * time.Minute))
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	totals := statuses[0]
	assert.Equal(t, "customer_totals", totals.Name)
	assert.Equal(t, 5*time.Minute, totals.Lag)
	assert.Equal(t, 1, totals.Pending)
	assert.InDelta(t, (3 * time.Minute).Seconds(), totals.Staleness.Seconds(), 5)
}
