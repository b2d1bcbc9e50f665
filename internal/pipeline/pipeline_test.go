package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"slicehouse/internal/store"
	"slicehouse/internal/stream"
)

// fixture wires a tiny two-level pipeline over an orders base table:
// orders -> customer_totals (incremental-capable) -> big_spenders.
type fixture struct {
	wh       *store.Warehouse
	orders   *store.Table
	streams  *stream.Manager
	state    *State
	graph    *Graph
	planner  *Planner
	executor *Executor
}

func buildTotals(ctx context.Context, r Reader) ([]store.Row, error) {
	orders, err := r.Scan("orders")
	if err != nil {
		return nil, err
	}
	sums := map[int]float64{}
	for _, o := range orders {
		sums[o.Int("customer_id")] += o.Float("total")
	}
	var out []store.Row
	for cid, sum := range sums {
		out = append(out, store.Row{"customer_id": cid, "revenue": sum})
	}
	return out, nil
}

func applyTotals(ctx context.Context, r Reader, changes map[string][]store.ChangeEvent) ([]Mutation, error) {
	deltas := map[int]float64{}
	for _, ev := range changes["orders"] {
		deltas[ev.Row.Int("customer_id")] += ev.Row.Float("total")
	}
	var muts []Mutation
	for cid, delta := range deltas {
		revenue := delta
		if cur, ok := r.Lookup("customer_totals", cid); ok {
			revenue += cur.Float("revenue")
		}
		muts = append(muts, Mutation{
			Kind: MutationUpsert,
			Row:  store.Row{"customer_id": cid, "revenue": revenue},
		})
	}
	return muts, nil
}

func buildBigSpenders(ctx context.Context, r Reader) ([]store.Row, error) {
	totals, err := r.Scan("customer_totals")
	if err != nil {
		return nil, err
	}
	var out []store.Row
	for _, t := range totals {
		if t.Float("revenue") >= 100 {
			out = append(out, store.Row{"customer_id": t.Int("customer_id"), "revenue": t.Float("revenue")})
		}
	}
	return out, nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	wh := store.NewWarehouse()
	orders, err := wh.Create("orders", "id")
	require.NoError(t, err)
	_, err = wh.Create("customer_totals", "customer_id")
	require.NoError(t, err)
	_, err = wh.Create("big_spenders", "customer_id")
	require.NoError(t, err)

	g := NewGraph([]string{"orders"})
	require.NoError(t, g.Add(&Definition{
		Name:   "customer_totals",
		Layer:  LayerSilver,
		Inputs: []string{"orders"},
		Lag:    5 * time.Minute,
		Mode:   ModeAuto,
		Key:    "customer_id",
		Build:  buildTotals,
		Apply:  applyTotals,
	}))
	require.NoError(t, g.Add(&Definition{
		Name:   "big_spenders",
		Layer:  LayerGold,
		Inputs: []string{"customer_totals"},
		Lag:    time.Hour,
		Mode:   ModeFull,
		Key:    "customer_id",
		Build:  buildBigSpenders,
	}))
	require.NoError(t, g.Validate())

	streams := stream.NewManager(wh)
	state := NewState(50)
	planner := NewPlanner(g, streams, state, wh, 0.5)
	executor := NewExecutor(wh, streams, state, 2, 0, testLogger(t), nil)
	t.Cleanup(executor.Close)

	return &fixture{
		wh: wh, orders: orders, streams: streams,
		state: state, graph: g, planner: planner, executor: executor,
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func testLogger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func (f *fixture) addOrder(t *testing.T, id, customer int, total float64) {
	t.Helper()
	require.NoError(t, f.orders.Insert(store.Row{"id": id, "customer_id": customer, "total": total}))
}

func (f *fixture) refresh(t *testing.T, now time.Time) *Result {
	t.Helper()
	plan, err := f.planner.Plan(now)
	require.NoError(t, err)
	res, err := f.executor.Execute(context.Background(), plan)
	require.NoError(t, err)
	for _, s := range res.Steps {
		if s.Err != nil {
			t.Fatalf("step %s failed: %v", s.Table, s.Err)
		}
	}
	return res
}

func (f *fixture) tableRevenue(t *testing.T, table string, customer int) float64 {
	t.Helper()
	tbl, err := f.wh.Table(table)
	require.NoError(t, err)
	row, ok := tbl.Get(customer)
	if !ok {
		return 0
	}
	return row.Float("revenue")
}

func stepFor(res *Result, table string) (StepResult, bool) {
	for _, s := range res.Steps {
		if s.Table == table {
			return s, true
		}
	}
	return StepResult{}, false
}

func fmtSteps(res *Result) string {
	out := ""
	for _, s := range res.Steps {
		out += fmt.Sprintf("%s(%s) ", s.Table, s.Mode)
	}
	return out
}
