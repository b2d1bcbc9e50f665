package quality

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slicehouse/internal/proc"
	"slicehouse/internal/seed"
	"slicehouse/internal/store"
)

func seededWarehouse(t *testing.T) *store.Warehouse {
	t.Helper()
	wh := store.NewWarehouse()
	_, err := seed.Generate(context.Background(), wh, seed.Options{
		Seed: 7, Customers: 25, Days: 7, OrdersDay: 10,
		EndDate: time.Date(2025, 6, 29, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return wh
}

func resultFor(results []Result, name string) Result {
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	return Result{}
}

func TestSeededDataPassesAllChecks(t *testing.T) {
	wh := seededWarehouse(t)
	// Populate summaries so reconciliation has something to compare.
	_, err := proc.MergeDailySummaries(context.Background(), wh)
	require.NoError(t, err)

	results, err := RunAll(context.Background(), wh)
	require.NoError(t, err)
	require.Len(t, results, len(Checks()))
	for _, r := range results {
		assert.True(t, r.Passed(), "%s: %v %s", r.Name, r.Violations, r.Err)
	}
}

func TestChecksCatchViolations(t *testing.T) {
	wh := seededWarehouse(t)

	orders, err := wh.Table("orders")
	require.NoError(t, err)
	require.NoError(t, orders.Insert(store.Row{
		"id": 999991, "customer_id": 424242, "employee_id": 1, "location_id": 1,
		"channel": "ONLINE", "status": "COMPLETED",
		"placed_at": time.Date(2025, 6, 28, 18, 0, 0, 0, time.UTC), "total": -5.0,
	}))

	reviews, err := wh.Table("reviews")
	require.NoError(t, err)
	require.NoError(t, reviews.Insert(store.Row{
		"id": 999992, "order_id": 777777, "customer_id": 1, "rating": 9,
		"text": "off the scale", "created_at": time.Now(),
	}))

	customers, err := wh.Table("customers")
	require.NoError(t, err)
	require.NoError(t, customers.Update(1, store.Row{
		"id": 1, "email": "", "loyalty_points": 2000, "loyalty_tier": "MEMBER",
	}))

	results, err := RunAll(context.Background(), wh)
	require.NoError(t, err)

	assert.Equal(t, 1, resultFor(results, "orders_fk").Total)
	assert.Equal(t, 1, resultFor(results, "reviews_fk").Total)
	assert.Equal(t, 1, resultFor(results, "rating_range").Total)
	assert.Equal(t, 1, resultFor(results, "non_negative_totals").Total)
	assert.Equal(t, 1, resultFor(results, "unique_emails").Total)
	assert.Equal(t, 1, resultFor(results, "tier_consistency").Total)
}

func TestSummaryReconciliationCatchesDrift(t *testing.T) {
	wh := seededWarehouse(t)
	_, err := proc.MergeDailySummaries(context.Background(), wh)
	require.NoError(t, err)

	summaries, err := wh.Table("daily_sales_summary")
	require.NoError(t, err)
	rows := summaries.Scan()
	require.NotEmpty(t, rows)
	drifted := rows[0].Clone()
	drifted["revenue"] = drifted.Float("revenue") + 100
	require.NoError(t, summaries.Update(drifted["id"], drifted))

	results, err := RunAll(context.Background(), wh)
	require.NoError(t, err)
	rec := resultFor(results, "summary_reconciliation")
	assert.Equal(t, 1, rec.Total)
	assert.False(t, rec.Passed())
}

func TestViolationSamplesAreBounded(t *testing.T) {
	wh := seededWarehouse(t)
	reviews, err := wh.Table("reviews")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, reviews.Insert(store.Row{
			"id": 900000 + i, "order_id": 1, "customer_id": 1, "rating": 0,
			"text": "", "created_at": time.Now(),
		}))
	}

	results, err := RunAll(context.Background(), wh)
	require.NoError(t, err)
	rec := resultFor(results, "rating_range")
	assert.Equal(t, 10, rec.Total)
	assert.Len(t, rec.Violations, sampleLimit)
}
