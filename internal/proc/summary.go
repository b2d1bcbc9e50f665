// Package proc holds the business procedures the scheduled tasks run: daily
// summary merges, loyalty awards, RFM scoring, revenue anomaly flagging,
// menu recommendations and order payload validation. Each procedure is a
// short, single-purpose routine over warehouse tables.
package proc

import (
	"context"
	"fmt"
	"time"

	"slicehouse/internal/store"
	"slicehouse/pkg/errors"
	"slicehouse/pkg/models"
)

const dateLayout = "2006-01-02"

// summaryKey builds the daily_sales_summary key for a location and day.
func summaryKey(locationID int, day string) string {
	return fmt.Sprintf("%d|%s", locationID, day)
}

// MergeDailySummaries loops over locations and merges one summary row per
// location and day from completed orders. Existing rows are overwritten, so
// re-running after late-arriving orders is safe.
func MergeDailySummaries(ctx context.Context, wh *store.Warehouse) (int, error) {
	orders, err := wh.Table("orders")
	if err != nil {
		return 0, err
	}
	items, err := wh.Table("order_items")
	if err != nil {
		return 0, err
	}
	locations, err := wh.Table("locations")
	if err != nil {
		return 0, err
	}
	summary, err := wh.Table("daily_sales_summary")
	if err != nil {
		return 0, err
	}

	// Items sold per order.
	itemCounts := map[int]int{}
	for _, it := range items.Scan() {
		itemCounts[it.Int("order_id")] += it.Int("quantity")
	}

	type agg struct {
		orders  int
		items   int
		revenue float64
	}
	perDay := map[string]*agg{}
	for _, o := range orders.Scan() {
		if o.String("status") != models.OrderCompleted {
			continue
		}
		day := o.Time("placed_at").UTC().Format(dateLayout)
		key := summaryKey(o.Int("location_id"), day)
		a := perDay[key]
		if a == nil {
			a = &agg{}
			perDay[key] = a
		}
		a.orders++
		a.items += itemCounts[o.Int("id")]
		a.revenue += o.Float("total")
	}

	merged := 0
	for _, loc := range locations.Scan() {
		if err := ctx.Err(); err != nil {
			return merged, err
		}
		locID := loc.Int("id")
		for key, a := range perDay {
			var kLoc int
			var day string
			if _, err := fmt.Sscanf(key, "%d|%s", &kLoc, &day); err != nil || kLoc != locID {
				continue
			}
			avg := 0.0
			if a.orders > 0 {
				avg = a.revenue / float64(a.orders)
			}
			row := store.Row{
				"id":              key,
				"location_id":     locID,
				"date":            day,
				"order_count":     a.orders,
				"items_sold":      a.items,
				"revenue":         round2(a.revenue),
				"avg_order_value": round2(avg),
				"merged_at":       time.Now().UTC(),
			}
			if err := summary.Upsert(row); err != nil {
				return merged, errors.Wrap(err, errors.ErrCodeInternal,
					fmt.Sprintf("failed to merge summary for location %d", locID))
			}
			merged++
		}
	}
	return merged, nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
