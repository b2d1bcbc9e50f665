package proc

import (
	"context"
	"math"

	"slicehouse/internal/store"
	"slicehouse/pkg/models"
)

// AwardLoyalty recomputes loyalty points and tiers for every customer from
// completed orders: one point per whole currency unit spent. Points and tiers
// are derived values, so the full recompute keeps them honest even after
// order corrections.
func AwardLoyalty(ctx context.Context, wh *store.Warehouse) (int, error) {
	orders, err := wh.Table("orders")
	if err != nil {
		return 0, err
	}
	customers, err := wh.Table("customers")
	if err != nil {
		return 0, err
	}

	spend := map[int]float64{}
	for _, o := range orders.Scan() {
		if o.String("status") != models.OrderCompleted {
			continue
		}
		spend[o.Int("customer_id")] += o.Float("total")
	}

	updated := 0
	for _, c := range customers.Scan() {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		points := int(math.Floor(spend[c.Int("id")]))
		tier := string(models.TierForPoints(points))
		if c.Int("loyalty_points") == points && c.String("loyalty_tier") == tier {
			continue
		}
		c["loyalty_points"] = points
		c["loyalty_tier"] = tier
		if err := customers.Update(c.Int("id"), c); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}
