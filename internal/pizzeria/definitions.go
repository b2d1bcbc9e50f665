// Package pizzeria declares the shipped warehouse content: the base star
// schema, the derived-table pipeline over it, and the scheduled task set.
package pizzeria

import (
	"context"
	"fmt"
	"sort"
	"time"

	"slicehouse/internal/cortex"
	"slicehouse/internal/pipeline"
	"slicehouse/internal/store"
	"slicehouse/pkg/errors"
	"slicehouse/pkg/models"
)

// BaseTables lists the raw tables the pipeline reads from.
func BaseTables() []string {
	return []string{
		"customers", "employees", "locations", "menu_items",
		"orders", "order_items", "reviews", "inventory",
	}
}

const dateLayout = "2006-01-02"

// Shrinkage flags inventory counts more than 5% under expectation.
const shrinkagePct = -5.0

// Definitions returns the shipped derived-table definitions. The cortex
// engine scores review sentiment.
func Definitions(engine cortex.Engine) []*pipeline.Definition {
	return []*pipeline.Definition{
		{
			Name:    "enriched_orders",
			Layer:   pipeline.LayerSilver,
			Inputs:  []string{"orders", "customers", "locations"},
			Lag:     time.Minute,
			Mode:    pipeline.ModeAuto,
			Key:     "id",
			Build:   buildEnrichedOrders,
			Apply:   applyEnrichedOrders,
			Comment: "Order headers joined with customer and location dimensions",
		},
		{
			Name:    "scored_reviews",
			Layer:   pipeline.LayerSilver,
			Inputs:  []string{"reviews"},
			Lag:     2 * time.Minute,
			Mode:    pipeline.ModeAuto,
			Key:     "id",
			Build:   buildScoredReviews(engine),
			Apply:   applyScoredReviews(engine),
			Comment: "Reviews with sentiment scores and rating mismatch flags",
		},
		{
			Name:    "inventory_variance",
			Layer:   pipeline.LayerSilver,
			Inputs:  []string{"inventory"},
			Lag:     10 * time.Minute,
			Mode:    pipeline.ModeIncremental,
			Key:     "id",
			Build:   buildInventoryVariance,
			Apply:   applyInventoryVariance,
			Comment: "Counted vs expected ingredient quantities with shrinkage flags",
		},
		{
			Name:    "daily_sales",
			Layer:   pipeline.LayerGold,
			Inputs:  []string{"enriched_orders"},
			Lag:     5 * time.Minute,
			Mode:    pipeline.ModeFull,
			Key:     "id",
			Build:   buildDailySales,
			Comment: "Per-location, per-day revenue rollup",
		},
		{
			Name:    "menu_performance",
			Layer:   pipeline.LayerGold,
			Inputs:  []string{"order_items", "menu_items", "orders"},
			Lag:     15 * time.Minute,
			Mode:    pipeline.ModeFull,
			Key:     "menu_item_id",
			Build:   buildMenuPerformance,
			Comment: "Units, revenue and margin per menu item",
		},
		{
			Name:    "customer_value",
			Layer:   pipeline.LayerGold,
			Inputs:  []string{"enriched_orders", "customers"},
			Lag:     15 * time.Minute,
			Mode:    pipeline.ModeFull,
			Key:     "customer_id",
			Build:   buildCustomerValue,
			Comment: "Lifetime value and order cadence per customer",
		},
		{
			Name:    "location_leaderboard",
			Layer:   pipeline.LayerGold,
			Inputs:  []string{"daily_sales", "locations"},
			Lag:     time.Hour,
			Mode:    pipeline.ModeFull,
			Build:   buildLocationLeaderboard,
			Key:     "location_id",
			Comment: "Locations ranked by total revenue",
		},
	}
}

// NewGraph builds and validates the shipped pipeline graph. Lag overrides are
// keyed by table name with Go duration strings.
func NewGraph(engine cortex.Engine, lagOverrides map[string]string) (*pipeline.Graph, error) {
	defs := Definitions(engine)
	byName := make(map[string]*pipeline.Definition, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
	}
	for name, raw := range lagOverrides {
		def, ok := byName[name]
		if !ok {
			return nil, errors.New(errors.ErrCodePipelineUnknownInput,
				fmt.Sprintf("lag override for unknown table %s", name))
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("invalid lag %q for table %s", raw, name))
		}
		def.Lag = d
	}

	graph := pipeline.NewGraph(BaseTables())
	for _, def := range defs {
		if err := graph.Add(def); err != nil {
			return nil, err
		}
	}
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	return graph, nil
}

func enrichOrder(r pipeline.Reader, o store.Row) store.Row {
	row := store.Row{
		"id":          o.Int("id"),
		"customer_id": o.Int("customer_id"),
		"location_id": o.Int("location_id"),
		"channel":     o.String("channel"),
		"status":      o.String("status"),
		"placed_at":   o.Time("placed_at"),
		"total":       o.Float("total"),
	}
	placed := o.Time("placed_at")
	row["date"] = placed.Format(dateLayout)
	wd := placed.Weekday()
	row["weekend"] = wd == time.Saturday || wd == time.Sunday

	if c, ok := r.Lookup("customers", o.Int("customer_id")); ok {
		row["customer_name"] = c.String("first_name") + " " + c.String("last_name")
		row["loyalty_tier"] = c.String("loyalty_tier")
	}
	if l, ok := r.Lookup("locations", o.Int("location_id")); ok {
		row["location_name"] = l.String("name")
		row["region"] = l.String("region")
	}
	return row
}

func buildEnrichedOrders(ctx context.Context, r pipeline.Reader) ([]store.Row, error) {
	orders, err := r.Scan("orders")
	if err != nil {
		return nil, err
	}
	out := make([]store.Row, 0, len(orders))
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, enrichOrder(r, o))
	}
	return out, nil
}

func applyEnrichedOrders(ctx context.Context, r pipeline.Reader, changes map[string][]store.ChangeEvent) ([]pipeline.Mutation, error) {
	var muts []pipeline.Mutation
	for _, ev := range changes["orders"] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		muts = append(muts, pipeline.Mutation{
			Kind: pipeline.MutationUpsert,
			Row:  enrichOrder(r, ev.Row),
		})
	}
	return muts, nil
}

func scoreReview(ctx context.Context, engine cortex.Engine, rv store.Row) (store.Row, error) {
	sentiment, err := engine.Sentiment(ctx, rv.String("text"))
	if err != nil {
		return nil, err
	}
	rating := rv.Int("rating")
	// A mismatch is a glowing rating with sour text, or the reverse.
	mismatch := (rating >= 4 && sentiment < 0) || (rating <= 2 && sentiment > 0)
	return store.Row{
		"id":          rv.Int("id"),
		"order_id":    rv.Int("order_id"),
		"customer_id": rv.Int("customer_id"),
		"rating":      rating,
		"sentiment":   sentiment,
		"mismatch":    mismatch,
		"created_at":  rv.Time("created_at"),
	}, nil
}

func buildScoredReviews(engine cortex.Engine) pipeline.BuildFunc {
	return func(ctx context.Context, r pipeline.Reader) ([]store.Row, error) {
		reviews, err := r.Scan("reviews")
		if err != nil {
			return nil, err
		}
		out := make([]store.Row, 0, len(reviews))
		for _, rv := range reviews {
			row, err := scoreReview(ctx, engine, rv)
			if err != nil {
				return nil, err
			}
			out = append(out, row)
		}
		return out, nil
	}
}

func applyScoredReviews(engine cortex.Engine) pipeline.ApplyFunc {
	return func(ctx context.Context, r pipeline.Reader, changes map[string][]store.ChangeEvent) ([]pipeline.Mutation, error) {
		var muts []pipeline.Mutation
		for _, ev := range changes["reviews"] {
			row, err := scoreReview(ctx, engine, ev.Row)
			if err != nil {
				return nil, err
			}
			muts = append(muts, pipeline.Mutation{Kind: pipeline.MutationUpsert, Row: row})
		}
		return muts, nil
	}
}

func varianceRow(rec store.Row) store.Row {
	counted := rec.Float("counted_qty")
	expected := rec.Float("expected_qty")
	variance := counted - expected
	pct := 0.0
	if expected != 0 {
		pct = variance / expected * 100
	}
	return store.Row{
		"id":           rec.Int("id"),
		"location_id":  rec.Int("location_id"),
		"ingredient":   rec.String("ingredient"),
		"variance":     round2(variance),
		"variance_pct": round2(pct),
		"shrinkage":    pct < shrinkagePct,
		"counted_at":   rec.Time("counted_at"),
	}
}

func buildInventoryVariance(ctx context.Context, r pipeline.Reader) ([]store.Row, error) {
	records, err := r.Scan("inventory")
	if err != nil {
		return nil, err
	}
	out := make([]store.Row, 0, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, varianceRow(rec))
	}
	return out, nil
}

func applyInventoryVariance(ctx context.Context, r pipeline.Reader, changes map[string][]store.ChangeEvent) ([]pipeline.Mutation, error) {
	var muts []pipeline.Mutation
	for _, ev := range changes["inventory"] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		muts = append(muts, pipeline.Mutation{Kind: pipeline.MutationUpsert, Row: varianceRow(ev.Row)})
	}
	return muts, nil
}

func buildDailySales(ctx context.Context, r pipeline.Reader) ([]store.Row, error) {
	orders, err := r.Scan("enriched_orders")
	if err != nil {
		return nil, err
	}
	type agg struct {
		locationID   int
		locationName string
		date         string
		weekend      bool
		orderCount   int
		revenue      float64
	}
	groups := map[string]*agg{}
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if o.String("status") != models.OrderCompleted {
			continue
		}
		key := fmt.Sprintf("%d|%s", o.Int("location_id"), o.String("date"))
		g, ok := groups[key]
		if !ok {
			g = &agg{
				locationID:   o.Int("location_id"),
				locationName: o.String("location_name"),
				date:         o.String("date"),
				weekend:      o.Bool("weekend"),
			}
			groups[key] = g
		}
		g.orderCount++
		g.revenue += o.Float("total")
	}

	out := make([]store.Row, 0, len(groups))
	for key, g := range groups {
		avg := 0.0
		if g.orderCount > 0 {
			avg = g.revenue / float64(g.orderCount)
		}
		out = append(out, store.Row{
			"id":              key,
			"location_id":     g.locationID,
			"location_name":   g.locationName,
			"date":            g.date,
			"weekend":         g.weekend,
			"order_count":     g.orderCount,
			"revenue":         round2(g.revenue),
			"avg_order_value": round2(avg),
		})
	}
	return out, nil
}

func buildMenuPerformance(ctx context.Context, r pipeline.Reader) ([]store.Row, error) {
	items, err := r.Scan("order_items")
	if err != nil {
		return nil, err
	}
	menu, err := r.Scan("menu_items")
	if err != nil {
		return nil, err
	}

	completed := map[int]bool{}
	orders, err := r.Scan("orders")
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if o.String("status") == models.OrderCompleted {
			completed[o.Int("id")] = true
		}
	}

	type perf struct {
		units   int
		revenue float64
	}
	byItem := map[int]*perf{}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !completed[it.Int("order_id")] {
			continue
		}
		p, ok := byItem[it.Int("menu_item_id")]
		if !ok {
			p = &perf{}
			byItem[it.Int("menu_item_id")] = p
		}
		p.units += it.Int("quantity")
		p.revenue += it.Float("line_total")
	}

	out := make([]store.Row, 0, len(menu))
	for _, m := range menu {
		id := m.Int("id")
		p := byItem[id]
		if p == nil {
			p = &perf{}
		}
		cost := m.Float("cost") * float64(p.units)
		margin := p.revenue - cost
		marginPct := 0.0
		if p.revenue > 0 {
			marginPct = margin / p.revenue * 100
		}
		out = append(out, store.Row{
			"menu_item_id": id,
			"name":         m.String("name"),
			"category":     m.String("category"),
			"units_sold":   p.units,
			"revenue":      round2(p.revenue),
			"margin":       round2(margin),
			"margin_pct":   round2(marginPct),
		})
	}
	return out, nil
}

func buildCustomerValue(ctx context.Context, r pipeline.Reader) ([]store.Row, error) {
	customers, err := r.Scan("customers")
	if err != nil {
		return nil, err
	}
	orders, err := r.Scan("enriched_orders")
	if err != nil {
		return nil, err
	}

	type value struct {
		count       int
		total       float64
		first, last time.Time
	}
	byCustomer := map[int]*value{}
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if o.String("status") != models.OrderCompleted {
			continue
		}
		cid := o.Int("customer_id")
		v, ok := byCustomer[cid]
		if !ok {
			v = &value{}
			byCustomer[cid] = v
		}
		placed := o.Time("placed_at")
		v.count++
		v.total += o.Float("total")
		if v.first.IsZero() || placed.Before(v.first) {
			v.first = placed
		}
		if placed.After(v.last) {
			v.last = placed
		}
	}

	out := make([]store.Row, 0, len(customers))
	for _, c := range customers {
		cid := c.Int("id")
		v := byCustomer[cid]
		if v == nil {
			v = &value{}
		}
		avg := 0.0
		if v.count > 0 {
			avg = v.total / float64(v.count)
		}
		row := store.Row{
			"customer_id":     cid,
			"email":           c.String("email"),
			"loyalty_tier":    c.String("loyalty_tier"),
			"order_count":     v.count,
			"lifetime_value":  round2(v.total),
			"avg_order_value": round2(avg),
		}
		if !v.first.IsZero() {
			row["first_order_at"] = v.first
			row["last_order_at"] = v.last
		}
		out = append(out, row)
	}
	return out, nil
}

func buildLocationLeaderboard(ctx context.Context, r pipeline.Reader) ([]store.Row, error) {
	days, err := r.Scan("daily_sales")
	if err != nil {
		return nil, err
	}
	locations, err := r.Scan("locations")
	if err != nil {
		return nil, err
	}

	type total struct {
		revenue float64
		orders  int
		days    int
	}
	byLoc := map[int]*total{}
	for _, d := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lid := d.Int("location_id")
		t, ok := byLoc[lid]
		if !ok {
			t = &total{}
			byLoc[lid] = t
		}
		t.revenue += d.Float("revenue")
		t.orders += d.Int("order_count")
		t.days++
	}

	out := make([]store.Row, 0, len(locations))
	for _, l := range locations {
		lid := l.Int("id")
		t := byLoc[lid]
		if t == nil {
			t = &total{}
		}
		daily := 0.0
		if t.days > 0 {
			daily = t.revenue / float64(t.days)
		}
		out = append(out, store.Row{
			"location_id":   lid,
			"name":          l.String("name"),
			"region":        l.String("region"),
			"total_revenue": round2(t.revenue),
			"order_count":   t.orders,
			"avg_daily_rev": round2(daily),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Float("total_revenue") > out[j].Float("total_revenue")
	})
	for i, row := range out {
		row["rank"] = i + 1
	}
	return out, nil
}

func round2(v float64) float64 {
	if v < 0 {
		return -float64(int(-v*100+0.5)) / 100
	}
	return float64(int(v*100+0.5)) / 100
}
