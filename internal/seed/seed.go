// Package seed generates the synthetic pizzeria dataset: dimensions are
// seeded once, fact rows (orders, reviews, inventory counts) follow realistic
// shapes with weekend volume skew and rating-conditioned review text. The
// generator is deterministic for a given seed.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"slicehouse/internal/store"
	"slicehouse/pkg/models"
)

// Options controls dataset scale.
type Options struct {
	Seed      int64
	Customers int
	Days      int
	OrdersDay int       // Average orders per day across all locations
	EndDate   time.Time // Last day of history; defaults to today UTC
}

func (o *Options) defaults() {
	if o.Customers <= 0 {
		o.Customers = 200
	}
	if o.Days <= 0 {
		o.Days = 90
	}
	if o.OrdersDay <= 0 {
		o.OrdersDay = 60
	}
	if o.EndDate.IsZero() {
		o.EndDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
}

// Stats reports how many rows the generator wrote.
type Stats struct {
	Customers  int
	Employees  int
	Locations  int
	MenuItems  int
	Orders     int
	OrderItems int
	Reviews    int
	Inventory  int
}

// Tables returns every base and derived table the warehouse needs, with its
// key column. Derived tables start empty; the pipeline and tasks fill them.
func Tables() map[string]string {
	return map[string]string{
		// Base (bronze inputs)
		"customers":   "id",
		"employees":   "id",
		"locations":   "id",
		"menu_items":  "id",
		"orders":      "id",
		"order_items": "id",
		"reviews":     "id",
		"inventory":   "id",
		// Pipeline-owned derived tables
		"enriched_orders":    "id",
		"scored_reviews":     "id",
		"inventory_variance": "id",
		"daily_sales":        "id",
		"menu_performance":   "menu_item_id",
		"customer_value":     "customer_id",
		"location_leaderboard": "location_id",
		// Task-owned tables
		"daily_sales_summary": "id",
		"rfm_scores":          "customer_id",
		"revenue_anomalies":   "id",
		"recommendations":     "id",
	}
}

// EnsureSchema creates any missing tables.
func EnsureSchema(wh *store.Warehouse) error {
	for name, key := range Tables() {
		if wh.Has(name) {
			continue
		}
		if _, err := wh.Create(name, key); err != nil {
			return err
		}
	}
	return nil
}

// Generate seeds the warehouse with the synthetic dataset.
func Generate(ctx context.Context, wh *store.Warehouse, opts Options) (*Stats, error) {
	opts.defaults()
	rng := rand.New(rand.NewSource(opts.Seed)) // #nosec G404 - synthetic data only
	stats := &Stats{}

	if err := EnsureSchema(wh); err != nil {
		return nil, err
	}

	if err := seedLocations(wh, stats); err != nil {
		return nil, err
	}
	if err := seedEmployees(wh, rng, stats); err != nil {
		return nil, err
	}
	if err := seedMenu(wh, stats); err != nil {
		return nil, err
	}
	if err := seedCustomers(wh, rng, opts, stats); err != nil {
		return nil, err
	}
	if err := seedOrders(ctx, wh, rng, opts, stats); err != nil {
		return nil, err
	}
	if err := seedInventory(wh, rng, opts, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func seedLocations(wh *store.Warehouse, stats *Stats) error {
	tbl, err := wh.Table("locations")
	if err != nil {
		return err
	}
	for i, spec := range locationSpecs {
		err := tbl.Insert(store.Row{
			"id": i + 1, "name": spec.name, "city": spec.city,
			"address": spec.address, "region": spec.region,
		})
		if err != nil {
			return err
		}
		stats.Locations++
	}
	return nil
}

func seedEmployees(wh *store.Warehouse, rng *rand.Rand, stats *Stats) error {
	tbl, err := wh.Table("employees")
	if err != nil {
		return err
	}
	roles := []string{"MANAGER", "CHEF", "SERVER", "DRIVER"}
	id := 1
	for loc := 1; loc <= len(locationSpecs); loc++ {
		for _, role := range roles {
			err := tbl.Insert(store.Row{
				"id":          id,
				"first_name":  firstNames[rng.Intn(len(firstNames))],
				"last_name":   lastNames[rng.Intn(len(lastNames))],
				"role":        role,
				"location_id": loc,
				"hired_at":    time.Date(2022, time.Month(1+rng.Intn(12)), 1+rng.Intn(28), 9, 0, 0, 0, time.UTC),
			})
			if err != nil {
				return err
			}
			id++
			stats.Employees++
		}
	}
	return nil
}

func seedMenu(wh *store.Warehouse, stats *Stats) error {
	tbl, err := wh.Table("menu_items")
	if err != nil {
		return err
	}
	for i, spec := range menuSpecs {
		err := tbl.Insert(store.Row{
			"id": i + 1, "name": spec.name, "category": spec.category,
			"size": spec.size, "price": spec.price, "cost": spec.cost,
		})
		if err != nil {
			return err
		}
		stats.MenuItems++
	}
	return nil
}

func seedCustomers(wh *store.Warehouse, rng *rand.Rand, opts Options, stats *Stats) error {
	tbl, err := wh.Table("customers")
	if err != nil {
		return err
	}
	start := opts.EndDate.AddDate(0, 0, -opts.Days-365)
	for i := 1; i <= opts.Customers; i++ {
		first := firstNames[rng.Intn(len(firstNames))]
		last := lastNames[rng.Intn(len(lastNames))]
		err := tbl.Insert(store.Row{
			"id":         i,
			"first_name": first,
			"last_name":  last,
			// The customer id keeps generated emails unique.
			"email":          fmt.Sprintf("%s.%s.%d@example.test", lower(first), lower(last), i),
			"phone":          fmt.Sprintf("555-%04d", rng.Intn(10000)),
			"city":           locationSpecs[rng.Intn(len(locationSpecs))].city,
			"signed_up_at":   start.AddDate(0, 0, rng.Intn(365)),
			"loyalty_points": 0,
			"loyalty_tier":   string(models.TierMember),
		})
		if err != nil {
			return err
		}
		stats.Customers++
	}
	return nil
}

func seedOrders(ctx context.Context, wh *store.Warehouse, rng *rand.Rand, opts Options, stats *Stats) error {
	orders, err := wh.Table("orders")
	if err != nil {
		return err
	}
	items, err := wh.Table("order_items")
	if err != nil {
		return err
	}
	reviews, err := wh.Table("reviews")
	if err != nil {
		return err
	}

	channels := []string{models.ChannelDineIn, models.ChannelTakeout, models.ChannelDelivery, models.ChannelOnline}
	employeesPerLoc := 4
	orderID, itemID, reviewID := 1, 1, 1

	for d := opts.Days - 1; d >= 0; d-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		day := opts.EndDate.AddDate(0, 0, -d)
		volume := opts.OrdersDay
		// Fridays and weekends run hot.
		switch day.Weekday() {
		case time.Friday:
			volume = volume * 13 / 10
		case time.Saturday, time.Sunday:
			volume = volume * 15 / 10
		}
		volume += rng.Intn(volume/5+1) - volume/10

		for n := 0; n < volume; n++ {
			locID := 1 + rng.Intn(len(locationSpecs))
			customerID := 1 + rng.Intn(opts.Customers)
			employeeID := (locID-1)*employeesPerLoc + 1 + rng.Intn(employeesPerLoc)
			placed := day.Add(time.Duration(11+rng.Intn(11)) * time.Hour).
				Add(time.Duration(rng.Intn(60)) * time.Minute)

			status := models.OrderCompleted
			if rng.Float64() < 0.03 {
				status = models.OrderCancelled
			}

			nItems := 1 + rng.Intn(4)
			total := 0.0
			for k := 0; k < nItems; k++ {
				menuIdx := rng.Intn(len(menuSpecs))
				qty := 1 + rng.Intn(3)
				price := menuSpecs[menuIdx].price
				line := price * float64(qty)
				if err := items.Insert(store.Row{
					"id": itemID, "order_id": orderID, "menu_item_id": menuIdx + 1,
					"quantity": qty, "unit_price": price, "line_total": round2(line),
				}); err != nil {
					return err
				}
				itemID++
				stats.OrderItems++
				total += line
			}

			if err := orders.Insert(store.Row{
				"id": orderID, "customer_id": customerID, "employee_id": employeeID,
				"location_id": locID, "channel": channels[rng.Intn(len(channels))],
				"status": status, "placed_at": placed, "total": round2(total),
			}); err != nil {
				return err
			}
			stats.Orders++

			// Roughly a quarter of completed orders get reviewed.
			if status == models.OrderCompleted && rng.Float64() < 0.25 {
				tmpl := reviewTemplates[rng.Intn(len(reviewTemplates))]
				if err := reviews.Insert(store.Row{
					"id": reviewID, "order_id": orderID, "customer_id": customerID,
					"rating": tmpl.rating, "text": tmpl.text, "sentiment": 0.0,
					"created_at": placed.Add(time.Duration(1+rng.Intn(48)) * time.Hour),
				}); err != nil {
					return err
				}
				reviewID++
				stats.Reviews++
			}
			orderID++
		}
	}
	return nil
}

func seedInventory(wh *store.Warehouse, rng *rand.Rand, opts Options, stats *Stats) error {
	tbl, err := wh.Table("inventory")
	if err != nil {
		return err
	}
	id := 1
	// Weekly counts per location and ingredient across the history window.
	for week := 0; week*7 < opts.Days; week++ {
		counted := opts.EndDate.AddDate(0, 0, -week*7)
		for loc := 1; loc <= len(locationSpecs); loc++ {
			for _, ing := range ingredients {
				expected := 40 + rng.Float64()*60
				actual := expected
				// Occasional shrinkage.
				if rng.Float64() < 0.08 {
					actual = expected * (0.7 + rng.Float64()*0.2)
				}
				if err := tbl.Insert(store.Row{
					"id": id, "location_id": loc, "ingredient": ing,
					"counted_qty": round2(actual), "expected_qty": round2(expected),
					"counted_at": counted,
				}); err != nil {
					return err
				}
				id++
				stats.Inventory++
			}
		}
	}
	return nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func lower(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		out = append(out, r)
	}
	return string(out)
}
