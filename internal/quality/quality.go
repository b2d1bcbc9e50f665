// Package quality runs data quality checks over the warehouse: referential
// integrity, value ranges, uniqueness and cross-table reconciliation.
package quality

import (
	"context"
	"fmt"
	"math"
	"time"

	"slicehouse/internal/store"
	"slicehouse/pkg/models"
)

const sampleLimit = 5

// Check is one data quality rule.
type Check struct {
	Name        string
	Table       string
	Description string
	Run         func(wh *store.Warehouse) ([]string, error)
}

// Result is the outcome of one check. Violations holds up to a handful of
// sample descriptions; Total counts all of them.
type Result struct {
	Name       string
	Table      string
	Total      int
	Violations []string
	Err        string
}

// Passed reports whether the check ran clean.
func (r Result) Passed() bool { return r.Err == "" && r.Total == 0 }

// RunAll executes every check against the warehouse.
func RunAll(ctx context.Context, wh *store.Warehouse) ([]Result, error) {
	var out []Result
	for _, c := range Checks() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		violations, err := c.Run(wh)
		res := Result{Name: c.Name, Table: c.Table, Total: len(violations)}
		if err != nil {
			res.Err = err.Error()
		}
		if len(violations) > sampleLimit {
			violations = violations[:sampleLimit]
		}
		res.Violations = violations
		out = append(out, res)
	}
	return out, nil
}

// Checks returns the shipped check suite.
func Checks() []Check {
	return []Check{
		{
			Name:        "orders_fk",
			Table:       "orders",
			Description: "Orders reference existing customers, employees and locations",
			Run:         checkOrderForeignKeys,
		},
		{
			Name:        "order_items_fk",
			Table:       "order_items",
			Description: "Order items reference existing orders and menu items",
			Run:         checkOrderItemForeignKeys,
		},
		{
			Name:        "reviews_fk",
			Table:       "reviews",
			Description: "Reviews reference existing orders",
			Run:         checkReviewForeignKeys,
		},
		{
			Name:        "rating_range",
			Table:       "reviews",
			Description: "Review ratings lie in [1,5]",
			Run:         checkRatingRange,
		},
		{
			Name:        "non_negative_totals",
			Table:       "orders",
			Description: "Order totals and line totals are non-negative",
			Run:         checkNonNegativeTotals,
		},
		{
			Name:        "unique_emails",
			Table:       "customers",
			Description: "Customer emails are unique",
			Run:         checkUniqueEmails,
		},
		{
			Name:        "tier_consistency",
			Table:       "customers",
			Description: "Loyalty tiers match point totals",
			Run:         checkTierConsistency,
		},
		{
			Name:        "summary_reconciliation",
			Table:       "daily_sales_summary",
			Description: "Merged daily summaries reconcile with completed order revenue",
			Run:         checkSummaryReconciliation,
		},
	}
}

func checkOrderForeignKeys(wh *store.Warehouse) ([]string, error) {
	orders, err := wh.Table("orders")
	if err != nil {
		return nil, err
	}
	customers, err := wh.Table("customers")
	if err != nil {
		return nil, err
	}
	employees, err := wh.Table("employees")
	if err != nil {
		return nil, err
	}
	locations, err := wh.Table("locations")
	if err != nil {
		return nil, err
	}

	var bad []string
	for _, o := range orders.Scan() {
		if _, ok := customers.Get(o.Int("customer_id")); !ok {
			bad = append(bad, fmt.Sprintf("order %d: customer %d missing", o.Int("id"), o.Int("customer_id")))
		}
		if _, ok := employees.Get(o.Int("employee_id")); !ok {
			bad = append(bad, fmt.Sprintf("order %d: employee %d missing", o.Int("id"), o.Int("employee_id")))
		}
		if _, ok := locations.Get(o.Int("location_id")); !ok {
			bad = append(bad, fmt.Sprintf("order %d: location %d missing", o.Int("id"), o.Int("location_id")))
		}
	}
	return bad, nil
}

func checkOrderItemForeignKeys(wh *store.Warehouse) ([]string, error) {
	items, err := wh.Table("order_items")
	if err != nil {
		return nil, err
	}
	orders, err := wh.Table("orders")
	if err != nil {
		return nil, err
	}
	menu, err := wh.Table("menu_items")
	if err != nil {
		return nil, err
	}

	var bad []string
	for _, it := range items.Scan() {
		if _, ok := orders.Get(it.Int("order_id")); !ok {
			bad = append(bad, fmt.Sprintf("order_item %d: order %d missing", it.Int("id"), it.Int("order_id")))
		}
		if _, ok := menu.Get(it.Int("menu_item_id")); !ok {
			bad = append(bad, fmt.Sprintf("order_item %d: menu item %d missing", it.Int("id"), it.Int("menu_item_id")))
		}
	}
	return bad, nil
}

func checkReviewForeignKeys(wh *store.Warehouse) ([]string, error) {
	reviews, err := wh.Table("reviews")
	if err != nil {
		return nil, err
	}
	orders, err := wh.Table("orders")
	if err != nil {
		return nil, err
	}

	var bad []string
	for _, r := range reviews.Scan() {
		if _, ok := orders.Get(r.Int("order_id")); !ok {
			bad = append(bad, fmt.Sprintf("review %d: order %d missing", r.Int("id"), r.Int("order_id")))
		}
	}
	return bad, nil
}

func checkRatingRange(wh *store.Warehouse) ([]string, error) {
	reviews, err := wh.Table("reviews")
	if err != nil {
		return nil, err
	}
	var bad []string
	for _, r := range reviews.Scan() {
		if rating := r.Int("rating"); rating < 1 || rating > 5 {
			bad = append(bad, fmt.Sprintf("review %d: rating %d out of range", r.Int("id"), rating))
		}
	}
	return bad, nil
}

func checkNonNegativeTotals(wh *store.Warehouse) ([]string, error) {
	orders, err := wh.Table("orders")
	if err != nil {
		return nil, err
	}
	items, err := wh.Table("order_items")
	if err != nil {
		return nil, err
	}

	var bad []string
	for _, o := range orders.Scan() {
		if o.Float("total") < 0 {
			bad = append(bad, fmt.Sprintf("order %d: negative total %.2f", o.Int("id"), o.Float("total")))
		}
	}
	for _, it := range items.Scan() {
		if it.Float("line_total") < 0 {
			bad = append(bad, fmt.Sprintf("order_item %d: negative line total %.2f", it.Int("id"), it.Float("line_total")))
		}
	}
	return bad, nil
}

func checkUniqueEmails(wh *store.Warehouse) ([]string, error) {
	customers, err := wh.Table("customers")
	if err != nil {
		return nil, err
	}
	seen := map[string]int{}
	var bad []string
	for _, c := range customers.Scan() {
		email := c.String("email")
		if email == "" {
			bad = append(bad, fmt.Sprintf("customer %d: empty email", c.Int("id")))
			continue
		}
		if first, dup := seen[email]; dup {
			bad = append(bad, fmt.Sprintf("customer %d: email %s already used by customer %d",
				c.Int("id"), email, first))
			continue
		}
		seen[email] = c.Int("id")
	}
	return bad, nil
}

func checkTierConsistency(wh *store.Warehouse) ([]string, error) {
	customers, err := wh.Table("customers")
	if err != nil {
		return nil, err
	}
	var bad []string
	for _, c := range customers.Scan() {
		want := string(models.TierForPoints(c.Int("loyalty_points")))
		if got := c.String("loyalty_tier"); got != want {
			bad = append(bad, fmt.Sprintf("customer %d: tier %s does not match %d points (want %s)",
				c.Int("id"), got, c.Int("loyalty_points"), want))
		}
	}
	return bad, nil
}

// checkSummaryReconciliation compares merged daily summaries against completed
// order revenue grouped the same way. An empty summary table passes: the merge
// task may simply not have run yet.
func checkSummaryReconciliation(wh *store.Warehouse) ([]string, error) {
	summaries, err := wh.Table("daily_sales_summary")
	if err != nil {
		return nil, err
	}
	if summaries.Count() == 0 {
		return nil, nil
	}
	orders, err := wh.Table("orders")
	if err != nil {
		return nil, err
	}

	want := map[string]float64{}
	for _, o := range orders.Scan() {
		if o.String("status") != models.OrderCompleted {
			continue
		}
		key := fmt.Sprintf("%d|%s", o.Int("location_id"), o.Time("placed_at").Format(time.DateOnly))
		want[key] += o.Float("total")
	}

	var bad []string
	for _, s := range summaries.Scan() {
		key := fmt.Sprintf("%d|%s", s.Int("location_id"), s.String("date"))
		if math.Abs(s.Float("revenue")-want[key]) > 0.01 {
			bad = append(bad, fmt.Sprintf("summary %s: revenue %.2f, orders say %.2f",
				key, s.Float("revenue"), want[key]))
		}
	}
	return bad, nil
}
