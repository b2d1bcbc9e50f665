package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"slicehouse/internal/cortex"
	"slicehouse/internal/store"
	"slicehouse/internal/ui"
	"slicehouse/pkg/errors"
	"slicehouse/pkg/models"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Run analytical reports over the warehouse",
}

var analyticsSalesCmd = &cobra.Command{
	Use:   "sales",
	Short: "Revenue by day with a short-term forecast",
	RunE:  runSalesReport,
}

var analyticsReviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Sentiment summary and common review themes",
	RunE:  runReviewsReport,
}

var analyticsAnomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Unusual daily revenue across the chain",
	RunE:  runAnomaliesReport,
}

var analyticsMenuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Top menu items by revenue and margin",
	RunE:  runMenuReport,
}

var analyticsLocationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Location leaderboard",
	RunE:  runLocationsReport,
}

var analyticsCustomersCmd = &cobra.Command{
	Use:   "customers",
	Short: "Loyalty tier and RFM segment breakdown",
	RunE:  runCustomersReport,
}

func init() {
	analyticsSalesCmd.Flags().Int("horizon", 7, "forecast horizon in days")
	analyticsMenuCmd.Flags().Int("top", 10, "number of items to show")
	analyticsCmd.AddCommand(analyticsSalesCmd, analyticsReviewsCmd, analyticsAnomaliesCmd,
		analyticsMenuCmd, analyticsLocationsCmd, analyticsCustomersCmd)
	rootCmd.AddCommand(analyticsCmd)
}

// dailyRevenueSeries returns chain-wide revenue per day, oldest first.
func dailyRevenueSeries(a *app) ([]string, []float64, error) {
	daily, err := a.wh.Table("daily_sales")
	if err != nil {
		return nil, nil, err
	}
	if daily.Count() == 0 {
		return nil, nil, errors.New(errors.ErrCodeValidationFailed, "daily_sales is empty").
			WithSuggestions("Run 'slicehouse refresh' first")
	}

	byDate := map[string]float64{}
	for _, row := range daily.Scan() {
		byDate[row.String("date")] += row.Float("revenue")
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	series := make([]float64, len(dates))
	for i, d := range dates {
		series[i] = byDate[d]
	}
	return dates, series, nil
}

func runSalesReport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	dates, series, err := dailyRevenueSeries(a)
	if err != nil {
		return err
	}

	ui.ShowHeader("Sales Report")
	total := 0.0
	for _, v := range series {
		total += v
	}
	fmt.Printf("  days:          %d (%s .. %s)\n", len(dates), dates[0], dates[len(dates)-1])
	fmt.Printf("  total revenue: %.2f\n", total)
	fmt.Printf("  daily average: %.2f\n", total/float64(len(series)))

	horizon, _ := cmd.Flags().GetInt("horizon")
	forecast, err := a.engine.Forecast(cmd.Context(), series, horizon)
	if err != nil {
		return err
	}
	fmt.Println("\n  forecast:")
	for i, v := range forecast {
		fmt.Printf("    day +%d: %.2f\n", i+1, v)
	}
	return nil
}

func runReviewsReport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reviews, err := a.wh.Table("reviews")
	if err != nil {
		return err
	}
	if reviews.Count() == 0 {
		ui.ShowInfo("No reviews in the warehouse")
		return nil
	}

	var corpus []string
	var worst string
	worstScore := 0.0
	sum := 0.0
	negative := 0
	themes := map[string]int{}
	labels := []string{"food", "service", "delivery", "value"}
	for _, row := range reviews.Scan() {
		text := row.String("text")
		corpus = append(corpus, text)
		s, err := a.engine.Sentiment(cmd.Context(), text)
		if err != nil {
			return err
		}
		sum += s
		if s < 0 {
			negative++
		}
		if s < worstScore {
			worstScore, worst = s, text
		}
		if label, err := a.engine.Classify(cmd.Context(), text, labels); err == nil {
			themes[label]++
		}
	}

	ui.ShowHeader("Review Report")
	fmt.Printf("  reviews:        %d\n", len(corpus))
	fmt.Printf("  avg sentiment:  %+.2f\n", sum/float64(len(corpus)))
	fmt.Printf("  negative share: %.0f%%\n", float64(negative)/float64(len(corpus))*100)
	fmt.Printf("  themes:         %v\n", cortex.TopWords(corpus, 8))
	for _, label := range labels {
		if themes[label] > 0 {
			fmt.Printf("  topic %-9s %d reviews\n", label+":", themes[label])
		}
	}
	if worst != "" {
		summary, err := a.engine.Summarize(cmd.Context(), worst)
		if err == nil && summary != "" {
			fmt.Printf("  worst review (%.2f): %s\n", worstScore, summary)
			if reply, err := a.engine.Complete(cmd.Context(), summary); err == nil {
				fmt.Printf("  suggested reply: %s\n", reply)
			}
		}
	}

	if scored, err := a.wh.Table("scored_reviews"); err == nil && scored.Count() > 0 {
		mismatches := 0
		for _, row := range scored.Scan() {
			if row.Bool("mismatch") {
				mismatches++
			}
		}
		fmt.Printf("  rating/text mismatches: %d\n", mismatches)
	}
	return nil
}

// populatedTable fetches a table and fails with a refresh hint when empty.
func populatedTable(a *app, name string) (*store.Table, error) {
	tbl, err := a.wh.Table(name)
	if err != nil {
		return nil, err
	}
	if tbl.Count() == 0 {
		return nil, errors.New(errors.ErrCodeValidationFailed, name+" is empty").
			WithSuggestions("Run 'slicehouse refresh' first")
	}
	return tbl, nil
}

func runMenuReport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	perf, err := populatedTable(a, "menu_performance")
	if err != nil {
		return err
	}
	rows := perf.Scan()
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Float("revenue") > rows[j].Float("revenue")
	})
	top, _ := cmd.Flags().GetInt("top")
	if top > 0 && top < len(rows) {
		rows = rows[:top]
	}

	ui.ShowHeader("Menu Performance")
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, []string{
			row.String("name"),
			row.String("category"),
			fmt.Sprintf("%d", row.Int("units_sold")),
			fmt.Sprintf("%.2f", row.Float("revenue")),
			fmt.Sprintf("%.1f%%", row.Float("margin_pct")),
		})
	}
	ui.RenderTable(os.Stdout, []string{"Item", "Category", "Units", "Revenue", "Margin"}, out)
	return nil
}

func runLocationsReport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	board, err := populatedTable(a, "location_leaderboard")
	if err != nil {
		return err
	}
	rows := board.Scan()
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Int("rank") < rows[j].Int("rank")
	})

	ui.ShowHeader("Location Leaderboard")
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, []string{
			fmt.Sprintf("%d", row.Int("rank")),
			row.String("name"),
			row.String("region"),
			fmt.Sprintf("%.2f", row.Float("total_revenue")),
			fmt.Sprintf("%d", row.Int("order_count")),
			fmt.Sprintf("%.2f", row.Float("avg_daily_rev")),
		})
	}
	ui.RenderTable(os.Stdout, []string{"Rank", "Location", "Region", "Revenue", "Orders", "Avg Daily"}, out)
	return nil
}

func runCustomersReport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	customers, err := populatedTable(a, "customers")
	if err != nil {
		return err
	}
	tiers := map[string]int{}
	for _, row := range customers.Scan() {
		tiers[row.String("loyalty_tier")]++
	}

	ui.ShowHeader("Customer Base")
	tierOrder := []models.LoyaltyTier{models.TierGold, models.TierSilver, models.TierBronze, models.TierMember}
	out := make([][]string, 0, len(tierOrder))
	for _, tier := range tierOrder {
		out = append(out, []string{string(tier), fmt.Sprintf("%d", tiers[string(tier)])})
	}
	ui.RenderTable(os.Stdout, []string{"Tier", "Customers"}, out)

	// Segment counts appear once rfm_scoring has run.
	if scores, err := a.wh.Table("rfm_scores"); err == nil && scores.Count() > 0 {
		segments := map[string]int{}
		for _, row := range scores.Scan() {
			segments[row.String("segment")]++
		}
		names := make([]string, 0, len(segments))
		for s := range segments {
			names = append(names, s)
		}
		sort.Strings(names)
		out = out[:0]
		for _, s := range names {
			out = append(out, []string{s, fmt.Sprintf("%d", segments[s])})
		}
		fmt.Println()
		ui.RenderTable(os.Stdout, []string{"RFM Segment", "Customers"}, out)
	} else {
		ui.ShowInfo("Run 'slicehouse tasks run rfm_scoring' for segment breakdown")
	}
	return nil
}

func runAnomaliesReport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	dates, series, err := dailyRevenueSeries(a)
	if err != nil {
		return err
	}
	flags, err := a.engine.DetectAnomalies(cmd.Context(), series)
	if err != nil {
		return err
	}

	ui.ShowHeader("Revenue Anomalies")
	found := 0
	for i, flagged := range flags {
		if flagged {
			fmt.Printf("  %s: chain revenue %.2f\n", dates[i], series[i])
			found++
		}
	}
	if found == 0 {
		ui.ShowSuccess("No chain-wide anomalies detected across %d days", len(series))
	}

	// Per-location flags from the anomaly_scan task, when it has run.
	if anomalies, err := a.wh.Table("revenue_anomalies"); err == nil && anomalies.Count() > 0 {
		fmt.Printf("\n  per-location flags (anomaly_scan): %d\n", anomalies.Count())
		for _, row := range anomalies.Scan() {
			fmt.Printf("    location %d on %s: %.2f (%s, z=%.2f)\n",
				row.Int("location_id"), row.String("date"),
				row.Float("revenue"), row.String("direction"), row.Float("z_score"))
		}
	}
	return nil
}
