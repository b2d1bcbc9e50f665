package proc

import (
	"context"
	"fmt"
	"math"
	"time"

	"slicehouse/internal/store"
)

// AnomalyThreshold is the absolute z-score at or above which a day's revenue
// is flagged.
const AnomalyThreshold = 2.0

// FlagAnomalies computes per-location, per-weekday revenue z-scores over the
// daily_sales_summary table and writes flagged days into revenue_anomalies.
// Comparing a Tuesday only against other Tuesdays keeps weekend volume skew
// from drowning real anomalies.
func FlagAnomalies(ctx context.Context, wh *store.Warehouse) (int, error) {
	summary, err := wh.Table("daily_sales_summary")
	if err != nil {
		return 0, err
	}
	anomalies, err := wh.Table("revenue_anomalies")
	if err != nil {
		return 0, err
	}

	type day struct {
		key     string
		locID   int
		date    string
		revenue float64
	}
	groups := map[string][]day{}
	for _, row := range summary.Scan() {
		date, err := time.Parse(dateLayout, row.String("date"))
		if err != nil {
			continue
		}
		d := day{
			key:     row.String("id"),
			locID:   row.Int("location_id"),
			date:    row.String("date"),
			revenue: row.Float("revenue"),
		}
		g := fmt.Sprintf("%d|%s", d.locID, date.Weekday())
		groups[g] = append(groups[g], d)
	}

	flagged := 0
	for _, days := range groups {
		if err := ctx.Err(); err != nil {
			return flagged, err
		}
		// Too few observations to call anything an outlier.
		if len(days) < 4 {
			continue
		}
		revs := make([]float64, len(days))
		for i, d := range days {
			revs[i] = d.revenue
		}
		mean, std := revenueMeanStd(revs)
		if std == 0 {
			continue
		}
		for _, d := range days {
			z := (d.revenue - mean) / std
			if math.Abs(z) < AnomalyThreshold {
				continue
			}
			direction := "HIGH"
			if z < 0 {
				direction = "LOW"
			}
			row := store.Row{
				"id":          d.key,
				"location_id": d.locID,
				"date":        d.date,
				"revenue":     d.revenue,
				"expected":    round2(mean),
				"z_score":     round2(z),
				"direction":   direction,
			}
			if err := anomalies.Upsert(row); err != nil {
				return flagged, err
			}
			flagged++
		}
	}
	return flagged, nil
}

func revenueMeanStd(revenues []float64) (float64, float64) {
	sum := 0.0
	for _, r := range revenues {
		sum += r
	}
	mean := sum / float64(len(revenues))
	varSum := 0.0
	for _, r := range revenues {
		varSum += (r - mean) * (r - mean)
	}
	return mean, math.Sqrt(varSum / float64(len(revenues)))
}
