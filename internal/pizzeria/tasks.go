package pizzeria

import (
	"context"
	"time"

	"slicehouse/internal/proc"
	"slicehouse/internal/store"
	"slicehouse/internal/task"
)

// Tasks returns the shipped scheduled task set. The summary merge anchors the
// chain: loyalty and RFM scoring read what it writes, the anomaly scan reads
// the merged summaries.
func Tasks() []task.Task {
	return []task.Task{
		{
			Name:     "daily_summary",
			Schedule: "EVERY 24h",
			Comment:  "Merge completed orders into per-location daily summaries",
			Run: func(ctx context.Context, wh *store.Warehouse, now time.Time) (int, error) {
				return proc.MergeDailySummaries(ctx, wh)
			},
		},
		{
			Name:     "loyalty_merge",
			Schedule: "AFTER daily_summary",
			Comment:  "Recompute loyalty points and tiers from completed spend",
			Run: func(ctx context.Context, wh *store.Warehouse, now time.Time) (int, error) {
				return proc.AwardLoyalty(ctx, wh)
			},
		},
		{
			Name:     "rfm_scoring",
			Schedule: "AFTER loyalty_merge",
			Comment:  "Score customers on recency, frequency and monetary quintiles",
			Run: func(ctx context.Context, wh *store.Warehouse, now time.Time) (int, error) {
				return proc.ScoreRFM(ctx, wh, now)
			},
		},
		{
			Name:     "anomaly_scan",
			Schedule: "AFTER daily_summary",
			Comment:  "Flag daily revenue outliers per location and weekday",
			Run: func(ctx context.Context, wh *store.Warehouse, now time.Time) (int, error) {
				return proc.FlagAnomalies(ctx, wh)
			},
		},
		{
			Name:     "recommendation_rebuild",
			Schedule: "EVERY 24h",
			Comment:  "Rebuild per-customer menu recommendations",
			Run: func(ctx context.Context, wh *store.Warehouse, now time.Time) (int, error) {
				return proc.Recommend(ctx, wh, 3)
			},
		},
	}
}
