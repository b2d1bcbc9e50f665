package proc

import (
	"context"
	"sort"
	"time"

	"slicehouse/internal/store"
	"slicehouse/pkg/models"
)

// RFM segment labels.
const (
	SegmentChampion = "CHAMPION"
	SegmentLoyal    = "LOYAL"
	SegmentNew      = "NEW"
	SegmentAtRisk   = "AT_RISK"
	SegmentLapsed   = "LAPSED"
	SegmentRegular  = "REGULAR"
)

// ScoreRFM computes quintile-based recency/frequency/monetary scores (1..5,
// higher is better) per customer from completed orders and writes one row per
// customer into rfm_scores.
type rfm struct {
	customerID int
	recency    float64 // Days since last order; lower is better
	frequency  float64
	monetary   float64
}

func ScoreRFM(ctx context.Context, wh *store.Warehouse, now time.Time) (int, error) {
	orders, err := wh.Table("orders")
	if err != nil {
		return 0, err
	}
	scores, err := wh.Table("rfm_scores")
	if err != nil {
		return 0, err
	}

	byCustomer := map[int]*rfm{}
	for _, o := range orders.Scan() {
		if o.String("status") != models.OrderCompleted {
			continue
		}
		cid := o.Int("customer_id")
		v := byCustomer[cid]
		if v == nil {
			v = &rfm{customerID: cid, recency: 1e9}
			byCustomer[cid] = v
		}
		days := now.Sub(o.Time("placed_at")).Hours() / 24
		if days < v.recency {
			v.recency = days
		}
		v.frequency++
		v.monetary += o.Float("total")
	}
	if len(byCustomer) == 0 {
		return 0, nil
	}

	values := make([]*rfm, 0, len(byCustomer))
	for _, v := range byCustomer {
		values = append(values, v)
	}

	// Recency quintiles are inverted: the most recent buyers score 5.
	rScore := quintiles(values, func(v *rfm) float64 { return -v.recency })
	fScore := quintiles(values, func(v *rfm) float64 { return v.frequency })
	mScore := quintiles(values, func(v *rfm) float64 { return v.monetary })

	written := 0
	for i, v := range values {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		r, f, m := rScore[i], fScore[i], mScore[i]
		row := store.Row{
			"customer_id":     v.customerID,
			"recency_days":    round2(v.recency),
			"frequency":       int(v.frequency),
			"monetary":        round2(v.monetary),
			"recency_score":   r,
			"frequency_score": f,
			"monetary_score":  m,
			"segment":         segmentFor(r, f, m),
			"scored_at":       now.UTC(),
		}
		if err := scores.Upsert(row); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// quintiles assigns each value a score 1..5 by rank. Index i of the result
// corresponds to values[i].
func quintiles(values []*rfm, metric func(*rfm) float64) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return metric(values[idx[a]]) < metric(values[idx[b]])
	})
	out := make([]int, len(values))
	n := len(values)
	for rank, i := range idx {
		// rank 0 is the lowest metric value.
		out[i] = 1 + (rank*5)/n
	}
	return out
}

func segmentFor(r, f, m int) string {
	switch {
	case r >= 4 && f >= 4 && m >= 4:
		return SegmentChampion
	case f >= 4 && m >= 3:
		return SegmentLoyal
	case r >= 4 && f <= 2:
		return SegmentNew
	case r <= 2 && f >= 4:
		return SegmentAtRisk
	case r <= 2 && f <= 2:
		return SegmentLapsed
	default:
		return SegmentRegular
	}
}
