package proc

import (
	"context"
	"fmt"
	"sort"

	"slicehouse/internal/store"
)

// Recommendation score weights. Popularity dominates, category affinity
// personalizes, margin breaks ties in the house's favor.
const (
	weightPopularity = 0.5
	weightAffinity   = 0.3
	weightMargin     = 0.2
)

// Recommend computes a weighted linear recommendation score for menu items a
// customer has not ordered yet, from normalized order counts, the customer's
// category affinity and item margin. The top N items per customer are written
// into the recommendations table.
func Recommend(ctx context.Context, wh *store.Warehouse, topN int) (int, error) {
	if topN <= 0 {
		topN = 3
	}
	orders, err := wh.Table("orders")
	if err != nil {
		return 0, err
	}
	items, err := wh.Table("order_items")
	if err != nil {
		return 0, err
	}
	menu, err := wh.Table("menu_items")
	if err != nil {
		return 0, err
	}
	recs, err := wh.Table("recommendations")
	if err != nil {
		return 0, err
	}

	orderCustomer := map[int]int{}
	for _, o := range orders.Scan() {
		orderCustomer[o.Int("id")] = o.Int("customer_id")
	}

	type menuInfo struct {
		category string
		margin   float64
	}
	menuByID := map[int]menuInfo{}
	maxMargin := 0.0
	for _, m := range menu.Scan() {
		margin := m.Float("price") - m.Float("cost")
		menuByID[m.Int("id")] = menuInfo{category: m.String("category"), margin: margin}
		if margin > maxMargin {
			maxMargin = margin
		}
	}

	// Global popularity and per-customer purchase history.
	popularity := map[int]int{}
	maxPop := 0
	customerItems := map[int]map[int]bool{}
	customerCategories := map[int]map[string]int{}
	for _, it := range items.Scan() {
		itemID := it.Int("menu_item_id")
		qty := it.Int("quantity")
		popularity[itemID] += qty
		if popularity[itemID] > maxPop {
			maxPop = popularity[itemID]
		}
		cid, ok := orderCustomer[it.Int("order_id")]
		if !ok {
			continue
		}
		if customerItems[cid] == nil {
			customerItems[cid] = map[int]bool{}
			customerCategories[cid] = map[string]int{}
		}
		customerItems[cid][itemID] = true
		customerCategories[cid][menuByID[itemID].category] += qty
	}
	if maxPop == 0 {
		return 0, nil
	}

	written := 0
	for cid, owned := range customerItems {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		cats := customerCategories[cid]
		maxCat := 0
		for _, n := range cats {
			if n > maxCat {
				maxCat = n
			}
		}

		type scored struct {
			itemID int
			score  float64
		}
		var candidates []scored
		for itemID, info := range menuByID {
			if owned[itemID] {
				continue
			}
			pop := float64(popularity[itemID]) / float64(maxPop)
			affinity := 0.0
			if maxCat > 0 {
				affinity = float64(cats[info.category]) / float64(maxCat)
			}
			margin := 0.0
			if maxMargin > 0 {
				margin = info.margin / maxMargin
			}
			score := weightPopularity*pop + weightAffinity*affinity + weightMargin*margin
			candidates = append(candidates, scored{itemID: itemID, score: score})
		}
		sort.Slice(candidates, func(a, b int) bool {
			if candidates[a].score != candidates[b].score {
				return candidates[a].score > candidates[b].score
			}
			return candidates[a].itemID < candidates[b].itemID
		})

		n := topN
		if n > len(candidates) {
			n = len(candidates)
		}
		for rank := 0; rank < n; rank++ {
			c := candidates[rank]
			row := store.Row{
				"id":           fmt.Sprintf("%d|%d", cid, rank+1),
				"customer_id":  cid,
				"menu_item_id": c.itemID,
				"rank":         rank + 1,
				"score":        round2(c.score * 100),
			}
			if err := recs.Upsert(row); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}
