// Package engine computes the operator's book position for a live order:
// how it ranks against every competing listing for the same item and
// sub_type, and what price would retake the top spot. It is a debug/
// introspection supplement to the buy/sell decisions in internal/pricer
// (which only need the single best competing price, not the operator's
// rank within the book), grounded on the teacher's internal/engine
// undercut analysis generalized from EVE Online's regional order book to
// the marketplace's per-item order book.
package engine

import (
	"sort"

	"wfm-pricer/internal/model"
)

// UndercutStatus describes how one of the operator's own orders compares
// to the rest of the book for the same item and sub_type.
type UndercutStatus struct {
	OrderID        string
	Side           model.OrderSide
	Position       int // 1 = best, 2+ = undercut
	TotalOrders    int // total orders on this side for this item/sub_type
	BestPrice      int // best competing price
	UndercutAmount int // absolute platinum difference (always >= 0)
	UndercutPct    float64
	SuggestedPrice int // price that would retake the top spot
	BookLevels     []BookLevel
}

// BookLevel is a single price level in the order book snippet.
type BookLevel struct {
	Price      int
	Quantity   int
	IsOperator bool
}

// AnalyzeUndercuts compares the operator's own orders against the full live
// order book for the same item, reporting book position and the price that
// would retake the top spot. ownOrders and book must already be restricted
// to one item/sub_type by the caller (internal/pricer filters by SubType
// before calling this).
func AnalyzeUndercuts(ownOrders []model.Order, book []model.Order) []UndercutStatus {
	bySide := map[model.OrderSide][]model.Order{}
	for _, o := range book {
		bySide[o.Side] = append(bySide[o.Side], o)
	}

	results := make([]UndercutStatus, 0, len(ownOrders))
	for _, own := range ownOrders {
		results = append(results, analyzeOne(own, bySide[own.Side]))
	}
	return results
}

func analyzeOne(own model.Order, side []model.Order) UndercutStatus {
	us := UndercutStatus{OrderID: own.ID, Side: own.Side}

	if len(side) == 0 {
		us.Position = 1
		us.TotalOrders = 1
		us.BestPrice = own.Platinum
		us.SuggestedPrice = own.Platinum
		return us
	}

	sorted := make([]model.Order, len(side))
	copy(sorted, side)
	if own.Side == model.SideBuy {
		// Buy book ranks highest bid first.
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Platinum > sorted[j].Platinum })
	} else {
		// Sell book ranks lowest ask first.
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Platinum < sorted[j].Platinum })
	}

	us.BestPrice = sorted[0].Platinum
	us.TotalOrders = len(sorted)

	pos := 1
	found := false
	for _, o := range sorted {
		if o.ID == own.ID {
			found = true
			break
		}
		pos++
	}
	if !found {
		pos = len(sorted) + 1
	}
	us.Position = pos

	if own.Side == model.SideBuy {
		if us.BestPrice > own.Platinum {
			us.UndercutAmount = us.BestPrice - own.Platinum
		}
	} else {
		if us.BestPrice < own.Platinum {
			us.UndercutAmount = own.Platinum - us.BestPrice
		}
	}
	if own.Platinum > 0 {
		us.UndercutPct = float64(us.UndercutAmount) / float64(own.Platinum) * 100
	}

	if own.Side == model.SideBuy {
		us.SuggestedPrice = us.BestPrice + 1
	} else {
		us.SuggestedPrice = us.BestPrice - 1
		if us.SuggestedPrice < 1 {
			us.SuggestedPrice = 1
		}
	}
	if us.Position == 1 {
		us.SuggestedPrice = own.Platinum
	}

	us.BookLevels = buildBookLevels(sorted, own.ID, 5)
	return us
}

// buildBookLevels aggregates orders into price levels and marks which one
// contains the operator's own order, keeping at most maxLevels entries (the
// operator's own level is always included even beyond that cutoff).
func buildBookLevels(sorted []model.Order, ownOrderID string, maxLevels int) []BookLevel {
	type level struct {
		price      int
		quantity   int
		isOperator bool
	}
	var levels []level
	var current *level

	for _, o := range sorted {
		if current == nil || o.Platinum != current.price {
			if current != nil {
				levels = append(levels, *current)
			}
			lv := level{price: o.Platinum, quantity: o.Quantity}
			if o.ID == ownOrderID {
				lv.isOperator = true
			}
			current = &lv
		} else {
			current.quantity += o.Quantity
			if o.ID == ownOrderID {
				current.isOperator = true
			}
		}
	}
	if current != nil {
		levels = append(levels, *current)
	}

	ownIdx := -1
	for i, lv := range levels {
		if lv.isOperator {
			ownIdx = i
			break
		}
	}

	if ownIdx >= 0 && ownIdx >= maxLevels {
		top := levels[:maxLevels-1]
		top = append(top, levels[ownIdx])
		levels = top
	} else if len(levels) > maxLevels {
		levels = levels[:maxLevels]
	}

	result := make([]BookLevel, len(levels))
	for i, lv := range levels {
		result[i] = BookLevel{Price: lv.price, Quantity: lv.quantity, IsOperator: lv.isOperator}
	}
	return result
}
