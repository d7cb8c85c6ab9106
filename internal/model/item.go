// Package model holds the shared data types for the catalog, stock, and
// order-mirror layers: the nouns every other package operates on.
package model

// TradableItem is a catalog entity mirrored from the remote marketplace.
// It is immutable for the lifetime of one cache generation.
type TradableItem struct {
	WFMID      string   `json:"wfm_id"`
	URLName    string   `json:"wfm_url_name"`
	Name       string   `json:"display_name"`
	MaxRank    *int     `json:"max_rank,omitempty"`
	Tags       []string `json:"tags"`
}

// OrderType distinguishes historical (closed) trades from live listings.
type OrderType string

const (
	OrderTypeClosed OrderType = "closed"
	OrderTypeBuy    OrderType = "buy"
	OrderTypeSell   OrderType = "sell"
)

// ItemPriceInfo is a per-item, per-order-type price statistic pulled from
// the remote marketplace's aggregated stats endpoint.
type ItemPriceInfo struct {
	URLName        string    `json:"url_name"`
	OrderType      OrderType `json:"order_type"`
	Volume         float64   `json:"volume"`
	Range          float64   `json:"range"`
	AvgPrice       float64   `json:"avg_price"`
	MovingAvg      *float64  `json:"moving_avg,omitempty"`
	WeekPriceShift float64   `json:"week_price_shift"`
	ModRank        *int      `json:"mod_rank,omitempty"`
}

// SubType distinguishes non-fungible variants of the same catalog item.
// Two SubTypes are equal iff every set field matches.
type SubType struct {
	Rank       *int `json:"rank,omitempty"`
	Variant    *int `json:"variant,omitempty"`
	CyanStars  *int `json:"cyan_stars,omitempty"`
	AmberStars *int `json:"amber_stars,omitempty"`
}

// Equal reports whether two SubTypes represent the same variant.
func (s SubType) Equal(o SubType) bool {
	return intPtrEqual(s.Rank, o.Rank) &&
		intPtrEqual(s.Variant, o.Variant) &&
		intPtrEqual(s.CyanStars, o.CyanStars) &&
		intPtrEqual(s.AmberStars, o.AmberStars)
}

// IsZero reports whether no field is set.
func (s SubType) IsZero() bool {
	return s.Rank == nil && s.Variant == nil && s.CyanStars == nil && s.AmberStars == nil
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// RankOf returns the sub_type's rank, or 0 when unset — used to restrict
// live orders to the candidate's variant during buy/sell decisions.
func (s SubType) RankOf() int {
	if s.Rank == nil {
		return 0
	}
	return *s.Rank
}
