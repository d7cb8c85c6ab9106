package model

import "time"

// StockStatus is the lifecycle state of an owned stock row, driven entirely
// by the pricing loop's buy/sell decisions.
type StockStatus string

const (
	StatusPending     StockStatus = "pending"
	StatusLive        StockStatus = "live"
	StatusInActive    StockStatus = "inactive"
	StatusNoSellers   StockStatus = "no_sellers"
	StatusSMALimit    StockStatus = "sma_limit"
	StatusToLowProfit StockStatus = "to_low_profit"
	StatusOverpriced  StockStatus = "overpriced"
	StatusUnderpriced StockStatus = "underpriced"
	StatusOrderLimit  StockStatus = "order_limit"
)

// MaxPriceHistory bounds the ring buffer kept per stock row.
const MaxPriceHistory = 5

// PriceHistory is one recorded sell listing, kept for trend display.
type PriceHistory struct {
	SellerUserID string    `json:"seller_user_id"`
	SellerName   string    `json:"seller_name"`
	Price        int       `json:"price"`
	CreatedAt    time.Time `json:"created_at"`
}

// StockItem is a persisted row of owned inventory.
//
// Invariants: Owned >= 1 (a row with Owned <= 0 is deleted, never stored);
// Bought >= 0; len(PriceHistory) <= MaxPriceHistory; exactly one row exists
// per (WFMURL, SubType) pair.
type StockItem struct {
	ID           int64
	WFMURL       string
	WFMID        string
	DisplayName  string
	SubType      SubType
	Bought       float64 // weighted-average cost per unit
	Owned        int
	MinimumPrice *int // nil = unset
	ListPrice    *int // nil = unset; last posted sell price
	Status       StockStatus
	PriceHistory []PriceHistory
	IsHidden     bool
	CreatedAt    time.Time
}

// PushPriceHistory appends an entry, evicting the oldest once the buffer
// would exceed MaxPriceHistory.
func PushPriceHistory(history []PriceHistory, entry PriceHistory) []PriceHistory {
	if len(history) >= MaxPriceHistory {
		history = history[len(history)-MaxPriceHistory+1:]
	}
	return append(history, entry)
}

// LastPrice returns the price of the most recent history entry, or -1 if
// there is none.
func LastPrice(history []PriceHistory) int {
	if len(history) == 0 {
		return -1
	}
	return history[len(history)-1].Price
}
