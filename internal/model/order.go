package model

import "sort"

// OrderSide is the remote marketplace order side.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// Order is a local mirror of one of the operator's (or a competitor's) live
// listings on the remote marketplace.
type Order struct {
	ID         string
	ItemURL    string
	SubType    SubType
	Side       OrderSide
	Platinum   int
	Quantity   int
	Visible    bool
	ClosedAvg  *float64
	Profit     *float64
	Username   string // in-game name of the order's owner, as reported by the marketplace
	SellerID   string
}

// Orders is the in-memory mirror of the operator's live orders, split by
// side the way the remote API itself reports them.
type Orders struct {
	BuyOrders  []Order
	SellOrders []Order
}

func sideSlice(o *Orders, side OrderSide) []Order {
	if side == SideBuy {
		return o.BuyOrders
	}
	return o.SellOrders
}

func setSideSlice(o *Orders, side OrderSide, orders []Order) {
	if side == SideBuy {
		o.BuyOrders = orders
	} else {
		o.SellOrders = orders
	}
}

// Find returns the order matching url/side/sub_type, if any.
func (o *Orders) Find(url string, side OrderSide, sub SubType) (Order, bool) {
	for _, ord := range sideSlice(o, side) {
		if ord.ItemURL == url && ord.SubType.Equal(sub) {
			return ord, true
		}
	}
	return Order{}, false
}

// FilterBySubType retains orders whose sub_type matches s. When
// includeUnset is false, orders with a zero SubType are dropped too.
func FilterBySubType(orders []Order, s SubType, includeUnset bool) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if o.SubType.Equal(s) {
			out = append(out, o)
			continue
		}
		if includeUnset && o.SubType.IsZero() {
			out = append(out, o)
		}
	}
	return out
}

// FilterByUsername retains (exclude=false) or drops (exclude=true) orders
// belonging to the named seller.
func FilterByUsername(orders []Order, name string, exclude bool) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		match := o.Username == name
		if match == exclude {
			continue
		}
		out = append(out, o)
	}
	return out
}

// SortByPlatinum returns a copy of orders sorted ascending by platinum.
func SortByPlatinum(orders []Order) []Order {
	out := make([]Order, len(orders))
	copy(out, orders)
	sort.Slice(out, func(i, j int) bool { return out[i].Platinum < out[j].Platinum })
	return out
}

// HighestPrice returns the highest platinum among orders of the given side,
// or 0 when there are none.
func (o *Orders) HighestPrice(side OrderSide) int {
	best := 0
	for _, ord := range sideSlice(o, side) {
		if ord.Platinum > best {
			best = ord.Platinum
		}
	}
	return best
}

// LowestOrder returns the lowest-platinum order of the given side.
func (o *Orders) LowestOrder(side OrderSide) (Order, bool) {
	orders := sideSlice(o, side)
	if len(orders) == 0 {
		return Order{}, false
	}
	lowest := orders[0]
	for _, ord := range orders[1:] {
		if ord.Platinum < lowest.Platinum {
			lowest = ord
		}
	}
	return lowest, true
}

// GetPriceRange returns highest sell minus lowest sell, or 0 when undefined.
func (o *Orders) GetPriceRange() int {
	if len(o.SellOrders) == 0 {
		return 0
	}
	lo, hi := o.SellOrders[0].Platinum, o.SellOrders[0].Platinum
	for _, ord := range o.SellOrders[1:] {
		if ord.Platinum < lo {
			lo = ord.Platinum
		}
		if ord.Platinum > hi {
			hi = ord.Platinum
		}
	}
	if hi < lo {
		return 0
	}
	return hi - lo
}

// UpdateOrder replaces the order matching id on the given side in place.
func (o *Orders) UpdateOrder(side OrderSide, updated Order) bool {
	orders := sideSlice(o, side)
	for i, ord := range orders {
		if ord.ID == updated.ID {
			orders[i] = updated
			setSideSlice(o, side, orders)
			return true
		}
	}
	return false
}

// DeleteOrderByID removes the order with the given id from the given side.
func (o *Orders) DeleteOrderByID(side OrderSide, id string) bool {
	orders := sideSlice(o, side)
	for i, ord := range orders {
		if ord.ID == id {
			setSideSlice(o, side, append(orders[:i], orders[i+1:]...))
			return true
		}
	}
	return false
}

// AppendOrder adds a newly created order to the mirror for the given side.
func (o *Orders) AppendOrder(side OrderSide, ord Order) {
	if side == SideBuy {
		o.BuyOrders = append(o.BuyOrders, ord)
	} else {
		o.SellOrders = append(o.SellOrders, ord)
	}
}
