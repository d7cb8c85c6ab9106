package model

import "testing"

func ptr(v int) *int { return &v }

func TestSubType_Equal(t *testing.T) {
	a := SubType{Rank: ptr(3)}
	b := SubType{Rank: ptr(3)}
	c := SubType{Rank: ptr(4)}
	if !a.Equal(b) {
		t.Error("expected equal SubTypes to compare equal")
	}
	if a.Equal(c) {
		t.Error("expected differing SubTypes to compare unequal")
	}
	if !(SubType{}).IsZero() {
		t.Error("zero-value SubType should report IsZero")
	}
}

func TestFilterBySubType(t *testing.T) {
	rank3 := SubType{Rank: ptr(3)}
	orders := []Order{
		{ID: "1", SubType: rank3},
		{ID: "2", SubType: SubType{}},
		{ID: "3", SubType: SubType{Rank: ptr(5)}},
	}

	withUnset := FilterBySubType(orders, rank3, true)
	if len(withUnset) != 2 {
		t.Errorf("len = %d, want 2 (matching + unset)", len(withUnset))
	}

	withoutUnset := FilterBySubType(orders, rank3, false)
	if len(withoutUnset) != 1 || withoutUnset[0].ID != "1" {
		t.Errorf("withoutUnset = %+v, want only id=1", withoutUnset)
	}
}

func TestFilterByUsername(t *testing.T) {
	orders := []Order{
		{ID: "1", Username: "me"},
		{ID: "2", Username: "someone_else"},
	}
	excluded := FilterByUsername(orders, "me", true)
	if len(excluded) != 1 || excluded[0].ID != "2" {
		t.Errorf("excluded = %+v", excluded)
	}
	onlyMine := FilterByUsername(orders, "me", false)
	if len(onlyMine) != 1 || onlyMine[0].ID != "1" {
		t.Errorf("onlyMine = %+v", onlyMine)
	}
}

func TestOrders_GetPriceRange(t *testing.T) {
	o := Orders{SellOrders: []Order{{Platinum: 50}, {Platinum: 80}, {Platinum: 60}}}
	if got := o.GetPriceRange(); got != 30 {
		t.Errorf("GetPriceRange = %d, want 30", got)
	}
	empty := Orders{}
	if got := empty.GetPriceRange(); got != 0 {
		t.Errorf("GetPriceRange on empty = %d, want 0", got)
	}
}

func TestOrders_HighestPriceAndLowestOrder(t *testing.T) {
	o := Orders{BuyOrders: []Order{{ID: "a", Platinum: 10}, {ID: "b", Platinum: 30}}}
	if got := o.HighestPrice(SideBuy); got != 30 {
		t.Errorf("HighestPrice = %d, want 30", got)
	}
	lo, ok := o.LowestOrder(SideBuy)
	if !ok || lo.ID != "a" {
		t.Errorf("LowestOrder = %+v, ok=%v", lo, ok)
	}
	empty := Orders{}
	if _, ok := empty.LowestOrder(SideSell); ok {
		t.Error("LowestOrder on empty side should report ok=false")
	}
}

func TestPushPriceHistory_EvictsOldest(t *testing.T) {
	var history []PriceHistory
	for i := 0; i < 7; i++ {
		history = PushPriceHistory(history, PriceHistory{Price: i})
	}
	if len(history) != MaxPriceHistory {
		t.Fatalf("len = %d, want %d", len(history), MaxPriceHistory)
	}
	if history[len(history)-1].Price != 6 {
		t.Errorf("last = %d, want 6", history[len(history)-1].Price)
	}
	if history[0].Price != 2 {
		t.Errorf("first = %d, want 2 (oldest 0,1 evicted)", history[0].Price)
	}
}
