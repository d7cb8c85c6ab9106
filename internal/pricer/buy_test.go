package pricer

import (
	"testing"

	"wfm-pricer/internal/config"
	"wfm-pricer/internal/model"
)

func newTestPricer(market *fakeMarket, cache *fakeCache, stock *fakeStock, settings *config.Settings) *ItemPricer {
	return New(market, cache, stock, fakeNotifier{}, settings)
}

func TestBuyDecision_NoActionWithoutLiveBuyOrders(t *testing.T) {
	settings := config.Default()
	settings.AvgPriceCap = 700
	settings.MaxTotalPriceCap = 500

	market := &fakeMarket{}
	p := newTestPricer(market, newFakeCache(), newFakeStock(), settings)

	item := model.TradableItem{WFMID: "wfm1", URLName: "braton_prime_set", Name: "Braton Prime Set"}
	myOrders := &model.Orders{}

	// One resting sell order gets past the empty-sell-side guard; with a
	// single sell order the price range is 0.
	live := []model.Order{
		{ID: "s1", ItemURL: item.URLName, Side: model.SideSell, Platinum: 60},
	}

	err := p.BuyDecision(t.Context(), item, nil, myOrders, live, 40)
	if err != nil {
		t.Fatalf("BuyDecision: %v", err)
	}

	// No existing buy orders at all means the len(buyOrders)==0 short
	// circuit applies and nothing is created — this exercises that guard.
	if len(market.createdOrders) != 0 {
		t.Errorf("expected no order created, got %+v", market.createdOrders)
	}
}

func TestBuyDecision_NoActionWhenSellSideEmpty(t *testing.T) {
	settings := config.Default()
	market := &fakeMarket{}
	p := newTestPricer(market, newFakeCache(), newFakeStock(), settings)

	item := model.TradableItem{WFMID: "wfm1", URLName: "braton_prime_set", Name: "Braton Prime Set"}
	myOrders := &model.Orders{
		BuyOrders: []model.Order{
			{ID: "b1", ItemURL: item.URLName, Side: model.SideBuy, Platinum: 40, Visible: true},
		},
	}
	// Only buy-side orders in the live book: sell_orders is empty, which
	// must short-circuit to no action regardless of closedAvg/priceRange.
	live := []model.Order{
		{ID: "b1", ItemURL: item.URLName, Side: model.SideBuy, Platinum: 40},
	}

	if err := p.BuyDecision(t.Context(), item, nil, myOrders, live, 40); err != nil {
		t.Fatalf("BuyDecision: %v", err)
	}

	if len(market.createdOrders) != 0 {
		t.Errorf("expected no order created, got %+v", market.createdOrders)
	}
	if len(market.updated) != 0 {
		t.Errorf("expected no order updated, got %v", market.updated)
	}
	if len(market.deleted) != 0 {
		t.Errorf("expected no order deleted, got %v", market.deleted)
	}
}

func TestBuyDecision_SkipsOverpricedItem(t *testing.T) {
	settings := config.Default()
	settings.AvgPriceCap = 50

	market := &fakeMarket{}
	p := newTestPricer(market, newFakeCache(), newFakeStock(), settings)

	item := model.TradableItem{WFMID: "wfm1", URLName: "lex_prime_set", Name: "Lex Prime Set"}
	myOrders := &model.Orders{
		BuyOrders: []model.Order{
			{ID: "b1", ItemURL: item.URLName, Side: model.SideBuy, Platinum: 80, Visible: true},
		},
	}
	live := []model.Order{
		{ID: "b1", ItemURL: item.URLName, Side: model.SideBuy, Platinum: 80},
		{ID: "s1", ItemURL: item.URLName, Side: model.SideSell, Platinum: 200},
	}

	if err := p.BuyDecision(t.Context(), item, nil, myOrders, live, 150); err != nil {
		t.Fatalf("BuyDecision: %v", err)
	}

	if len(market.deleted) != 0 {
		t.Errorf("overpriced item should not delete orders, got %v", market.deleted)
	}
	if len(market.updated) != 0 {
		t.Errorf("overpriced item should not update orders, got %v", market.updated)
	}
}

func TestBuyDecision_EvictsUnselectedKnapsackOrder(t *testing.T) {
	settings := config.Default()
	settings.MaxTotalPriceCap = 15 // tight enough that both candidates can't fit at once

	market := &fakeMarket{}
	p := newTestPricer(market, newFakeCache(), newFakeStock(), settings)

	// A cheap, low-profit resting order on a different item competes for
	// budget against the new item's much more profitable candidate.
	existingProfit := 5.0
	myOrders := &model.Orders{
		BuyOrders: []model.Order{
			{ID: "resting-1", ItemURL: "other_item", Side: model.SideBuy, Platinum: 10, Profit: &existingProfit},
		},
	}

	item := model.TradableItem{WFMID: "wfm2", URLName: "akbolto_prime_set", Name: "Akbolto Prime Set"}
	live := []model.Order{
		{ID: "b1", ItemURL: item.URLName, Side: model.SideBuy, Platinum: 10},
		{ID: "s1", ItemURL: item.URLName, Side: model.SideSell, Platinum: 100},
		{ID: "s2", ItemURL: item.URLName, Side: model.SideSell, Platinum: 130},
	}

	if err := p.BuyDecision(t.Context(), item, nil, myOrders, live, 200); err != nil {
		t.Fatalf("BuyDecision: %v", err)
	}

	if len(market.deleted) != 1 || market.deleted[0] != "resting-1" {
		t.Errorf("deleted = %v, want [resting-1]", market.deleted)
	}
	if len(market.createdOrders) != 1 || market.createdOrders[0].ItemURL != item.URLName {
		t.Errorf("createdOrders = %+v, want one order for %s", market.createdOrders, item.URLName)
	}
}
