package pricer

import (
	"context"
	"testing"
	"time"

	"wfm-pricer/internal/config"
	"wfm-pricer/internal/model"
)

func TestPruneOppositeSide_DeletesRestingOrdersOnOtherSide(t *testing.T) {
	settings := config.Default()
	market := &fakeMarket{}
	p := newTestPricer(market, newFakeCache(), newFakeStock(), settings)

	myOrders := &model.Orders{
		SellOrders: []model.Order{
			{ID: "s1", ItemURL: "braton_prime_set", Side: model.SideSell},
			{ID: "s2", ItemURL: "blacklisted_item", Side: model.SideSell},
		},
	}

	err := p.pruneOppositeSide(t.Context(), config.ModeBuy, []string{"blacklisted_item"}, myOrders)
	if err != nil {
		t.Fatalf("pruneOppositeSide: %v", err)
	}

	if len(market.deleted) != 1 || market.deleted[0] != "s1" {
		t.Errorf("deleted = %v, want [s1]", market.deleted)
	}
	if len(myOrders.SellOrders) != 1 || myOrders.SellOrders[0].ID != "s2" {
		t.Errorf("remaining sell orders = %+v, want just the blacklisted one", myOrders.SellOrders)
	}
}

func TestPruneOppositeSide_NoopInBothMode(t *testing.T) {
	settings := config.Default()
	market := &fakeMarket{}
	p := newTestPricer(market, newFakeCache(), newFakeStock(), settings)

	myOrders := &model.Orders{
		SellOrders: []model.Order{{ID: "s1", ItemURL: "braton_prime_set", Side: model.SideSell}},
		BuyOrders:  []model.Order{{ID: "b1", ItemURL: "braton_prime_set", Side: model.SideBuy}},
	}

	if err := p.pruneOppositeSide(t.Context(), config.ModeBoth, nil, myOrders); err != nil {
		t.Fatalf("pruneOppositeSide: %v", err)
	}
	if len(market.deleted) != 0 {
		t.Errorf("both mode should prune nothing, got %v", market.deleted)
	}
}

func TestFilterInterestingItems_MainBranchRequiresEveryGate(t *testing.T) {
	settings := config.Default()
	settings.VolumeThreshold = 15
	settings.RangeThreshold = 4
	settings.PriceShiftThreshold = -1

	items := []model.ItemPriceInfo{
		{URLName: "passes", OrderType: model.OrderTypeClosed, Volume: 20, Range: 10, WeekPriceShift: 0},
		{URLName: "low_volume", OrderType: model.OrderTypeClosed, Volume: 5, Range: 10, WeekPriceShift: 0},
		{URLName: "not_closed", OrderType: model.OrderTypeSell, Volume: 20, Range: 10, WeekPriceShift: 0},
	}

	out := filterInterestingItems(items, settings, nil)

	if len(out) != 1 || out[0].URLName != "passes" {
		t.Errorf("filtered = %+v, want just 'passes'", out)
	}
}

func TestFilterInterestingItems_StockBranchBypassesThresholds(t *testing.T) {
	settings := config.Default()
	settings.VolumeThreshold = 1000 // main branch can never pass
	settings.RangeThreshold = 1000

	items := []model.ItemPriceInfo{
		{URLName: "owned_item", OrderType: model.OrderTypeClosed, Volume: 1, Range: 1},
	}

	out := filterInterestingItems(items, settings, []string{"owned_item"})

	if len(out) != 1 || out[0].URLName != "owned_item" {
		t.Errorf("filtered = %+v, want owned_item via the stock branch", out)
	}
}

func TestDeleteAllOrders_SkipsBlacklisted(t *testing.T) {
	settings := config.Default()
	settings.Blacklist = []string{"blacklisted_item"}

	market := &fakeMarket{
		myOrders: model.Orders{
			BuyOrders: []model.Order{
				{ID: "b1", ItemURL: "braton_prime_set"},
				{ID: "b2", ItemURL: "blacklisted_item"},
			},
		},
	}
	p := newTestPricer(market, newFakeCache(), newFakeStock(), settings)

	if err := p.DeleteAllOrders(t.Context(), config.ModeBuy); err != nil {
		t.Fatalf("DeleteAllOrders: %v", err)
	}

	if len(market.deleted) != 1 || market.deleted[0] != "b1" {
		t.Errorf("deleted = %v, want [b1]", market.deleted)
	}
}

func TestDeleteAllOrders_StopsEarlyWhenNotRunning(t *testing.T) {
	settings := config.Default()
	market := &fakeMarket{
		myOrders: model.Orders{
			BuyOrders: []model.Order{
				{ID: "b1", ItemURL: "braton_prime_set"},
				{ID: "b2", ItemURL: "lex_prime_set"},
			},
		},
	}
	p := newTestPricer(market, newFakeCache(), newFakeStock(), settings)
	p.Stop()

	if err := p.DeleteAllOrders(t.Context(), config.ModeBuy); err != nil {
		t.Fatalf("DeleteAllOrders: %v", err)
	}

	if len(market.deleted) != 0 {
		t.Errorf("stopped pricer should delete nothing, got %v", market.deleted)
	}
}

func TestRun_StopsWhenContextCancelled(t *testing.T) {
	settings := config.Default()
	settings.CycleInterval = 3600 // long enough that only ctx cancellation ends Run
	p := newTestPricer(&fakeMarket{}, newFakeCache(), newFakeStock(), settings)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestForceRefresh_RebuildsMemo(t *testing.T) {
	settings := config.Default()
	cache := newFakeCache()
	cache.byURL["braton_prime_set"] = model.TradableItem{URLName: "braton_prime_set", Name: "Braton Prime Set"}
	p := newTestPricer(&fakeMarket{}, cache, newFakeStock(), settings)

	if err := p.ForceRefresh(t.Context()); err != nil {
		t.Fatalf("ForceRefresh: %v", err)
	}
	if p.memo.key == "" {
		t.Error("expected ForceRefresh to populate the interesting-items memo")
	}
}
