// Package pricer is the item-pricing loop: for every interesting item it
// decides whether to create, update, delete, or skip a buy or sell order,
// applying a knapsack-based capital allocator when total spend is bounded.
// It is grounded on the teacher's scheduled-pass engines (internal/engine),
// generalized from EVE Online undercut analysis to the marketplace's
// buy/sell decision and weighted-average-cost accounting model.
package pricer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"wfm-pricer/internal/config"
	"wfm-pricer/internal/engine"
	"wfm-pricer/internal/logger"
	"wfm-pricer/internal/metrics"
	"wfm-pricer/internal/model"
	"wfm-pricer/internal/notify"
	"wfm-pricer/internal/store"
)

const component = "Pricer"

// marketplaceClient is the subset of wfm.Client the pricing loop needs.
type marketplaceClient interface {
	GetMyOrders(ctx context.Context) (model.Orders, error)
	GetOrdersByItem(ctx context.Context, urlName string) ([]model.Order, error)
	CreateOrder(ctx context.Context, urlName string, side model.OrderSide, platinum, quantity int, sub model.SubType) (model.Order, error)
	UpdateOrder(ctx context.Context, id string, platinum, quantity int) (model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// catalogCache is the subset of cache.Client the pricing loop needs.
type catalogCache interface {
	FindItem(urlName string) (model.TradableItem, bool)
	FindPriceInfo(ctx context.Context, urlName string) ([]model.ItemPriceInfo, error)
	Items() ([]model.TradableItem, error)
}

// stockStore is the subset of store.Store the pricing loop needs.
type stockStore interface {
	All() ([]model.StockItem, error)
	GetByURL(url string, sub model.SubType) (model.StockItem, bool, error)
	UpdateByID(id int64, patch store.UpdatePatch) error
	ResetListedPrices() error
}

// ItemPricer runs one scheduled check_stock pass: selecting interesting
// items, fetching their live order books, and running BuyDecision/
// SellDecision against each.
type ItemPricer struct {
	wfm      marketplaceClient
	cache    catalogCache
	stock    stockStore
	notifier notify.Emitter
	settings *config.Settings

	running atomic.Bool
	memo    interestingMemo
}

// New builds an ItemPricer from its collaborators.
func New(wfm marketplaceClient, cache catalogCache, stock stockStore, notifier notify.Emitter, settings *config.Settings) *ItemPricer {
	p := &ItemPricer{
		wfm:      wfm,
		cache:    cache,
		stock:    stock,
		notifier: notifier,
		settings: settings,
	}
	p.running.Store(true)
	return p
}

// Stop requests that the current and future cycles exit between items.
func (p *ItemPricer) Stop() { p.running.Store(false) }

// Resume allows cycles to run again after Stop.
func (p *ItemPricer) Resume() { p.running.Store(true) }

func (p *ItemPricer) isRunning() bool { return p.running.Load() }

// Run drives the scheduled pricing loop until ctx is cancelled, replacing
// the teacher's inbound HTTP server loop with a polling ticker: this
// system's unit of work is a cycle, not a request.
func (p *ItemPricer) Run(ctx context.Context) {
	interval := time.Duration(p.settings.CycleInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := p.CheckStock(ctx); err != nil {
			logger.Error(component, fmt.Sprintf("check_stock cycle failed: %v", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ForceRefresh invalidates the catalog cache (when the collaborator
// supports it) and evicts the interesting-items memo, then rebuilds the
// selection eagerly. It is the CLI equivalent of the desktop GUI's manual
// cache-refresh button.
func (p *ItemPricer) ForceRefresh(ctx context.Context) error {
	if inv, ok := p.cache.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
	p.memo.clear()
	_, err := p.interestingFromPriceScraper(ctx)
	return err
}

// interestingMemo is the settings-hash-keyed invalidation cache for the
// filtered price-scraper item list: a changed settings key evicts the
// stale entry outright rather than merging with it.
type interestingMemo struct {
	mu    sync.Mutex
	key   string
	items []model.ItemPriceInfo
}

func (m *interestingMemo) get(key string) ([]model.ItemPriceInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key == key {
		return m.items, true
	}
	return nil, false
}

func (m *interestingMemo) set(key string, items []model.ItemPriceInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
	m.items = items
}

func (m *interestingMemo) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = ""
	m.items = nil
}

// orderedSet preserves first-insertion order, which the knapsack's
// deterministic tie-breaks depend on.
type orderedSet struct {
	order []string
	seen  map[string]bool
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool)}
}

func (s *orderedSet) add(v string) {
	if s.seen[v] {
		return
	}
	s.seen[v] = true
	s.order = append(s.order, v)
}

func (s *orderedSet) addAll(vs []string) {
	for _, v := range vs {
		s.add(v)
	}
}

// CheckStock runs one pricing cycle: select interesting items, prune
// opposite-side orders, then process every interesting item's buy and/or
// sell decision.
func (p *ItemPricer) CheckStock(ctx context.Context) error {
	logger.Info(component, "running item stock check")
	p.notifier.Message("stating", nil)

	start := time.Now()
	defer func() { metrics.CycleDuration.Observe(time.Since(start).Seconds()) }()

	settings := p.settings
	orderMode := settings.OrderMode
	blacklist := settings.Blacklist

	interesting := newOrderedSet()
	interesting.addAll(settings.Whitelist)

	priceScraperItems, err := p.interestingFromPriceScraper(ctx)
	if err != nil {
		return err
	}

	var stockItemsAll []model.StockItem
	haveStock := false
	if orderMode == config.ModeSell || orderMode == config.ModeBoth {
		stockItemsAll, err = p.stock.All()
		if err != nil {
			return databaseErr(err)
		}
		haveStock = true
		for _, s := range stockItemsAll {
			interesting.add(s.WFMURL)
		}
	}

	myOrders, err := p.wfm.GetMyOrders(ctx)
	if err != nil {
		return transportErr(err)
	}

	if err := p.pruneOppositeSide(ctx, orderMode, blacklist, &myOrders); err != nil {
		return err
	}

	if orderMode == config.ModeBuy || orderMode == config.ModeBoth {
		for _, it := range priceScraperItems {
			interesting.add(it.URLName)
		}
		if len(myOrders.BuyOrders) != 0 {
			filtered := myOrders.BuyOrders[:0:0]
			for _, ord := range myOrders.BuyOrders {
				if !interesting.seen[ord.ItemURL] {
					continue
				}
				avg := findPriceInfo(priceScraperItems, ord.ItemURL)
				closedAvg := 0.0
				if avg != nil {
					closedAvg = avg.AvgPrice
				}
				ord.ClosedAvg = &closedAvg
				profit := closedAvg - float64(ord.Platinum)
				ord.Profit = &profit
				filtered = append(filtered, ord)
			}
			myOrders.BuyOrders = filtered
		}
	}

	logger.Info(component, fmt.Sprintf("interesting items (%d): %v", len(interesting.order), interesting.order))
	metrics.InterestingItemsSelected.Set(float64(len(interesting.order)))

	total := len(interesting.order)
	for idx, item := range interesting.order {
		if !p.isRunning() || item == "" {
			continue
		}

		itemInfo, ok := p.cache.FindItem(item)
		if !ok {
			logger.Warn(component, fmt.Sprintf("item %s not found in cache", item))
			continue
		}

		p.notifier.Message("checking_item", map[string]any{
			"current": idx + 1,
			"total":   total,
			"name":    itemInfo.Name,
		})

		liveOrders, err := p.wfm.GetOrdersByItem(ctx, item)
		if err != nil {
			logger.Warn(component, fmt.Sprintf("fetch orders for %s: %v", item, err))
			continue
		}
		if len(liveOrders) == 0 {
			logger.Info(component, fmt.Sprintf("item %s has no orders, skipping", itemInfo.Name))
			continue
		}

		var stockItem model.StockItem
		stockFound := false
		if haveStock {
			for _, s := range stockItemsAll {
				if s.WFMURL == itemInfo.URLName {
					stockItem = s
					stockFound = true
					break
				}
			}
		}

		stats := findPriceInfo(priceScraperItems, itemInfo.URLName)
		var itemRank *int
		movingAvg, closedAvg := 0.0, 0.0
		if stats != nil {
			itemRank = stats.ModRank
			if stats.MovingAvg != nil {
				movingAvg = *stats.MovingAvg
			}
			closedAvg = stats.AvgPrice
		} else {
			itemRank = itemInfo.MaxRank
		}

		own := model.FilterByUsername(liveOrders, settings.Username, true)
		own = model.SortByPlatinum(own)

		if mine := model.FilterByUsername(liveOrders, settings.Username, false); len(mine) > 0 {
			var statuses []engine.UndercutStatus
			for _, m := range mine {
				statuses = append(statuses, engine.AnalyzeUndercuts([]model.Order{m}, model.FilterBySubType(liveOrders, m.SubType, false))...)
			}
			for _, status := range statuses {
				p.notifier.Message("book_levels", map[string]any{
					"name":      itemInfo.Name,
					"order_id":  status.OrderID,
					"side":      status.Side,
					"position":  status.Position,
					"total":     status.TotalOrders,
					"best":      status.BestPrice,
					"undercut":  status.UndercutAmount,
					"suggested": status.SuggestedPrice,
				})
			}
		}

		if orderMode == config.ModeBuy || orderMode == config.ModeBoth {
			if err := p.BuyDecision(ctx, itemInfo, itemRank, &myOrders, own, closedAvg); err != nil {
				se, ok := err.(*StepError)
				if ok && se.warning() {
					logger.Warn(component, fmt.Sprintf("buy decision for %s: %v", item, err))
				} else {
					return err
				}
			}
		}

		if (orderMode == config.ModeSell || orderMode == config.ModeBoth) && stockFound {
			if err := p.SellDecision(ctx, itemInfo, movingAvg, &myOrders, own, &stockItem); err != nil {
				se, ok := err.(*StepError)
				if ok && se.warning() {
					logger.Warn(component, fmt.Sprintf("sell decision for %s: %v", item, err))
				} else {
					return err
				}
			}
		}
	}

	return nil
}

func findPriceInfo(items []model.ItemPriceInfo, urlName string) *model.ItemPriceInfo {
	for i := range items {
		if items[i].URLName == urlName {
			return &items[i]
		}
	}
	return nil
}

// pruneOppositeSide implements §4.4.2: when the operator runs strictly one
// side of the market, every non-blacklisted order on the other side is
// deleted up front.
func (p *ItemPricer) pruneOppositeSide(ctx context.Context, mode config.OrderMode, blacklist []string, myOrders *model.Orders) error {
	if mode != config.ModeBuy && mode != config.ModeSell {
		return nil
	}
	// Buy mode prunes resting sell orders; sell mode prunes resting buy orders.
	side := model.SideSell
	// Copy the slice: DeleteOrderByID shifts the mirror's backing array.
	orders := append([]model.Order(nil), myOrders.SellOrders...)
	if mode == config.ModeSell {
		side = model.SideBuy
		orders = append([]model.Order(nil), myOrders.BuyOrders...)
	}

	blacklisted := make(map[string]bool, len(blacklist))
	for _, b := range blacklist {
		blacklisted[b] = true
	}

	for _, ord := range orders {
		if blacklisted[ord.ItemURL] {
			continue
		}
		if err := p.wfm.DeleteOrder(ctx, ord.ID); err != nil {
			return transportErr(err)
		}
		myOrders.DeleteOrderByID(side, ord.ID)
	}
	return nil
}

// interestingFromPriceScraper implements §4.4.1 step 3: the price-stats
// filter, memoized under a deterministic key derived from every input that
// can change its result.
func (p *ItemPricer) interestingFromPriceScraper(ctx context.Context) ([]model.ItemPriceInfo, error) {
	settings := p.settings

	stockURLs, err := p.stockURLs()
	if err != nil {
		return nil, databaseErr(err)
	}

	key := fmt.Sprintf(
		"get_buy|vol:%v ran:%v avg_p%v price_shift:%v strict_whitelist:%v whitelist%v:mode:%v stock:%v blacklist:%v",
		settings.VolumeThreshold, settings.RangeThreshold, settings.AvgPriceCap,
		settings.PriceShiftThreshold, settings.StrictWhitelist, settings.Whitelist,
		settings.StockMode, stockURLs, settings.Blacklist,
	)

	if cached, ok := p.memo.get(key); ok {
		return cached, nil
	}

	catalog, err := p.cache.Items()
	if err != nil {
		return nil, transportErr(err)
	}

	var allStats []model.ItemPriceInfo
	for _, item := range catalog {
		stats, err := p.cache.FindPriceInfo(ctx, item.URLName)
		if err != nil {
			// One item's stats endpoint failing (e.g. delisted item)
			// must not abort the whole selection pass.
			logger.Warn(component, fmt.Sprintf("price stats for %s: %v", item.URLName, err))
			continue
		}
		allStats = append(allStats, stats...)
	}

	filtered := filterInterestingItems(allStats, settings, stockURLs)
	p.memo.set(key, filtered)
	return filtered, nil
}

func (p *ItemPricer) stockURLs() ([]string, error) {
	items, err := p.stock.All()
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(items))
	for _, it := range items {
		urls = append(urls, it.WFMURL)
	}
	sort.Strings(urls)
	return urls, nil
}

// filterInterestingItems applies §4.4.1's predicate, reproduced exactly as
// the original implementation evaluates it (operator precedence makes the
// week_price_shift check appear twice and the stock-item branch sit outside
// the rest of the conjunction — see DESIGN.md for the resolved grouping):
//
//	(closed ∧ volume>vt ∧ range>rt ∧ url∉blacklist ∧ E ∧ shift≥pst) ∨ (url∈stock_urls ∧ closed)
//
// where E is the strict/loose whitelist clause.
func filterInterestingItems(items []model.ItemPriceInfo, settings *config.Settings, stockURLs []string) []model.ItemPriceInfo {
	blacklist := make(map[string]bool, len(settings.Blacklist))
	for _, b := range settings.Blacklist {
		blacklist[b] = true
	}
	whitelist := make(map[string]bool, len(settings.Whitelist))
	for _, w := range settings.Whitelist {
		whitelist[w] = true
	}
	stockSet := make(map[string]bool, len(stockURLs))
	for _, u := range stockURLs {
		stockSet[u] = true
	}

	var out []model.ItemPriceInfo
	for _, it := range items {
		closed := it.OrderType == model.OrderTypeClosed

		stockBranch := stockSet[it.URLName] && closed

		mainBranch := closed &&
			it.Volume > settings.VolumeThreshold &&
			it.Range > settings.RangeThreshold &&
			!blacklist[it.URLName] &&
			whitelistClause(settings, whitelist, it) &&
			it.WeekPriceShift >= settings.PriceShiftThreshold

		if mainBranch || stockBranch {
			out = append(out, it)
		}
	}
	return out
}

func whitelistClause(settings *config.Settings, whitelist map[string]bool, it model.ItemPriceInfo) bool {
	if settings.StrictWhitelist && whitelist[it.URLName] {
		return true
	}
	loose := !settings.StrictWhitelist || (whitelist[it.URLName] && it.AvgPrice <= float64(settings.AvgPriceCap))
	return loose && it.WeekPriceShift >= settings.PriceShiftThreshold
}
