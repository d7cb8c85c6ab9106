package pricer

import (
	"context"
	"fmt"

	"wfm-pricer/internal/model"
	"wfm-pricer/internal/notify"
	"wfm-pricer/internal/store"
)

// fakeMarket is a scriptable marketplaceClient used across the package's
// tests; zero value is a market with no orders and no items.
type fakeMarket struct {
	myOrders     model.Orders
	ordersByItem map[string][]model.Order

	createErr error
	created   model.Order // template merged into every created order
	nextID    int

	createdOrders []model.Order
	deleted       []string
	updated       []model.Order
}

func (f *fakeMarket) GetMyOrders(ctx context.Context) (model.Orders, error) {
	return f.myOrders, nil
}

func (f *fakeMarket) GetOrdersByItem(ctx context.Context, urlName string) ([]model.Order, error) {
	return f.ordersByItem[urlName], nil
}

func (f *fakeMarket) CreateOrder(ctx context.Context, urlName string, side model.OrderSide, platinum, quantity int, sub model.SubType) (model.Order, error) {
	if f.createErr != nil {
		return model.Order{}, f.createErr
	}
	f.nextID++
	ord := f.created
	if ord.ID == "" {
		ord.ID = fmt.Sprintf("new-%d", f.nextID)
	}
	ord.ItemURL = urlName
	ord.Side = side
	ord.Platinum = platinum
	ord.Quantity = quantity
	ord.Visible = true
	ord.SubType = sub
	f.createdOrders = append(f.createdOrders, ord)
	return ord, nil
}

func (f *fakeMarket) UpdateOrder(ctx context.Context, id string, platinum, quantity int) (model.Order, error) {
	ord := model.Order{ID: id, Platinum: platinum, Quantity: quantity, Visible: true}
	f.updated = append(f.updated, ord)
	return ord, nil
}

func (f *fakeMarket) DeleteOrder(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

// fakeCache is a scriptable catalogCache.
type fakeCache struct {
	byURL map[string]model.TradableItem
	stats map[string][]model.ItemPriceInfo
}

func newFakeCache() *fakeCache {
	return &fakeCache{byURL: map[string]model.TradableItem{}, stats: map[string][]model.ItemPriceInfo{}}
}

func (f *fakeCache) FindItem(urlName string) (model.TradableItem, bool) {
	it, ok := f.byURL[urlName]
	return it, ok
}

func (f *fakeCache) FindPriceInfo(ctx context.Context, urlName string) ([]model.ItemPriceInfo, error) {
	return f.stats[urlName], nil
}

func (f *fakeCache) Items() ([]model.TradableItem, error) {
	out := make([]model.TradableItem, 0, len(f.byURL))
	for _, it := range f.byURL {
		out = append(out, it)
	}
	return out, nil
}

// fakeStock is a scriptable stockStore.
type fakeStock struct {
	items   map[int64]model.StockItem
	patches []store.UpdatePatch
}

func newFakeStock() *fakeStock {
	return &fakeStock{items: map[int64]model.StockItem{}}
}

func (f *fakeStock) All() ([]model.StockItem, error) {
	out := make([]model.StockItem, 0, len(f.items))
	for _, it := range f.items {
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeStock) GetByURL(url string, sub model.SubType) (model.StockItem, bool, error) {
	for _, it := range f.items {
		if it.WFMURL == url && it.SubType.Equal(sub) {
			return it, true, nil
		}
	}
	return model.StockItem{}, false, nil
}

func (f *fakeStock) UpdateByID(id int64, patch store.UpdatePatch) error {
	f.patches = append(f.patches, patch)
	return nil
}

func (f *fakeStock) ResetListedPrices() error {
	return nil
}

// fakeNotifier discards every event; tests inspect collaborator state
// directly instead of the notification stream.
type fakeNotifier struct{}

func (fakeNotifier) Message(key string, detail map[string]any)       {}
func (fakeNotifier) StockUpdate(op notify.Operation, payload any)     {}
func (fakeNotifier) OrderUpdate(op notify.Operation, payload any)     {}
