package pricer

import (
	"context"
	"fmt"
	"time"

	"wfm-pricer/internal/logger"
	"wfm-pricer/internal/metrics"
	"wfm-pricer/internal/model"
	"wfm-pricer/internal/notify"
	"wfm-pricer/internal/store"
)

// SellDecision implements §4.4.5: given one owned stock row and the live
// sell-side order book for it, decide whether to create, update, or delete
// the operator's sell order, and whether the row's persisted status/price
// needs to change.
func (p *ItemPricer) SellDecision(ctx context.Context, item model.TradableItem, movingAvg float64, myOrders *model.Orders, liveOrders []model.Order, stockItem *model.StockItem) error {
	settings := p.settings

	userOrder, _ := myOrders.Find(item.URLName, model.SideSell, stockItem.SubType)

	if userOrder.Visible && stockItem.IsHidden {
		p.notifier.Message("not_in_inventory", map[string]any{"name": item.Name})
		p.notifier.OrderUpdate(notify.OpDelete, map[string]any{"id": userOrder.ID})
		if err := p.wfm.DeleteOrder(ctx, userOrder.ID); err != nil {
			return transportErr(err)
		}
		myOrders.DeleteOrderByID(model.SideSell, userOrder.ID)
		metrics.OrdersDeletedTotal.WithLabelValues("sell", "hidden").Inc()
		logger.Info(component, fmt.Sprintf("item %s is not in inventory, deleted order", item.Name))
		return nil
	}

	original := *stockItem

	filtered := model.FilterBySubType(liveOrders, stockItem.SubType, false)
	var sellOrders []model.Order
	for _, o := range filtered {
		if o.Side == model.SideSell {
			sellOrders = append(sellOrders, o)
		}
	}

	bought := int(stockItem.Bought)
	quantity := stockItem.Owned
	minimumPrice := stockItem.MinimumPrice

	var history model.PriceHistory
	history.CreatedAt = time.Now().UTC()

	lowestPrice := 0
	if len(sellOrders) > 2 {
		lowest := sellOrders[0]
		for _, o := range sellOrders[1:] {
			if o.Platinum < lowest.Platinum {
				lowest = o
			}
		}
		lowestPrice = lowest.Platinum
		history.SellerUserID = lowest.SellerID
		history.SellerName = lowest.Username
	} else {
		stockItem.Status = model.StatusNoSellers
	}

	postPrice := lowestPrice
	if stockItem.Status != model.StatusNoSellers {
		stockItem.Status = model.StatusLive
	}

	if bought > postPrice {
		postPrice = bought + settings.MinProfit
	}

	if postPrice < int(movingAvg)-settings.MinSMA {
		postPrice = int(movingAvg)
		stockItem.Status = model.StatusSMALimit
	}

	if minimumPrice != nil && postPrice < *minimumPrice {
		postPrice = *minimumPrice
	}

	profit := postPrice - bought
	history.Price = postPrice

	var listPrice *int
	var appendHistory *model.PriceHistory
	if profit <= 0 {
		stockItem.Status = model.StatusToLowProfit
		listPrice = nil
	} else {
		if model.LastPrice(original.PriceHistory) != postPrice {
			stockItem.PriceHistory = model.PushPriceHistory(stockItem.PriceHistory, history)
			appendHistory = &history
		}
		p := postPrice
		listPrice = &p
	}
	stockItem.ListPrice = listPrice

	if userOrder.Visible {
		if stockItem.Status == model.StatusToLowProfit {
			p.notifier.Message("low_profit_delete", map[string]any{"name": item.Name})
			if err := p.wfm.DeleteOrder(ctx, userOrder.ID); err != nil {
				return transportErr(err)
			}
			myOrders.DeleteOrderByID(model.SideSell, userOrder.ID)
			p.notifier.OrderUpdate(notify.OpDelete, map[string]any{"id": userOrder.ID})
			p.notifier.StockUpdate(notify.OpDelete, map[string]any{"id": stockItem.ID})
			metrics.OrdersDeletedTotal.WithLabelValues("sell", "low_profit").Inc()
		} else {
			if _, err := p.wfm.UpdateOrder(ctx, userOrder.ID, postPrice, quantity); err != nil {
				return transportErr(err)
			}
			if userOrder.Platinum != postPrice {
				userOrder.Platinum = postPrice
				userOrder.Quantity = quantity
				myOrders.UpdateOrder(model.SideSell, userOrder)
				p.notifier.OrderUpdate(notify.OpCreateOrUpdate, userOrder)
				p.notifier.StockUpdate(notify.OpCreateOrUpdate, *stockItem)
				metrics.OrdersUpdatedTotal.WithLabelValues("sell").Inc()
			}
		}
	} else if stockItem.Status != model.StatusToLowProfit {
		p.notifier.Message("created", map[string]any{"name": item.Name, "price": postPrice, "profit": profit})

		created, err := p.wfm.CreateOrder(ctx, item.WFMID, model.SideSell, postPrice, quantity, stockItem.SubType)
		if err != nil {
			if isOrderLimitReached(err) {
				p.notifier.Message("order_limit_reached", map[string]any{"name": item.Name})
				stockItem.Status = model.StatusOrderLimit
				stockItem.ListPrice = nil
				metrics.OrderLimitHitsTotal.WithLabelValues("sell").Inc()
			} else {
				return transportErr(err)
			}
		} else {
			myOrders.AppendOrder(model.SideSell, created)
			p.notifier.OrderUpdate(notify.OpCreateOrUpdate, created)
			metrics.OrdersPlacedTotal.WithLabelValues("sell").Inc()
		}
	}

	if !equalIntPtr(stockItem.ListPrice, original.ListPrice) ||
		stockItem.Status != original.Status ||
		appendHistory != nil {

		if err := p.persistStockItem(stockItem, appendHistory); err != nil {
			return err
		}
		p.notifier.StockUpdate(notify.OpCreateOrUpdate, *stockItem)
	}

	return nil
}

func (p *ItemPricer) persistStockItem(item *model.StockItem, appendHistory *model.PriceHistory) error {
	patch := store.UpdatePatch{
		Status:        store.PatchString(string(item.Status)),
		AppendHistory: appendHistory,
	}
	if item.ListPrice != nil {
		patch.ListPrice = store.PatchInt(*item.ListPrice)
	} else {
		patch.ListPrice = store.PatchIntClear()
	}
	err := p.stock.UpdateByID(item.ID, patch)
	if err != nil {
		return invariantErr(err)
	}
	return nil
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
