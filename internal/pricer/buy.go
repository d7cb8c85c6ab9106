package pricer

import (
	"context"
	"errors"
	"fmt"

	"wfm-pricer/internal/logger"
	"wfm-pricer/internal/metrics"
	"wfm-pricer/internal/model"
	"wfm-pricer/internal/notify"
	"wfm-pricer/internal/wfm"
)

// isOrderLimitReached reports whether err is the marketplace's soft
// order-limit rejection rather than a genuine transport/API failure.
func isOrderLimitReached(err error) bool {
	return errors.Is(err, wfm.ErrOrderLimitReached)
}

// BuyDecision implements §4.4.4: given one item's live order book, decide
// whether to create, update, or delete the operator's buy order for it,
// applying the knapsack capital allocator when the proposed post price
// looks attractive enough to compete for budget against existing buys.
func (p *ItemPricer) BuyDecision(ctx context.Context, item model.TradableItem, itemRank *int, myOrders *model.Orders, liveOrders []model.Order, closedAvg float64) error {
	settings := p.settings

	var subType model.SubType
	if itemRank != nil {
		subType = model.SubType{Rank: itemRank}
	}

	userOrder, _ := myOrders.Find(item.URLName, model.SideBuy, subType)

	filtered := model.FilterBySubType(liveOrders, subType, false)
	var book model.Orders
	var buyOrders []model.Order
	for _, o := range filtered {
		if o.Side == model.SideBuy {
			buyOrders = append(buyOrders, o)
			book.BuyOrders = append(book.BuyOrders, o)
		} else {
			book.SellOrders = append(book.SellOrders, o)
		}
	}

	if len(book.SellOrders) == 0 {
		return nil
	}

	status := model.StatusInActive
	highest := book.HighestPrice(model.SideBuy)
	priceRange := book.GetPriceRange()
	postPrice := highest

	if highest == 0 && closedAvg > 25 {
		a := priceRange - 40
		b := priceRange/3 - 1
		if b > a {
			a = b
		}
		postPrice = a
		status = model.StatusLive
	}

	closedAvgMetric := int(closedAvg) - postPrice
	potentialProfit := closedAvgMetric - 1

	if postPrice > settings.AvgPriceCap && status != model.StatusLive {
		logger.Info(component, fmt.Sprintf("item %s is overpriced: cap %d, price %d", item.Name, settings.AvgPriceCap, postPrice))
		status = model.StatusOverpriced
	}

	if len(buyOrders) == 0 {
		return nil
	}

	knapsackGate := (closedAvgMetric >= 30 && priceRange >= 15) || priceRange >= 21
	if knapsackGate && status != model.StatusLive && !userOrder.Visible {

		candidates := make([]buyCandidate, 0, len(myOrders.BuyOrders)+1)
		for _, o := range myOrders.BuyOrders {
			profit := 0.0
			if o.Profit != nil {
				profit = *o.Profit
			}
			candidates = append(candidates, buyCandidate{
				Platinum: o.Platinum,
				Profit:   profit,
				URLName:  o.ItemURL,
				OrderID:  o.ID,
			})
		}
		candidates = append(candidates, buyCandidate{
			Platinum: postPrice,
			Profit:   float64(potentialProfit),
			URLName:  item.URLName,
			OrderID:  "",
		})

		_, selected, unselected := knapsack(candidates, settings.MaxTotalPriceCap)

		selectedHasItem := false
		for _, c := range selected {
			if c.URLName == item.URLName {
				selectedHasItem = true
				break
			}
		}

		if selectedHasItem {
			for _, c := range unselected {
				if c.OrderID == "" {
					continue
				}
				logger.Warn(component, fmt.Sprintf("item %s order %s is unselected by the knapsack, deleting", c.URLName, c.OrderID))
				p.notifier.Message("knapsack_delete", map[string]any{"name": c.URLName})
				p.notifier.OrderUpdate(notify.OpDelete, map[string]any{"id": c.OrderID})

				if err := p.wfm.DeleteOrder(ctx, c.OrderID); err != nil {
					return transportErr(err)
				}
				myOrders.DeleteOrderByID(model.SideBuy, c.OrderID)
				metrics.OrdersDeletedTotal.WithLabelValues("buy", "knapsack").Inc()
				metrics.KnapsackItemsEvictedTotal.Inc()
			}
			status = model.StatusLive
		} else {
			status = model.StatusUnderpriced
		}
	}

	switch {
	case status == model.StatusUnderpriced && userOrder.Visible:
		logger.Warn(component, fmt.Sprintf("item %s is underpriced, deleting order %s", item.Name, userOrder.ID))
		p.notifier.Message("underpriced_delete", map[string]any{"name": item.Name})
		p.notifier.OrderUpdate(notify.OpDelete, map[string]any{"id": userOrder.ID})

		if err := p.wfm.DeleteOrder(ctx, userOrder.ID); err != nil {
			return transportErr(err)
		}
		myOrders.DeleteOrderByID(model.SideBuy, userOrder.ID)
		metrics.OrdersDeletedTotal.WithLabelValues("buy", "underpriced").Inc()

	case status == model.StatusLive && userOrder.Visible:
		if _, err := p.wfm.UpdateOrder(ctx, userOrder.ID, postPrice, 1); err != nil {
			return transportErr(err)
		}
		if userOrder.Platinum != postPrice {
			userOrder.Platinum = postPrice
			myOrders.UpdateOrder(model.SideBuy, userOrder)
			p.notifier.OrderUpdate(notify.OpCreateOrUpdate, userOrder)
			metrics.OrdersUpdatedTotal.WithLabelValues("buy").Inc()
		}
		logger.Info(component, fmt.Sprintf("item %s updated", item.Name))

	case status == model.StatusLive && !userOrder.Visible:
		p.notifier.Message("created", map[string]any{"name": item.Name, "price": postPrice, "profit": potentialProfit})

		created, err := p.wfm.CreateOrder(ctx, item.WFMID, model.SideBuy, postPrice, 1, subType)
		if err != nil {
			if isOrderLimitReached(err) {
				p.notifier.Message("order_limit_reached", map[string]any{"name": item.Name})
				metrics.OrderLimitHitsTotal.WithLabelValues("buy").Inc()
				return nil
			}
			return transportErr(err)
		}
		closedAvgCopy := closedAvg
		profitCopy := float64(potentialProfit)
		created.ClosedAvg = &closedAvgCopy
		created.Profit = &profitCopy
		myOrders.AppendOrder(model.SideBuy, created)
		p.notifier.OrderUpdate(notify.OpCreateOrUpdate, created)
		metrics.OrdersPlacedTotal.WithLabelValues("buy").Inc()
		logger.Info(component, fmt.Sprintf("item %s created", item.Name))

	default:
		// Overpriced / InActive: no-op.
	}

	return nil
}
