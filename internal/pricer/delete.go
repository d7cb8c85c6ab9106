package pricer

import (
	"context"
	"fmt"

	"wfm-pricer/internal/config"
	"wfm-pricer/internal/logger"
	"wfm-pricer/internal/metrics"
	"wfm-pricer/internal/model"
	"wfm-pricer/internal/notify"
)

// DeleteAllOrders implements §4.4.6: reset every stock row to Pending with
// no listed price, then delete every remote order on the side(s) named by
// mode, skipping blacklisted items and stopping early if the loop is
// requested to stop between deletions.
func (p *ItemPricer) DeleteAllOrders(ctx context.Context, mode config.OrderMode) error {
	myOrders, err := p.wfm.GetMyOrders(ctx)
	if err != nil {
		return transportErr(err)
	}

	if err := p.stock.ResetListedPrices(); err != nil {
		logger.Error(component, fmt.Sprintf("reset listed prices: %v", err))
	} else {
		p.notifier.StockUpdate(notify.OpSet, nil)
	}

	blacklist := make(map[string]bool, len(p.settings.Blacklist))
	for _, b := range p.settings.Blacklist {
		blacklist[b] = true
	}

	var orders []model.Order
	if mode == config.ModeBuy || mode == config.ModeBoth {
		orders = append(orders, myOrders.BuyOrders...)
	}
	if mode == config.ModeSell || mode == config.ModeBoth {
		orders = append(orders, myOrders.SellOrders...)
	}

	total := len(orders)
	for idx, order := range orders {
		if !p.isRunning() {
			p.notifier.Message("idle", nil)
			return nil
		}

		p.notifier.Message("deleting_orders", map[string]any{
			"current": idx + 1,
			"total":   total,
		})

		if blacklist[order.ItemURL] {
			continue
		}

		if err := p.wfm.DeleteOrder(ctx, order.ID); err != nil {
			logger.Warn(component, fmt.Sprintf("delete order %s: %v", order.ID, err))
			continue
		}
		metrics.OrdersDeletedTotal.WithLabelValues(string(order.Side), "delete_all").Inc()
	}

	return nil
}
