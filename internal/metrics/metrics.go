// Package metrics exposes Prometheus counters and gauges for the pricing
// loop, the cache, and the marketplace client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CycleDuration tracks how long one check_stock pass takes end to end.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricer_cycle_duration_seconds",
		Help:    "Duration of one pricing loop cycle",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~256s
	})

	// InterestingItemsSelected tracks how many items survived the
	// interesting-items filter in the most recent cycle.
	InterestingItemsSelected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricer_interesting_items_selected",
		Help: "Count of items selected for evaluation in the last cycle",
	})

	// OrdersPlacedTotal counts orders created, by side.
	OrdersPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricer_orders_placed_total",
		Help: "Total orders placed, by side",
	}, []string{"side"})

	// OrdersUpdatedTotal counts orders re-priced in place, by side.
	OrdersUpdatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricer_orders_updated_total",
		Help: "Total orders updated, by side",
	}, []string{"side"})

	// OrdersDeletedTotal counts orders removed, by side and reason.
	OrdersDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricer_orders_deleted_total",
		Help: "Total orders deleted, by side and reason",
	}, []string{"side", "reason"})

	// OrderLimitHitsTotal counts order_limit_reached responses from the
	// marketplace, by side.
	OrderLimitHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricer_order_limit_hits_total",
		Help: "Total order_limit_reached responses, by side",
	}, []string{"side"})

	// KnapsackItemsEvictedTotal counts candidates dropped by the capital
	// allocator because they didn't fit the budget.
	KnapsackItemsEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricer_knapsack_items_evicted_total",
		Help: "Total buy candidates evicted by the knapsack allocator",
	})

	// CacheRefreshesTotal counts catalog cache refreshes, by outcome.
	CacheRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_refreshes_total",
		Help: "Total catalog cache refresh attempts, by outcome",
	}, []string{"outcome"})

	// CacheMissesTotal counts FindItem calls that found nothing.
	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache lookups for an unknown url_name",
	})

	// MarketplaceRequestsTotal counts outbound marketplace API calls by
	// method and final status class.
	MarketplaceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wfm_requests_total",
		Help: "Total marketplace API requests, by method and status class",
	}, []string{"method", "status_class"})

	// MarketplaceRetriesTotal counts retry attempts issued by the HTTP
	// client's backoff loop.
	MarketplaceRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wfm_retries_total",
		Help: "Total retry attempts issued against the marketplace API",
	})
)
