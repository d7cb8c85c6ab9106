// Package orders is the read-mostly in-memory mirror of the operator's live
// orders on the remote marketplace, filled at startup by cmd/pricer.
package orders

import (
	"sync"

	"wfm-pricer/internal/model"
)

// Mirror guards a model.Orders snapshot with a mutex so collaborators can
// read/mutate it between suspension points without holding a lock across
// a remote call.
type Mirror struct {
	mu     sync.Mutex
	orders model.Orders
}

// New creates an empty mirror.
func New() *Mirror {
	return &Mirror{}
}

// Replace swaps in a freshly fetched snapshot.
func (m *Mirror) Replace(o model.Orders) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = o
}

// Snapshot returns a value copy of the current mirror.
func (m *Mirror) Snapshot() model.Orders {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := model.Orders{
		BuyOrders:  append([]model.Order(nil), m.orders.BuyOrders...),
		SellOrders: append([]model.Order(nil), m.orders.SellOrders...),
	}
	return out
}

// Find mirrors model.Orders.Find under the mirror's lock.
func (m *Mirror) Find(url string, side model.OrderSide, sub model.SubType) (model.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders.Find(url, side, sub)
}

// UpdateOrder applies a successful remote update to the mirror, avoiding a
// re-fetch within the same cycle.
func (m *Mirror) UpdateOrder(side model.OrderSide, updated model.Order) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders.UpdateOrder(side, updated)
}

// DeleteOrderByID applies a successful remote delete to the mirror.
func (m *Mirror) DeleteOrderByID(side model.OrderSide, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders.DeleteOrderByID(side, id)
}

// AppendOrder applies a successful remote create to the mirror.
func (m *Mirror) AppendOrder(side model.OrderSide, ord model.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders.AppendOrder(side, ord)
}

// AllOfSide returns a copy of every order on the given side.
func (m *Mirror) AllOfSide(side model.OrderSide) []model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if side == model.SideBuy {
		return append([]model.Order(nil), m.orders.BuyOrders...)
	}
	return append([]model.Order(nil), m.orders.SellOrders...)
}
