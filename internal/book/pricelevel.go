// Package book implements the per-symbol price-level order book: a FIFO
// queue of resting orders at each price (PriceLevel) indexed by two
// best-first ordered maps (OrderBook), one per side.
//
// This replaces the teacher repo's heap-of-orders BuyBook/SellBook, which
// conflated price ordering with FIFO time priority in a single structure.
// Price levels here are addressed directly by price through a btree, and
// time priority is a plain FIFO slice within each level — the same
// slice-truncation technique the teacher used in
// internal/engine/orderbook.go's Match loop, generalized to decimal prices
// and pulled out into its own reusable type.
package book

import (
	"fenrir/internal/common"

	"github.com/shopspring/decimal"
)

// PriceLevel is a FIFO queue of resting orders at a single price, with a
// cached aggregate quantity and order count.
type PriceLevel struct {
	Price         decimal.Decimal
	orders        []*common.Order
	TotalQuantity decimal.Decimal
	OrderCount    int
}

// NewPriceLevel creates an empty level at price.
func NewPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{Price: price, TotalQuantity: decimal.Zero}
}

// Enqueue appends order to the tail of the queue, preserving arrival order.
func (pl *PriceLevel) Enqueue(order *common.Order) {
	pl.orders = append(pl.orders, order)
	pl.TotalQuantity = pl.TotalQuantity.Add(order.RemainingQuantity())
	pl.OrderCount++
}

// Head returns the oldest resting order, or nil if the level is empty.
func (pl *PriceLevel) Head() *common.Order {
	if len(pl.orders) == 0 {
		return nil
	}
	return pl.orders[0]
}

// DecrementHead reduces the head order's remaining quantity by qty. If the
// head becomes fully filled it is popped from the queue. qty must not
// exceed the head's remaining quantity.
func (pl *PriceLevel) DecrementHead(qty decimal.Decimal) error {
	head := pl.Head()
	if head == nil {
		return common.NewInternalError("decrement on empty price level", nil)
	}
	if qty.GreaterThan(head.RemainingQuantity()) {
		return common.NewInternalError("decrement exceeds head remaining quantity", nil)
	}
	head.ApplyFill(qty)
	pl.TotalQuantity = pl.TotalQuantity.Sub(qty)
	if head.RemainingQuantity().IsZero() {
		pl.orders = pl.orders[1:]
		pl.OrderCount--
	}
	return nil
}

// Remove deletes a specific order from the queue by id in O(k). Returns the
// removed order and true, or nil and false if not present. Cancellations
// are expected to be rare relative to matches, per the spec; if profiling
// ever showed otherwise this would need a hash-map-backed queue.
func (pl *PriceLevel) Remove(orderID string) (*common.Order, bool) {
	for i, o := range pl.orders {
		if o.ID == orderID {
			pl.orders = append(pl.orders[:i], pl.orders[i+1:]...)
			pl.OrderCount--
			pl.TotalQuantity = pl.TotalQuantity.Sub(o.RemainingQuantity())
			return o, true
		}
	}
	return nil, false
}

// IsEmpty reports whether the level holds no resting orders.
func (pl *PriceLevel) IsEmpty() bool {
	return pl.OrderCount == 0
}

// Orders returns the live FIFO queue. Callers in this module only; external
// packages must go through OrderBook's snapshot/query surface.
func (pl *PriceLevel) Orders() []*common.Order {
	return pl.orders
}
