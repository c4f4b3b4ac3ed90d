package common

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxDecimalScale is the largest number of fractional digits accepted for
// any price or quantity.
const MaxDecimalScale = 8

// Order is a single resting or transient order admitted to a book.
//
// Invariants: FilledQuantity + RemainingQuantity() == Quantity always, and
// until the order is Cancelled or Rejected, Status tracks the fill ratio
// (Pending iff filled is zero, PartiallyFilled iff 0 < filled < quantity,
// Filled iff filled == quantity). Cancelled and Rejected can occur at any
// fill level.
type Order struct {
	ID             string          `json:"order_id"`
	Symbol         Symbol          `json:"symbol"`
	Side           Side            `json:"side"`
	Type           OrderType       `json:"order_type"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"` // zero value, ignored for Market orders
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
	Status         OrderStatus     `json:"status"`
	UserID         string          `json:"user_id,omitempty"`

	// Sequence is the strictly increasing per-book admission counter used
	// for price-time priority. Timestamp is wall-clock metadata only.
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

// RemainingQuantity returns Quantity - FilledQuantity.
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// ApplyFill records a fill of qty against the order and updates Status
// accordingly. qty must be <= RemainingQuantity().
func (o *Order) ApplyFill(qty decimal.Decimal) {
	o.FilledQuantity = o.FilledQuantity.Add(qty)
	switch {
	case o.FilledQuantity.GreaterThanOrEqual(o.Quantity):
		o.FilledQuantity = o.Quantity
		o.Status = Filled
	case o.FilledQuantity.IsZero():
		o.Status = Pending
	default:
		o.Status = PartiallyFilled
	}
}

// Clone returns an independent value copy, safe to hand to callers across
// the query API boundary without exposing the engine's live order record.
func (o *Order) Clone() *Order {
	cp := *o
	return &cp
}
