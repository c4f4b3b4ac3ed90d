package book

import (
	"fenrir/internal/common"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// LevelView is a point-in-time (price, total_quantity, order_count) triple,
// the shape spec.md's snapshot and BBO operations both return.
type LevelView struct {
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	OrderCount int             `json:"order_count"`
}

// Snapshot is a materialized, best-first view of the top levels of a book.
type Snapshot struct {
	Symbol common.Symbol `json:"symbol"`
	Bids   []LevelView   `json:"bids"`
	Asks   []LevelView   `json:"asks"`
}

type indexEntry struct {
	side  common.Side
	price decimal.Decimal
}

// OrderBook is the per-symbol price-level-indexed book: two ordered maps
// keyed by price (bids descending, asks ascending), each value a
// PriceLevel, plus an order-id index for O(log n) cancellation lookup.
//
// Grounded on the teacher's internal/engine/orderbook.go, which already
// used github.com/tidwall/btree.BTreeG[*PriceLevel] for exactly this
// purpose; generalized here from a single float64-priced, single-asset-type
// book to a decimal-priced, per-symbol book with an explicit id index.
type OrderBook struct {
	Symbol common.Symbol

	bids *btree.BTreeG[*PriceLevel] // comparator: higher price sorts first
	asks *btree.BTreeG[*PriceLevel] // comparator: lower price sorts first

	index map[string]indexEntry
}

// New creates an empty book for symbol.
func New(symbol common.Symbol) *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.GreaterThan(b.Price)
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.LessThan(b.Price)
	})
	return &OrderBook{
		Symbol: symbol,
		bids:   bids,
		asks:   asks,
		index:  make(map[string]indexEntry),
	}
}

func (b *OrderBook) treeFor(side common.Side) *btree.BTreeG[*PriceLevel] {
	if side == common.Buy {
		return b.bids
	}
	return b.asks
}

// InsertResting appends order onto the PriceLevel for its side and price,
// creating the level if needed, and records it in the id index. The caller
// must ensure the order is limit-priced and not marketable against the
// opposite side (i.e. the matching pass has already run).
func (b *OrderBook) InsertResting(order *common.Order) {
	tree := b.treeFor(order.Side)
	key := NewPriceLevel(order.Price)
	level, ok := tree.Get(key)
	if !ok {
		level = NewPriceLevel(order.Price)
		tree.Set(level)
	}
	level.Enqueue(order)
	b.index[order.ID] = indexEntry{side: order.Side, price: order.Price}
}

// Cancel removes a resting order from its price level and the index,
// dropping the level if it becomes empty, and returns the cancelled order.
func (b *OrderBook) Cancel(orderID string) (*common.Order, error) {
	entry, ok := b.index[orderID]
	if !ok {
		return nil, common.NewNotFoundError("order not found", map[string]string{"order_id": orderID})
	}
	tree := b.treeFor(entry.side)
	key := NewPriceLevel(entry.price)
	level, ok := tree.Get(key)
	if !ok {
		return nil, common.NewInternalError("index referenced a missing price level", nil)
	}
	order, ok := level.Remove(orderID)
	if !ok {
		return nil, common.NewInternalError("index referenced an order absent from its level", nil)
	}
	if level.IsEmpty() {
		tree.Delete(level)
	}
	delete(b.index, orderID)
	return order, nil
}

// BestBid returns the top-of-book bid level, if any.
func (b *OrderBook) BestBid() (*PriceLevel, bool) {
	return b.bids.Min()
}

// BestAsk returns the top-of-book ask level, if any.
func (b *OrderBook) BestAsk() (*PriceLevel, bool) {
	return b.asks.Min()
}

// BestOpposite returns the top-of-book level on the side opposite to a
// taker of the given side — the side a taker matches against.
func (b *OrderBook) BestOpposite(takerSide common.Side) (*PriceLevel, bool) {
	return b.treeFor(takerSide.Opposite()).Min()
}

// DropLevelIfEmpty removes level from the given side's tree once its queue
// has emptied. Safe to call unconditionally.
func (b *OrderBook) DropLevelIfEmpty(side common.Side, level *PriceLevel) {
	if level.IsEmpty() {
		b.treeFor(side).Delete(level)
	}
}

// UnindexOrder removes a fully-filled maker's id from the cancellation
// index. Must be called whenever DecrementHead fully consumes an order.
func (b *OrderBook) UnindexOrder(orderID string) {
	delete(b.index, orderID)
}

// IsCrossed reports whether the book is left with a crossed top-of-book,
// which every matching step must leave false.
func (b *OrderBook) IsCrossed() bool {
	bid, bidOk := b.BestBid()
	ask, askOk := b.BestAsk()
	if !bidOk || !askOk {
		return false
	}
	return !bid.Price.LessThan(ask.Price)
}

// AvailableLiquidity performs a read-only walk of the opposite side,
// accumulating quantity available at acceptable prices, stopping early
// once the accumulated total reaches needed. Used for FOK's
// dry-run-then-commit check: it never mutates the book.
func (b *OrderBook) AvailableLiquidity(takerSide common.Side, limitPrice decimal.Decimal, needed decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	b.treeFor(takerSide.Opposite()).Scan(func(level *PriceLevel) bool {
		if !PriceAcceptable(takerSide, limitPrice, level.Price) {
			return false
		}
		total = total.Add(level.TotalQuantity)
		return total.LessThan(needed)
	})
	return total
}

// PriceAcceptable implements spec.md's acceptability rule: for a BUY taker,
// a resting ask at level.Price is acceptable iff level.Price <= limitPrice;
// for a SELL taker, a resting bid is acceptable iff level.Price >=
// limitPrice. Market orders skip this check entirely (see the engine's
// sweep).
func PriceAcceptable(takerSide common.Side, limitPrice, levelPrice decimal.Decimal) bool {
	if takerSide == common.Buy {
		return levelPrice.LessThanOrEqual(limitPrice)
	}
	return levelPrice.GreaterThanOrEqual(limitPrice)
}

// Snapshot materializes the top depth levels of each side, best-first.
func (b *OrderBook) Snapshot(depth int) Snapshot {
	snap := Snapshot{Symbol: b.Symbol}
	n := 0
	b.bids.Scan(func(level *PriceLevel) bool {
		if n >= depth {
			return false
		}
		snap.Bids = append(snap.Bids, LevelView{Price: level.Price, Quantity: level.TotalQuantity, OrderCount: level.OrderCount})
		n++
		return true
	})
	n = 0
	b.asks.Scan(func(level *PriceLevel) bool {
		if n >= depth {
			return false
		}
		snap.Asks = append(snap.Asks, LevelView{Price: level.Price, Quantity: level.TotalQuantity, OrderCount: level.OrderCount})
		n++
		return true
	})
	return snap
}

// BBO returns the best bid and best ask as LevelViews, each nil if that
// side is empty.
func (b *OrderBook) BBO() (bid *LevelView, ask *LevelView) {
	if level, ok := b.BestBid(); ok {
		bid = &LevelView{Price: level.Price, Quantity: level.TotalQuantity, OrderCount: level.OrderCount}
	}
	if level, ok := b.BestAsk(); ok {
		ask = &LevelView{Price: level.Price, Quantity: level.TotalQuantity, OrderCount: level.OrderCount}
	}
	return bid, ask
}
