// Package engine implements the MatchingEngine: admission and validation,
// the per-symbol exclusive section, order-type policy dispatch, and
// emission of market-data and trade events after every committed
// mutation.
//
// Grounded on the teacher's internal/engine/engine.go (the owning Engine
// type and its Books map) and internal/engine/orderbook.go (the matching
// loop, moved into match.go and generalized), with the single shared lock
// implicit in the teacher's single-asset-type design replaced by one mutex
// per symbol, per spec.md §5's per-symbol exclusive section.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"fenrir/internal/book"
	"fenrir/internal/common"
	"fenrir/internal/marketdata"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// bookState bundles one symbol's OrderBook with the exclusive section that
// serializes every mutating operation against it, the all-orders registry
// needed to answer GetOrder after an order leaves the book, and the
// strictly-increasing per-book admission sequence.
type bookState struct {
	mu     sync.Mutex
	book   *book.OrderBook
	orders map[string]*common.Order
	seq    int64
}

// MatchingEngine owns every OrderBook, keyed by symbol, and is the sole
// mutator of book state. Construct with New; there is no package-level
// singleton — callers own the instance and its lifecycle explicitly.
type MatchingEngine struct {
	cfg      Config
	hub      *marketdata.Hub
	books    map[common.Symbol]*bookState
	tradeSeq atomic.Int64
}

// New constructs a MatchingEngine with one empty book per configured
// symbol, publishing all market-data and trade events to hub.
func New(cfg Config, hub *marketdata.Hub) *MatchingEngine {
	books := make(map[common.Symbol]*bookState, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		books[sym] = &bookState{
			book:   book.New(sym),
			orders: make(map[string]*common.Order),
		}
	}
	return &MatchingEngine{cfg: cfg, hub: hub, books: books}
}

// Shutdown drains no further operations itself (callers must stop issuing
// Submit/Cancel first) and closes every dissemination subscriber, per
// spec.md §9's "Shutdown must drain pending operations on each book and
// close all subscriber channels."
func (e *MatchingEngine) Shutdown() {
	e.hub.Shutdown()
}

// Submit validates and admits an order, dispatches it to the matching
// algorithm under its symbol's exclusive section, and emits the resulting
// trade and market-data events before returning.
func (e *MatchingEngine) Submit(req SubmitRequest) (*common.Order, error) {
	order, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	bs := e.books[order.Symbol]

	bs.mu.Lock()
	defer bs.mu.Unlock()

	bs.seq++
	order.ID = uuid.NewString()
	order.Sequence = bs.seq
	order.Timestamp = time.Now()

	prevBid, prevAsk := bs.book.BBO()

	trades, execErr := e.execute(bs, order)
	bs.orders[order.ID] = order

	if execErr != nil {
		log.Error().Err(execErr).Str("symbol", string(order.Symbol)).Str("order_id", order.ID).
			Msg("internal invariant violation while matching order")
	}

	e.publishMutation(order.Symbol, bs, trades, prevBid, prevAsk)

	if execErr != nil {
		return order.Clone(), execErr
	}
	return order.Clone(), nil
}

// Cancel transitions a resting order to CANCELLED and removes it from its
// price level. Cancellation of an unknown order fails with NotFound;
// cancellation of an order that is not currently resting (already
// terminal) fails with InvalidState.
func (e *MatchingEngine) Cancel(symbol common.Symbol, orderID string) (*common.Order, error) {
	bs, ok := e.books[symbol]
	if !ok {
		return nil, common.NewValidationError("unsupported symbol", map[string]string{"symbol": string(symbol)})
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()

	existing, known := bs.orders[orderID]
	if !known {
		return nil, common.NewNotFoundError("order not found", map[string]string{"order_id": orderID})
	}
	if existing.Status.Terminal() {
		return nil, common.NewInvalidStateError("order is already in a terminal state", map[string]string{
			"order_id": orderID, "status": existing.Status.String(),
		})
	}

	prevBid, prevAsk := bs.book.BBO()

	cancelled, err := bs.book.Cancel(orderID)
	if err != nil {
		return nil, err
	}
	cancelled.Status = common.Cancelled

	e.publishMutation(symbol, bs, nil, prevBid, prevAsk)

	return cancelled.Clone(), nil
}

// GetOrder returns the current recorded state of an order, including fills
// recorded after it left the book.
func (e *MatchingEngine) GetOrder(symbol common.Symbol, orderID string) (*common.Order, error) {
	bs, ok := e.books[symbol]
	if !ok {
		return nil, common.NewValidationError("unsupported symbol", map[string]string{"symbol": string(symbol)})
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()

	order, ok := bs.orders[orderID]
	if !ok {
		return nil, common.NewNotFoundError("order not found", map[string]string{"order_id": orderID})
	}
	return order.Clone(), nil
}

// GetBookSnapshot returns a consistent, depth-capped view of the book,
// taken inside the symbol's exclusive section.
func (e *MatchingEngine) GetBookSnapshot(symbol common.Symbol, depth int) (book.Snapshot, error) {
	bs, ok := e.books[symbol]
	if !ok {
		return book.Snapshot{}, common.NewValidationError("unsupported symbol", map[string]string{"symbol": string(symbol)})
	}
	if depth <= 0 || depth > e.cfg.DepthCap {
		depth = e.cfg.DepthCap
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()

	return bs.book.Snapshot(depth), nil
}

// GetBBO returns the current best bid and best ask for symbol.
func (e *MatchingEngine) GetBBO(symbol common.Symbol) (marketdata.BBO, error) {
	bs, ok := e.books[symbol]
	if !ok {
		return marketdata.BBO{}, common.NewValidationError("unsupported symbol", map[string]string{"symbol": string(symbol)})
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()

	bid, ask := bs.book.BBO()
	return marketdata.BBO{Symbol: symbol, BestBid: bid, BestAsk: ask, Timestamp: time.Now()}, nil
}

// Subscribe registers a new market-data/trade sink for symbol and
// immediately delivers an initial SNAPSHOT message, per spec.md §4.4.
//
// Registration and the initial snapshot are taken under the same bs.mu
// critical section publishMutation uses, so a Submit/Cancel that is
// concurrently mutating the book cannot publish a BOOK_UPDATE/BBO_UPDATE
// into this subscriber's channel before its SNAPSHOT arrives.
func (e *MatchingEngine) Subscribe(symbol common.Symbol) (*marketdata.Subscription, error) {
	bs, ok := e.books[symbol]
	if !ok {
		return nil, common.NewValidationError("unsupported symbol", map[string]string{"symbol": string(symbol)})
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()

	sub := e.hub.Subscribe(symbol)
	snap := bs.book.Snapshot(e.cfg.DepthCap)

	e.hub.SendSnapshot(sub, marketdata.MarketDataMessage{
		Type:      marketdata.Snapshot,
		Symbol:    symbol,
		Snapshot:  &snap,
		Timestamp: time.Now(),
	})

	return sub, nil
}

// publishMutation emits trades in generation order, then a BOOK_UPDATE,
// then a BBO_UPDATE if (and only if) the mutation changed the top of book.
// Called while bs.mu is still held so publish order matches commit order.
func (e *MatchingEngine) publishMutation(symbol common.Symbol, bs *bookState, trades []common.TradeExecution, prevBid, prevAsk *book.LevelView) {
	now := time.Now()

	for _, trade := range trades {
		e.hub.PublishTrade(symbol, marketdata.TradeMessage{
			Symbol:    symbol,
			Trade:     trade,
			Timestamp: trade.Timestamp,
		})
	}

	snap := bs.book.Snapshot(e.cfg.DepthCap)
	e.hub.PublishMarketData(symbol, marketdata.MarketDataMessage{
		Type:      marketdata.BookUpdate,
		Symbol:    symbol,
		Snapshot:  &snap,
		Timestamp: now,
	})

	newBid, newAsk := bs.book.BBO()
	if levelChanged(prevBid, newBid) || levelChanged(prevAsk, newAsk) {
		e.hub.PublishMarketData(symbol, marketdata.MarketDataMessage{
			Type:   marketdata.BBOUpdate,
			Symbol: symbol,
			BBO: &marketdata.BBO{
				Symbol:    symbol,
				BestBid:   newBid,
				BestAsk:   newAsk,
				Timestamp: now,
			},
			Timestamp: now,
		})
	}
}

func levelChanged(a, b *book.LevelView) bool {
	if a == nil || b == nil {
		return a != nil || b != nil
	}
	return !a.Price.Equal(b.Price) || !a.Quantity.Equal(b.Quantity) || a.OrderCount != b.OrderCount
}
