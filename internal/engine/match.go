package engine

import (
	"time"

	"fenrir/internal/book"
	"fenrir/internal/common"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// execute dispatches taker by order type and runs the price-time-priority
// matching loop, mutating bs.book in place. It returns the trades generated,
// in generation order.
//
// Grounded on the teacher's internal/engine/orderbook.go Match/handleMarket/
// handleLimit, generalized from a single float64-priced book to a
// decimal-priced book and extended with the IOC and FOK policies (and FOK's
// dry-run-then-commit check) the teacher never implemented.
func (e *MatchingEngine) execute(bs *bookState, taker *common.Order) ([]common.TradeExecution, error) {
	switch taker.Type {
	case common.FOK:
		available := bs.book.AvailableLiquidity(taker.Side, taker.Price, taker.RemainingQuantity())
		if available.LessThan(taker.RemainingQuantity()) {
			// Abort: zero fills, zero mutation, as spec.md §4.3.3 requires.
			taker.Status = common.Cancelled
			return nil, nil
		}
		trades, err := e.sweep(bs, taker, taker.Price, false)
		if err != nil {
			return trades, err
		}
		if !taker.RemainingQuantity().IsZero() {
			return trades, common.NewInternalError("FOK order left an unfilled remainder after its liquidity check passed", nil)
		}
		return trades, nil

	case common.Market:
		trades, err := e.sweep(bs, taker, decimal.Decimal{}, true)
		if err != nil {
			return trades, err
		}
		if !taker.RemainingQuantity().IsZero() {
			taker.Status = common.Cancelled
		}
		return trades, nil

	case common.IOC:
		trades, err := e.sweep(bs, taker, taker.Price, false)
		if err != nil {
			return trades, err
		}
		if !taker.RemainingQuantity().IsZero() {
			taker.Status = common.Cancelled
		}
		return trades, nil

	case common.Limit:
		trades, err := e.sweep(bs, taker, taker.Price, false)
		if err != nil {
			return trades, err
		}
		if !taker.RemainingQuantity().IsZero() {
			bs.book.InsertResting(taker)
		}
		return trades, nil

	default:
		return nil, common.NewInternalError("unknown order type", nil)
	}
}

// sweep consumes resting liquidity from the side opposite taker.Side in
// best-first, strict-FIFO order, emitting one TradeExecution per fill at
// the maker's price (the internal-protection rule: a taker never executes
// at a price worse than the best available resting price). It stops when
// the taker is fully filled, the opposite side is exhausted, or (for
// price-limited takers) the best remaining price is no longer acceptable.
func (e *MatchingEngine) sweep(bs *bookState, taker *common.Order, limitPrice decimal.Decimal, marketable bool) ([]common.TradeExecution, error) {
	var trades []common.TradeExecution

	for !taker.RemainingQuantity().IsZero() {
		level, ok := bs.book.BestOpposite(taker.Side)
		if !ok {
			break
		}
		if !marketable && !book.PriceAcceptable(taker.Side, limitPrice, level.Price) {
			break
		}
		maker := level.Head()
		if maker == nil {
			return trades, common.NewInternalError("price level exists with an empty queue", nil)
		}

		qty := decimal.Min(taker.RemainingQuantity(), maker.RemainingQuantity())
		makerPrice := maker.Price
		makerID := maker.ID

		if err := level.DecrementHead(qty); err != nil {
			return trades, err
		}
		taker.ApplyFill(qty)

		if maker.RemainingQuantity().IsZero() {
			bs.book.UnindexOrder(makerID)
		}
		bs.book.DropLevelIfEmpty(taker.Side.Opposite(), level)

		trades = append(trades, common.TradeExecution{
			TradeID:       uuid.NewString(),
			Symbol:        taker.Symbol,
			Price:         makerPrice,
			Quantity:      qty,
			AggressorSide: taker.Side,
			MakerOrderID:  makerID,
			TakerOrderID:  taker.ID,
			Sequence:      e.tradeSeq.Add(1),
			Timestamp:     time.Now(),
		})
	}

	if bs.book.IsCrossed() {
		return trades, common.NewInternalError("book left crossed after matching step", nil)
	}
	return trades, nil
}
