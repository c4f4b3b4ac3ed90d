package engine_test

import (
	"testing"

	"fenrir/internal/common"
	"fenrir/internal/engine"
	"fenrir/internal/marketdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newEngine(t *testing.T, symbols ...common.Symbol) *engine.MatchingEngine {
	t.Helper()
	hub := marketdata.NewHub(64)
	return engine.New(engine.NewConfig(symbols), hub)
}

func limit(symbol common.Symbol, side common.Side, qty, price string) engine.SubmitRequest {
	return engine.SubmitRequest{Symbol: symbol, Side: side, Type: common.Limit, QuantityStr: qty, PriceStr: price}
}

func market(symbol common.Symbol, side common.Side, qty string) engine.SubmitRequest {
	return engine.SubmitRequest{Symbol: symbol, Side: side, Type: common.Market, QuantityStr: qty}
}

func ioc(symbol common.Symbol, side common.Side, qty, price string) engine.SubmitRequest {
	return engine.SubmitRequest{Symbol: symbol, Side: side, Type: common.IOC, QuantityStr: qty, PriceStr: price}
}

func fok(symbol common.Symbol, side common.Side, qty, price string) engine.SubmitRequest {
	return engine.SubmitRequest{Symbol: symbol, Side: side, Type: common.FOK, QuantityStr: qty, PriceStr: price}
}

// Scenario 1: simple cross at the maker's price, both sides fully filled.
func TestSimpleCrossTradesAtMakerPrice(t *testing.T) {
	e := newEngine(t, "AAPL")

	maker, err := e.Submit(limit("AAPL", common.Sell, "1.0", "100"))
	require.NoError(t, err)

	taker, err := e.Submit(limit("AAPL", common.Buy, "1.0", "101"))
	require.NoError(t, err)

	assert.Equal(t, common.Filled, taker.Status)
	makerAfter, err := e.GetOrder("AAPL", maker.ID)
	require.NoError(t, err)
	assert.Equal(t, common.Filled, makerAfter.Status)

	snap, err := e.GetBookSnapshot("AAPL", 10)
	require.NoError(t, err)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
}

// Scenario 2: partial taker fill leaves the maker resting with the remainder.
func TestPartialMarketTakerLeavesMakerPartiallyFilled(t *testing.T) {
	e := newEngine(t, "AAPL")

	maker, err := e.Submit(limit("AAPL", common.Sell, "2.0", "100"))
	require.NoError(t, err)

	taker, err := e.Submit(market("AAPL", common.Buy, "0.5"))
	require.NoError(t, err)
	assert.Equal(t, common.Filled, taker.Status)

	makerAfter, err := e.GetOrder("AAPL", maker.ID)
	require.NoError(t, err)
	assert.Equal(t, common.PartiallyFilled, makerAfter.Status)
	assert.True(t, makerAfter.RemainingQuantity().Equal(dec("1.5")))

	bbo, err := e.GetBBO("AAPL")
	require.NoError(t, err)
	require.NotNil(t, bbo.BestAsk)
	assert.True(t, bbo.BestAsk.Price.Equal(dec("100")))
	assert.True(t, bbo.BestAsk.Quantity.Equal(dec("1.5")))
}

// Scenario 3: price-time priority within one price level.
func TestPriceTimePriorityWithinLevel(t *testing.T) {
	e := newEngine(t, "AAPL")

	a, err := e.Submit(limit("AAPL", common.Sell, "1.0", "100"))
	require.NoError(t, err)
	b, err := e.Submit(limit("AAPL", common.Sell, "1.0", "100"))
	require.NoError(t, err)

	_, err = e.Submit(market("AAPL", common.Buy, "1.5"))
	require.NoError(t, err)

	aAfter, err := e.GetOrder("AAPL", a.ID)
	require.NoError(t, err)
	bAfter, err := e.GetOrder("AAPL", b.ID)
	require.NoError(t, err)

	assert.Equal(t, common.Filled, aAfter.Status, "earlier order at the same price must be consumed first")
	assert.Equal(t, common.PartiallyFilled, bAfter.Status)
	assert.True(t, bAfter.RemainingQuantity().Equal(dec("0.5")))
}

// Scenario 4: IOC partial fill cancels the unfillable remainder.
func TestIOCPartialFillCancelsRemainder(t *testing.T) {
	e := newEngine(t, "AAPL")

	_, err := e.Submit(limit("AAPL", common.Sell, "1.0", "100"))
	require.NoError(t, err)
	_, err = e.Submit(limit("AAPL", common.Sell, "1.0", "102"))
	require.NoError(t, err)

	taker, err := e.Submit(ioc("AAPL", common.Buy, "3.0", "101"))
	require.NoError(t, err)

	assert.Equal(t, common.Cancelled, taker.Status)
	assert.True(t, taker.FilledQuantity.Equal(dec("1.0")))

	bbo, err := e.GetBBO("AAPL")
	require.NoError(t, err)
	require.NotNil(t, bbo.BestAsk)
	assert.True(t, bbo.BestAsk.Price.Equal(dec("102")))
	assert.True(t, bbo.BestAsk.Quantity.Equal(dec("1.0")))
}

// Scenario 5: FOK aborts entirely when liquidity at acceptable prices falls short.
func TestFOKAbortsWithNoMutationWhenUnfillable(t *testing.T) {
	e := newEngine(t, "AAPL")

	_, err := e.Submit(limit("AAPL", common.Sell, "1.0", "100"))
	require.NoError(t, err)

	before, err := e.GetBookSnapshot("AAPL", 10)
	require.NoError(t, err)

	taker, err := e.Submit(fok("AAPL", common.Buy, "2.0", "101"))
	require.NoError(t, err)

	assert.Equal(t, common.Cancelled, taker.Status)
	assert.True(t, taker.FilledQuantity.IsZero())

	after, err := e.GetBookSnapshot("AAPL", 10)
	require.NoError(t, err)
	assert.Equal(t, before, after, "an aborted FOK must leave the book byte-identical")
}

func TestFOKFillsInFullWhenLiquidityIsSufficient(t *testing.T) {
	e := newEngine(t, "AAPL")

	_, err := e.Submit(limit("AAPL", common.Sell, "1.0", "100"))
	require.NoError(t, err)
	_, err = e.Submit(limit("AAPL", common.Sell, "1.0", "101"))
	require.NoError(t, err)

	taker, err := e.Submit(fok("AAPL", common.Buy, "2.0", "101"))
	require.NoError(t, err)
	assert.Equal(t, common.Filled, taker.Status)
}

// Scenario 6: cancel a resting order, then verify a second cancel fails.
func TestCancelRestingThenDoubleCancelFails(t *testing.T) {
	e := newEngine(t, "AAPL")

	order, err := e.Submit(limit("AAPL", common.Buy, "1.0", "99"))
	require.NoError(t, err)

	cancelled, err := e.Cancel("AAPL", order.ID)
	require.NoError(t, err)
	assert.Equal(t, common.Cancelled, cancelled.Status)

	snap, err := e.GetBookSnapshot("AAPL", 10)
	require.NoError(t, err)
	assert.Empty(t, snap.Bids)

	_, err = e.Cancel("AAPL", order.ID)
	assert.True(t, common.Is(err, common.KindInvalidState))
}

func TestCancelUnknownOrderIsNotFound(t *testing.T) {
	e := newEngine(t, "AAPL")
	_, err := e.Cancel("AAPL", "does-not-exist")
	assert.True(t, common.Is(err, common.KindNotFound))
}

// MARKET against an empty book: remainder cancelled, zero trades, no mutation.
func TestMarketAgainstEmptyBookCancelsEntirely(t *testing.T) {
	e := newEngine(t, "AAPL")

	order, err := e.Submit(market("AAPL", common.Buy, "1.0"))
	require.NoError(t, err)
	assert.Equal(t, common.Cancelled, order.Status)
	assert.True(t, order.FilledQuantity.IsZero())
}

// LIMIT BUY below the best ask posts to the bid side without matching.
func TestLimitBuyBelowBestAskPostsToBook(t *testing.T) {
	e := newEngine(t, "AAPL")

	_, err := e.Submit(limit("AAPL", common.Sell, "1.0", "105"))
	require.NoError(t, err)

	order, err := e.Submit(limit("AAPL", common.Buy, "1.0", "100"))
	require.NoError(t, err)
	assert.Equal(t, common.Pending, order.Status)

	bbo, err := e.GetBBO("AAPL")
	require.NoError(t, err)
	require.NotNil(t, bbo.BestBid)
	assert.True(t, bbo.BestBid.Price.Equal(dec("100")))
}

func TestSubmitRejectsUnsupportedSymbol(t *testing.T) {
	e := newEngine(t, "AAPL")
	_, err := e.Submit(limit("MSFT", common.Buy, "1.0", "100"))
	assert.True(t, common.Is(err, common.KindValidation))
}

func TestSubmitRejectsNonPositiveQuantity(t *testing.T) {
	e := newEngine(t, "AAPL")
	_, err := e.Submit(limit("AAPL", common.Buy, "0", "100"))
	assert.True(t, common.Is(err, common.KindValidation))
}

func TestSubmitRejectsMarketOrderWithPrice(t *testing.T) {
	e := newEngine(t, "AAPL")
	req := market("AAPL", common.Buy, "1.0")
	req.PriceStr = "100"
	_, err := e.Submit(req)
	assert.True(t, common.Is(err, common.KindValidation))
}

func TestSubmitRejectsExcessiveDecimalScale(t *testing.T) {
	e := newEngine(t, "AAPL")
	_, err := e.Submit(limit("AAPL", common.Buy, "1.123456789", "100"))
	assert.True(t, common.Is(err, common.KindValidation))
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	e := newEngine(t, "AAPL")
	_, err := e.Submit(limit("AAPL", common.Buy, "1.0", "99"))
	require.NoError(t, err)

	sub, err := e.Subscribe("AAPL")
	require.NoError(t, err)

	msg := <-sub.MarketData
	assert.Equal(t, marketdata.Snapshot, msg.Type)
	require.NotNil(t, msg.Snapshot)
	require.Len(t, msg.Snapshot.Bids, 1)
}
