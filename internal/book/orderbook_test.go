package book_test

import (
	"testing"

	"fenrir/internal/book"
	"fenrir/internal/common"

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

func mkOrder(id string, side common.Side, price, qty string) *common.Order {
	o := &common.Order{
		ID:       id,
		Symbol:   "AAPL",
		Side:     side,
		Type:     common.Limit,
		Price:    dec(price),
		Quantity: dec(qty),
	}
	return o
}

func TestInsertRestingOrdersLevelsByPriceTimePriority(t *testing.T) {
	b := book.New("AAPL")

	b.InsertResting(mkOrder("b1", common.Buy, "99.00", "100"))
	b.InsertResting(mkOrder("b2", common.Buy, "99.00", "90"))
	b.InsertResting(mkOrder("b3", common.Buy, "98.00", "50"))

	bestBid, ok := b.BestBid()
	require.True(t, ok)
	assert.True(t, bestBid.Price.Equal(dec("99.00")))
	assert.Equal(t, 2, bestBid.OrderCount)
	assert.True(t, bestBid.TotalQuantity.Equal(dec("190")))
	assert.Equal(t, "b1", bestBid.Head().ID, "FIFO: earliest order at the level must be head")
}

func TestBestAskIsLowestPrice(t *testing.T) {
	b := book.New("AAPL")
	b.InsertResting(mkOrder("a1", common.Sell, "101.00", "10"))
	b.InsertResting(mkOrder("a2", common.Sell, "100.00", "10"))

	bestAsk, ok := b.BestAsk()
	require.True(t, ok)
	assert.True(t, bestAsk.Price.Equal(dec("100.00")))
}

func TestCancelRemovesOrderAndEmptyLevel(t *testing.T) {
	b := book.New("AAPL")
	b.InsertResting(mkOrder("o1", common.Buy, "99.00", "10"))

	cancelled, err := b.Cancel("o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", cancelled.ID)

	_, ok := b.BestBid()
	assert.False(t, ok, "level must be dropped once its queue is empty")

	_, err = b.Cancel("o1")
	assert.True(t, common.Is(err, common.KindNotFound))
}

func TestCancelUnknownOrderIsNotFound(t *testing.T) {
	b := book.New("AAPL")
	_, err := b.Cancel("nope")
	assert.True(t, common.Is(err, common.KindNotFound))
}

func TestIsCrossedDetectsBookState(t *testing.T) {
	b := book.New("AAPL")
	b.InsertResting(mkOrder("b1", common.Buy, "99.00", "10"))
	b.InsertResting(mkOrder("a1", common.Sell, "100.00", "10"))
	assert.False(t, b.IsCrossed())
}

func TestSnapshotOrdersBidsDescendingAsksAscending(t *testing.T) {
	b := book.New("AAPL")
	b.InsertResting(mkOrder("b1", common.Buy, "99.00", "10"))
	b.InsertResting(mkOrder("b2", common.Buy, "98.00", "10"))
	b.InsertResting(mkOrder("a1", common.Sell, "101.00", "10"))
	b.InsertResting(mkOrder("a2", common.Sell, "100.00", "10"))

	snap := b.Snapshot(10)
	require.Len(t, snap.Bids, 2)
	require.Len(t, snap.Asks, 2)
	assert.True(t, snap.Bids[0].Price.Equal(dec("99.00")))
	assert.True(t, snap.Bids[1].Price.Equal(dec("98.00")))
	assert.True(t, snap.Asks[0].Price.Equal(dec("100.00")))
	assert.True(t, snap.Asks[1].Price.Equal(dec("101.00")))
}

func TestSnapshotRespectsDepthCap(t *testing.T) {
	b := book.New("AAPL")
	b.InsertResting(mkOrder("b1", common.Buy, "99.00", "10"))
	b.InsertResting(mkOrder("b2", common.Buy, "98.00", "10"))
	b.InsertResting(mkOrder("b3", common.Buy, "97.00", "10"))

	snap := b.Snapshot(2)
	assert.Len(t, snap.Bids, 2)
}

func TestAvailableLiquidityStopsAtAcceptablePrices(t *testing.T) {
	b := book.New("AAPL")
	b.InsertResting(mkOrder("a1", common.Sell, "100.00", "1.0"))
	b.InsertResting(mkOrder("a2", common.Sell, "102.00", "5.0"))

	avail := b.AvailableLiquidity(common.Buy, dec("101.00"), dec("10"))
	assert.True(t, avail.Equal(dec("1.0")), "liquidity beyond the acceptable price must not count")
}

func TestPriceLevelDecrementHeadPopsOnFullConsumption(t *testing.T) {
	level := book.NewPriceLevel(dec("100"))
	o := mkOrder("o1", common.Sell, "100", "5")
	level.Enqueue(o)

	require.NoError(t, level.DecrementHead(dec("5")))
	assert.True(t, level.IsEmpty())
	assert.True(t, level.TotalQuantity.IsZero())
}

func TestPriceLevelRemoveByID(t *testing.T) {
	level := book.NewPriceLevel(dec("100"))
	level.Enqueue(mkOrder("o1", common.Sell, "100", "5"))
	level.Enqueue(mkOrder("o2", common.Sell, "100", "5"))

	removed, ok := level.Remove("o1")
	require.True(t, ok)
	assert.Equal(t, "o1", removed.ID)
	assert.Equal(t, 1, level.OrderCount)
	assert.Equal(t, "o2", level.Head().ID)
}
