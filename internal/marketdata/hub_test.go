package marketdata_test

import (
	"testing"
	"time"

	"fenrir/internal/common"
	"fenrir/internal/marketdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndPublishDeliversInOrder(t *testing.T) {
	hub := marketdata.NewHub(4)
	sub := hub.Subscribe("AAPL")

	for i := 0; i < 3; i++ {
		hub.PublishTrade("AAPL", marketdata.TradeMessage{
			Symbol: "AAPL",
			Trade:  common.TradeExecution{Sequence: int64(i)},
		})
	}

	for i := 0; i < 3; i++ {
		select {
		case msg := <-sub.Trades:
			assert.Equal(t, int64(i), msg.Trade.Sequence)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for trade message")
		}
	}
}

func TestUnsubscribeClosesChannels(t *testing.T) {
	hub := marketdata.NewHub(4)
	sub := hub.Subscribe("AAPL")
	sub.Unsubscribe()

	_, ok := <-sub.Trades
	assert.False(t, ok)
	assert.Equal(t, 0, hub.SubscriberCount("AAPL"))
}

func TestOverflowEvictsSubscriberWithoutBlocking(t *testing.T) {
	hub := marketdata.NewHub(1)
	sub := hub.Subscribe("AAPL")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.PublishTrade("AAPL", marketdata.TradeMessage{Symbol: "AAPL"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish must never block on a slow subscriber")
	}

	require.Eventually(t, func() bool {
		return hub.SubscriberCount("AAPL") == 0
	}, time.Second, time.Millisecond, "overflowing subscriber must be evicted")
}

func TestPublishToUnknownSymbolIsANoop(t *testing.T) {
	hub := marketdata.NewHub(4)
	assert.NotPanics(t, func() {
		hub.PublishTrade("MSFT", marketdata.TradeMessage{Symbol: "MSFT"})
	})
}
