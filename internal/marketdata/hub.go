package marketdata

import (
	"sync"

	"fenrir/internal/common"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultQueueCapacity is the default bound on each subscriber's per-channel
// queue before it is evicted for backpressure.
const DefaultQueueCapacity = 256

// Subscription is a live registration for one symbol's market-data and
// trade channels. The caller drains MarketData and Trades; Unsubscribe may
// be called at any time and takes effect no later than the next delivery
// attempt.
//
// sendMu guards both the channel sends below and the close-on-unsubscribe in
// Hub.unsubscribe, so a publish in flight and a concurrent unsubscribe can
// never interleave into a send on a closed channel: closing is only ever
// done while holding sendMu, and every send checks closed under the same
// lock first.
type Subscription struct {
	ID         string
	Symbol     common.Symbol
	MarketData <-chan MarketDataMessage
	Trades     <-chan TradeMessage

	hub          *Hub
	marketDataCh chan MarketDataMessage
	tradesCh     chan TradeMessage

	sendMu sync.Mutex
	closed bool
}

// Unsubscribe removes the subscription from its hub and closes its channels.
// Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.hub.unsubscribe(s.Symbol, s.ID)
}

type symbolRegistry struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

// Hub is the dissemination fabric's subscriber registry. It is
// independently synchronized from the matching engine's per-symbol
// exclusive section — publishing never blocks on, or is blocked by, the
// matching path.
type Hub struct {
	queueCap int

	mu      sync.RWMutex
	symbols map[common.Symbol]*symbolRegistry
}

// NewHub creates a dissemination hub with the given per-subscriber queue
// capacity. A non-positive capacity falls back to DefaultQueueCapacity.
func NewHub(queueCap int) *Hub {
	if queueCap <= 0 {
		queueCap = DefaultQueueCapacity
	}
	return &Hub{
		queueCap: queueCap,
		symbols:  make(map[common.Symbol]*symbolRegistry),
	}
}

func (h *Hub) registryFor(symbol common.Symbol) *symbolRegistry {
	h.mu.Lock()
	defer h.mu.Unlock()
	reg, ok := h.symbols[symbol]
	if !ok {
		reg = &symbolRegistry{subs: make(map[string]*Subscription)}
		h.symbols[symbol] = reg
	}
	return reg
}

// Subscribe registers a new sink for symbol and returns it. The caller
// should range over MarketData/Trades on separate goroutines.
func (h *Hub) Subscribe(symbol common.Symbol) *Subscription {
	reg := h.registryFor(symbol)

	mdCh := make(chan MarketDataMessage, h.queueCap)
	trCh := make(chan TradeMessage, h.queueCap)
	sub := &Subscription{
		ID:           uuid.NewString(),
		Symbol:       symbol,
		MarketData:   mdCh,
		Trades:       trCh,
		hub:          h,
		marketDataCh: mdCh,
		tradesCh:     trCh,
	}

	reg.mu.Lock()
	reg.subs[sub.ID] = sub
	reg.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(symbol common.Symbol, id string) {
	h.mu.RLock()
	reg, ok := h.symbols[symbol]
	h.mu.RUnlock()
	if !ok {
		return
	}
	reg.mu.Lock()
	sub, ok := reg.subs[id]
	if ok {
		delete(reg.subs, id)
	}
	reg.mu.Unlock()
	if !ok {
		return
	}

	sub.sendMu.Lock()
	defer sub.sendMu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.marketDataCh)
	close(sub.tradesCh)
}

// evict drops a subscriber whose queue has overflowed. Sink failures never
// propagate to the publisher — the subscriber is simply dropped.
func (h *Hub) evict(symbol common.Symbol, id string, reason string) {
	log.Warn().Str("symbol", string(symbol)).Str("subscriber", id).Str("reason", reason).Msg("evicting slow market-data subscriber")
	h.unsubscribe(symbol, id)
}

// sendMarketData delivers msg to sub under sub.sendMu, so it can never race
// with unsubscribe's close of the same channel. Returns overflow true only
// when the channel is full (the caller should evict) — a logically-closed
// subscription is treated as a silent no-op, not an overflow, since the
// subscriber is already on its way out.
func (h *Hub) sendMarketData(sub *Subscription, msg MarketDataMessage) (overflow bool) {
	sub.sendMu.Lock()
	defer sub.sendMu.Unlock()
	if sub.closed {
		return false
	}
	select {
	case sub.marketDataCh <- msg:
		return false
	default:
		return true
	}
}

func (h *Hub) sendTrade(sub *Subscription, msg TradeMessage) (overflow bool) {
	sub.sendMu.Lock()
	defer sub.sendMu.Unlock()
	if sub.closed {
		return false
	}
	select {
	case sub.tradesCh <- msg:
		return false
	default:
		return true
	}
}

// SendSnapshot delivers an initial SNAPSHOT message to a single, just-created
// subscription, per spec.md §4.4 ("SNAPSHOT ... sent on subscribe"). Uses
// the same lock-guarded, evict-on-overflow policy as a broadcast publish.
func (h *Hub) SendSnapshot(sub *Subscription, msg MarketDataMessage) {
	if h.sendMarketData(sub, msg) {
		h.evict(sub.Symbol, sub.ID, "snapshot delivery queue overflow")
	}
}

// PublishMarketData fans a market-data message out to every live subscriber
// on symbol. Delivery is non-blocking: a full queue evicts the subscriber
// rather than stalling the caller (the matching engine's exclusive
// section). A subscriber concurrently unsubscribing is skipped rather than
// sent to or evicted twice.
func (h *Hub) PublishMarketData(symbol common.Symbol, msg MarketDataMessage) {
	h.mu.RLock()
	reg, ok := h.symbols[symbol]
	h.mu.RUnlock()
	if !ok {
		return
	}
	reg.mu.RLock()
	targets := make([]*Subscription, 0, len(reg.subs))
	for _, sub := range reg.subs {
		targets = append(targets, sub)
	}
	reg.mu.RUnlock()

	for _, sub := range targets {
		if h.sendMarketData(sub, msg) {
			h.evict(symbol, sub.ID, "market-data queue overflow")
		}
	}
}

// PublishTrade fans a trade print out to every live subscriber on symbol,
// using the same lock-guarded, evict-on-overflow policy.
func (h *Hub) PublishTrade(symbol common.Symbol, msg TradeMessage) {
	h.mu.RLock()
	reg, ok := h.symbols[symbol]
	h.mu.RUnlock()
	if !ok {
		return
	}
	reg.mu.RLock()
	targets := make([]*Subscription, 0, len(reg.subs))
	for _, sub := range reg.subs {
		targets = append(targets, sub)
	}
	reg.mu.RUnlock()

	for _, sub := range targets {
		if h.sendTrade(sub, msg) {
			h.evict(symbol, sub.ID, "trade queue overflow")
		}
	}
}

// SubscriberCount reports the number of live subscribers on symbol, used by
// tests and operator introspection.
func (h *Hub) SubscriberCount(symbol common.Symbol) int {
	h.mu.RLock()
	reg, ok := h.symbols[symbol]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.subs)
}

// Shutdown closes every subscriber's channels across all symbols. Called
// once at process shutdown so streaming callers observe clean channel
// closure rather than hanging reads.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	symbols := make([]common.Symbol, 0, len(h.symbols))
	for sym := range h.symbols {
		symbols = append(symbols, sym)
	}
	h.mu.Unlock()

	for _, sym := range symbols {
		h.mu.RLock()
		reg := h.symbols[sym]
		h.mu.RUnlock()
		reg.mu.Lock()
		ids := make([]string, 0, len(reg.subs))
		for id := range reg.subs {
			ids = append(ids, id)
		}
		reg.mu.Unlock()
		for _, id := range ids {
			h.unsubscribe(sym, id)
		}
	}
}
