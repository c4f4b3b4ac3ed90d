// Package marketdata is the dissemination fabric: a per-symbol subscriber
// registry that fans out book snapshots, BBO changes, and trade prints in
// the order the matching engine commits them.
//
// The teacher repo has no equivalent component — its net.Server pushed
// execution reports directly to TCP connections under one mutex. This is
// new code, grounded in the teacher's general channel/worker idiom
// (internal/worker.go's task channel, internal/net/server.go's
// clientMessages channel) and generalized into the spec's two-channel,
// bounded-queue, evict-on-overflow subscriber model.
package marketdata

import (
	"time"

	"fenrir/internal/book"
	"fenrir/internal/common"
)

// MessageType distinguishes the market-data message catalogue.
type MessageType string

const (
	Snapshot   MessageType = "SNAPSHOT"
	BookUpdate MessageType = "BOOK_UPDATE"
	BBOUpdate  MessageType = "BBO_UPDATE"
)

// BBO is the current best bid/offer, each side nil when empty.
type BBO struct {
	Symbol    common.Symbol   `json:"symbol"`
	BestBid   *book.LevelView `json:"best_bid"`
	BestAsk   *book.LevelView `json:"best_ask"`
	Timestamp time.Time       `json:"timestamp"`
}

// MarketDataMessage is one envelope on a symbol's market-data channel.
type MarketDataMessage struct {
	Type      MessageType    `json:"type"`
	Symbol    common.Symbol  `json:"symbol"`
	Snapshot  *book.Snapshot `json:"snapshot,omitempty"`
	BBO       *BBO           `json:"bbo,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// TradeMessage is one envelope on a symbol's trade channel.
type TradeMessage struct {
	Symbol    common.Symbol         `json:"symbol"`
	Trade     common.TradeExecution `json:"trade"`
	Timestamp time.Time             `json:"timestamp"`
}
