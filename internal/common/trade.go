package common

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeExecution is an immutable record of one match between a taker and a
// resting maker order. The executed Price is always the maker's price —
// the internal-protection property that forbids trading through a better
// resting price.
type TradeExecution struct {
	TradeID       string          `json:"trade_id"`
	Symbol        Symbol          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	AggressorSide Side            `json:"aggressor_side"`
	MakerOrderID  string          `json:"maker_order_id"`
	TakerOrderID  string          `json:"taker_order_id"`
	Sequence      int64           `json:"sequence"`
	Timestamp     time.Time       `json:"timestamp"`
}
