// Package transport exposes the MatchingEngine and dissemination Hub over a
// length-prefixed JSON-over-TCP protocol: one frame is a big-endian uint32
// length followed by a JSON envelope `{type, payload}`.
//
// Grounded on the teacher's internal/net/messages.go (MessageType enum,
// Message envelope) and internal/net/server.go (session/report shape),
// replacing the teacher's hand-packed fixed-offset binary struct encoding —
// which only round-tripped float64 prices and fixed-width strings — with
// JSON, since decimal.Decimal already implements MarshalJSON/UnmarshalJSON
// and symbols/ids are variable-length.
package transport

import (
	"encoding/json"

	"fenrir/internal/common"
)

// Verb identifies the kind of request or response carried by an Envelope.
type Verb string

const (
	VerbSubmitOrder       Verb = "SUBMIT_ORDER"
	VerbCancelOrder       Verb = "CANCEL_ORDER"
	VerbGetOrder          Verb = "GET_ORDER"
	VerbGetBookSnapshot   Verb = "GET_BOOK_SNAPSHOT"
	VerbGetBBO            Verb = "GET_BBO"
	VerbStreamMarketData  Verb = "STREAM_MARKET_DATA"
	VerbStreamTrades      Verb = "STREAM_TRADES"
	VerbDumpBook          Verb = "DUMP_BOOK"
	VerbOK                Verb = "OK"
	VerbError             Verb = "ERROR"
	VerbSnapshotMessage   Verb = "SNAPSHOT"
	VerbBookUpdateMessage Verb = "BOOK_UPDATE"
	VerbBBOUpdateMessage  Verb = "BBO_UPDATE"
	VerbTradeMessage      Verb = "TRADE"
)

// Envelope is the wire shape of every frame, request or response: a verb and
// its verb-specific payload, carried as raw JSON so the codec need not know
// every payload type up front.
type Envelope struct {
	Type    Verb            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SubmitOrderRequest is the wire payload for VerbSubmitOrder.
type SubmitOrderRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Type     string `json:"order_type"`
	Quantity string `json:"quantity"`
	Price    string `json:"price,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// CancelOrderRequest is the wire payload for VerbCancelOrder.
type CancelOrderRequest struct {
	Symbol  string `json:"symbol"`
	OrderID string `json:"order_id"`
}

// GetOrderRequest is the wire payload for VerbGetOrder.
type GetOrderRequest struct {
	Symbol  string `json:"symbol"`
	OrderID string `json:"order_id"`
}

// GetBookSnapshotRequest is the wire payload for VerbGetBookSnapshot.
type GetBookSnapshotRequest struct {
	Symbol string `json:"symbol"`
	Depth  int    `json:"depth"`
}

// GetBBORequest is the wire payload for VerbGetBBO.
type GetBBORequest struct {
	Symbol string `json:"symbol"`
}

// StreamRequest is the wire payload for VerbStreamMarketData/VerbStreamTrades.
type StreamRequest struct {
	Symbol string `json:"symbol"`
}

// DumpBookRequest is the wire payload for VerbDumpBook, the renamed
// successor of the teacher's LogBook verb (spec.md carries no such
// operation; this is a supplemented operator/debugging affordance).
type DumpBookRequest struct {
	Symbol string `json:"symbol"`
}

// OrderResponse is the wire payload returned for a successful
// SUBMIT_ORDER/CANCEL_ORDER/GET_ORDER call.
type OrderResponse struct {
	OrderID           string `json:"order_id"`
	Status            string `json:"status"`
	FilledQuantity    string `json:"filled_quantity"`
	RemainingQuantity string `json:"remaining_quantity"`
}

// ErrorResponse is the wire payload for VerbError, per spec.md §6's "Error
// surface": `{code, message, details?}`.
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func errorResponse(err error) ErrorResponse {
	var fe *common.Error
	if common.As(err, &fe) {
		return ErrorResponse{Code: fe.Kind.String(), Message: fe.Message, Details: fe.Details}
	}
	return ErrorResponse{Code: common.KindInternal.String(), Message: err.Error()}
}
