package engine

import (
	"fmt"

	"fenrir/internal/common"

	"github.com/shopspring/decimal"
)

// SubmitRequest is the admission-time input to MatchingEngine.Submit,
// mirroring spec.md §6's "Submit order" external interface: symbol, side,
// order type, quantity/price as decimal strings, and an optional user id.
type SubmitRequest struct {
	Symbol      common.Symbol
	Side        common.Side
	Type        common.OrderType
	QuantityStr string
	PriceStr    string
	UserID      string
}

func (e *MatchingEngine) validate(req SubmitRequest) (*common.Order, error) {
	symbol, err := common.ParseSymbol(string(req.Symbol))
	if err != nil {
		return nil, err
	}
	if _, ok := e.books[symbol]; !ok {
		return nil, common.NewValidationError("unsupported symbol", map[string]string{"symbol": string(symbol)})
	}

	qty, err := parsePositiveDecimal(req.QuantityStr, "quantity")
	if err != nil {
		return nil, err
	}

	var price decimal.Decimal
	if req.Type.RequiresPrice() {
		if req.PriceStr == "" {
			return nil, common.NewValidationError(fmt.Sprintf("%s orders require a price", req.Type), nil)
		}
		price, err = parsePositiveDecimal(req.PriceStr, "price")
		if err != nil {
			return nil, err
		}
	} else if req.PriceStr != "" {
		return nil, common.NewValidationError("market orders must not specify a price", nil)
	}

	return &common.Order{
		Symbol:   symbol,
		Side:     req.Side,
		Type:     req.Type,
		Quantity: qty,
		Price:    price,
		UserID:   req.UserID,
		Status:   common.Pending,
	}, nil
}

func parsePositiveDecimal(raw, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, common.NewValidationError(fmt.Sprintf("invalid %s %q", field, raw), nil)
	}
	if !d.IsPositive() {
		return decimal.Zero, common.NewValidationError(fmt.Sprintf("%s must be positive", field), nil)
	}
	if int(-d.Exponent()) > common.MaxDecimalScale {
		return decimal.Zero, common.NewValidationError(
			fmt.Sprintf("%s exceeds max scale of %d fractional digits", field, common.MaxDecimalScale), nil)
	}
	return d, nil
}
