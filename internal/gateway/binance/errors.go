package binance

import (
	"errors"
	"strings"

	"pilotfish/internal/exchange"

	"github.com/adshao/go-binance/v2/common"
	"github.com/tidwall/gjson"
)

// mapError converts a binance SDK error into a typed exchange.GatewayError.
// Typed *common.APIError is the normal path; the gjson probe covers raw
// JSON bodies that surface through wrapped transport errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return &exchange.GatewayError{
			Reason:       reasonForCode(apiErr.Code),
			ExchangeCode: apiErr.Code,
			Message:      apiErr.Message,
		}
	}
	raw := err.Error()
	if code := gjson.Get(raw, "code"); code.Exists() && code.Int() != 0 {
		msg := gjson.Get(raw, "msg").String()
		if msg == "" {
			msg = raw
		}
		return &exchange.GatewayError{
			Reason:       reasonForCode(code.Int()),
			ExchangeCode: code.Int(),
			Message:      msg,
		}
	}
	return &exchange.GatewayError{
		Reason:  exchange.ReasonUnknown,
		Message: strings.TrimSpace(raw),
	}
}

// reasonForCode maps binance error codes to the local taxonomy.
// Reference: binance spot/margin API error code documentation.
func reasonForCode(code int64) exchange.ReasonCode {
	switch code {
	case -1013, -1111: // PRICE_FILTER / precision over maximum
		return exchange.ReasonInvalidPriceFormat
	case -1100, -1102: // illegal characters / mandatory parameter empty
		return exchange.ReasonInvalidQuantity
	case -2013: // order does not exist
		return exchange.ReasonOrderNotFound
	case -1003, -1015: // too many requests / too many orders
		return exchange.ReasonRateLimited
	case -2010: // NEW_ORDER_REJECTED (insufficient balance et al.)
		return exchange.ReasonInsufficientBalance
	case -2011: // CANCEL_REJECTED: unknown order
		return exchange.ReasonOrderNotFound
	case -2014, -2015: // bad API key format / invalid key, IP, permissions
		return exchange.ReasonAPITradingDisabled
	case -3003: // margin account does not exist
		return exchange.ReasonMarginDisabled
	case -3006, -3045: // borrow exceeds limit / system lacks borrowable asset
		return exchange.ReasonLeverageExceeded
	case -11008, -11017: // exceeds account borrowable limit
		return exchange.ReasonLeverageExceeded
	default:
		return exchange.ReasonUnknown
	}
}
