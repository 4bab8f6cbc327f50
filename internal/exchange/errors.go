package exchange

import (
	"errors"
	"fmt"
)

// ReasonCode classifies gateway rejections into the local taxonomy the
// controller logs and reacts to.
type ReasonCode string

const (
	ReasonUnknown             ReasonCode = "EXCHANGE_UNKNOWN"
	ReasonInvalidPriceFormat  ReasonCode = "INVALID_PRICE_FORMAT"
	ReasonInvalidQuantity     ReasonCode = "INVALID_QUANTITY"
	ReasonAPITradingDisabled  ReasonCode = "API_TRADING_DISABLED"
	ReasonMarginDisabled      ReasonCode = "MARGIN_DISABLED"
	ReasonLeverageExceeded    ReasonCode = "LEVERAGE_EXCEEDED"
	ReasonInsufficientBalance ReasonCode = "INSUFFICIENT_BALANCE"
	ReasonRateLimited         ReasonCode = "RATE_LIMITED"
	ReasonOrderNotFound       ReasonCode = "ORDER_NOT_FOUND"
)

// GatewayError is a typed exchange rejection with the venue's native code
// mapped to a local reason.
type GatewayError struct {
	Reason       ReasonCode
	ExchangeCode int64
	Message      string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway rejection %s (code=%d): %s", e.Reason, e.ExchangeCode, e.Message)
}

// ReasonOf extracts the mapped reason from err, or ReasonUnknown.
func ReasonOf(err error) ReasonCode {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Reason
	}
	return ReasonUnknown
}

// IsLeverageRejection reports whether err indicates the requested leverage
// exceeded what the venue allows for the instrument. Feeds leverage demotion.
func IsLeverageRejection(err error) bool {
	return ReasonOf(err) == ReasonLeverageExceeded
}

// IsAccountUnusable reports whether err means the account/API itself cannot
// trade, so retrying the sibling bracket leg is pointless.
func IsAccountUnusable(err error) bool {
	switch ReasonOf(err) {
	case ReasonAPITradingDisabled, ReasonRateLimited:
		return true
	}
	return false
}
