package binance

import (
	"errors"
	"fmt"
	"testing"

	"pilotfish/internal/exchange"

	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError_TypedAPIError(t *testing.T) {
	cases := []struct {
		code   int64
		reason exchange.ReasonCode
	}{
		{-1013, exchange.ReasonInvalidPriceFormat},
		{-1111, exchange.ReasonInvalidPriceFormat},
		{-1003, exchange.ReasonRateLimited},
		{-2010, exchange.ReasonInsufficientBalance},
		{-2011, exchange.ReasonOrderNotFound},
		{-2013, exchange.ReasonOrderNotFound},
		{-2014, exchange.ReasonAPITradingDisabled},
		{-2015, exchange.ReasonAPITradingDisabled},
		{-3003, exchange.ReasonMarginDisabled},
		{-3045, exchange.ReasonLeverageExceeded},
		{-11008, exchange.ReasonLeverageExceeded},
		{-9999, exchange.ReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d", tc.code), func(t *testing.T) {
			err := mapError(&common.APIError{Code: tc.code, Message: "boom"})
			assert.Equal(t, tc.reason, exchange.ReasonOf(err))
		})
	}
}

func TestMapError_WrappedAPIError(t *testing.T) {
	wrapped := fmt.Errorf("placing order: %w", &common.APIError{Code: -2010, Message: "insufficient balance"})
	err := mapError(wrapped)
	assert.Equal(t, exchange.ReasonInsufficientBalance, exchange.ReasonOf(err))

	var ge *exchange.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, int64(-2010), ge.ExchangeCode)
}

func TestMapError_RawJSONBody(t *testing.T) {
	err := mapError(errors.New(`{"code":-1013,"msg":"Filter failure: PRICE_FILTER"}`))
	assert.Equal(t, exchange.ReasonInvalidPriceFormat, exchange.ReasonOf(err))

	var ge *exchange.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, "Filter failure: PRICE_FILTER", ge.Message)
}

func TestMapError_PlainError(t *testing.T) {
	err := mapError(errors.New("dial tcp: connection refused"))
	assert.Equal(t, exchange.ReasonUnknown, exchange.ReasonOf(err))
}

func TestMapError_NilPassthrough(t *testing.T) {
	assert.NoError(t, mapError(nil))
}
