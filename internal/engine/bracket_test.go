package engine

import (
	"context"
	"testing"

	"pilotfish/internal/exchange"
	"pilotfish/internal/store/memory"
	"pilotfish/internal/store/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testInstrument() exchange.Instrument {
	return exchange.Instrument{
		Symbol:      "BTCUSDT",
		PriceTick:   dec("0.1"),
		QtyStep:     dec("0.001"),
		MinQuantity: dec("0.001"),
	}
}

func filledEntry() *model.OrderModel {
	return &model.OrderModel{
		OrderID:        "entry-1",
		Symbol:         "BTCUSDT",
		Side:           "BUY",
		Type:           "LIMIT",
		Status:         "FILLED",
		Price:          50,
		Quantity:       0.5,
		FilledQuantity: 0.5,
	}
}

func isLeg(t exchange.OrderType) func(exchange.PlaceOrderRequest) bool {
	return func(r exchange.PlaceOrderRequest) bool { return r.Type == t }
}

func TestEnsureBracket_PlacesBothLegs(t *testing.T) {
	st := memory.NewStore()
	gw := new(MockGateway)
	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(isLeg(exchange.OrderTypeStopLimit))).
		Return(exchange.PlaceOrderResult{OrderID: "sl-1", Status: exchange.StatusNew}, nil)
	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(isLeg(exchange.OrderTypeLimit))).
		Return(exchange.PlaceOrderResult{OrderID: "tp-1", Status: exchange.StatusNew}, nil)

	bc := NewBracketCreator(st, gw, BracketSettings{})
	res, err := bc.EnsureBracket(context.Background(), filledEntry(), testInstrument(), "conservative",
		MarketContext{ATR: 2})
	require.NoError(t, err)
	require.False(t, res.Skipped)
	require.NotNil(t, res.StopLoss)
	require.NotNil(t, res.TakeProfit)

	// fill 50, ATR 2, multiplier 1.5: stop at 47.0; conservative target 51.5.
	assert.Equal(t, 47.0, res.StopLoss.Price)
	assert.Equal(t, 51.5, res.TakeProfit.Price)
	assert.Equal(t, 0.5, res.StopLoss.Quantity)
	assert.Equal(t, "SELL", res.StopLoss.Side)
	assert.Equal(t, "SELL", res.TakeProfit.Side)
	assert.Equal(t, "entry-1", res.StopLoss.ParentOrderID)
	assert.NotEmpty(t, res.GroupID)
	assert.Equal(t, res.StopLoss.BracketGroupID, res.TakeProfit.BracketGroupID)
}

func TestEnsureBracket_SecondCallIsNoOp(t *testing.T) {
	st := memory.NewStore()
	gw := new(MockGateway)
	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(isLeg(exchange.OrderTypeStopLimit))).
		Return(exchange.PlaceOrderResult{OrderID: "sl-1", Status: exchange.StatusNew}, nil)
	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(isLeg(exchange.OrderTypeLimit))).
		Return(exchange.PlaceOrderResult{OrderID: "tp-1", Status: exchange.StatusNew}, nil)

	bc := NewBracketCreator(st, gw, BracketSettings{})
	entry := filledEntry()
	first, err := bc.EnsureBracket(context.Background(), entry, testInstrument(), "conservative", MarketContext{ATR: 2})
	require.NoError(t, err)
	require.False(t, first.Skipped)

	second, err := bc.EnsureBracket(context.Background(), entry, testInstrument(), "conservative", MarketContext{ATR: 2})
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	gw.AssertNumberOfCalls(t, "PlaceOrder", 2)
}

func TestEnsureBracket_PercentFallbackWithoutATR(t *testing.T) {
	st := memory.NewStore()
	gw := new(MockGateway)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(exchange.PlaceOrderResult{OrderID: "leg", Status: exchange.StatusNew}, nil)

	bc := NewBracketCreator(st, gw, BracketSettings{})
	res, err := bc.EnsureBracket(context.Background(), filledEntry(), testInstrument(), "conservative", MarketContext{})
	require.NoError(t, err)
	// 50*(1-0.03)=48.5 floored to the 0.1 grid.
	assert.Equal(t, 48.5, res.StopLoss.Price)
	assert.Equal(t, 51.5, res.TakeProfit.Price)
}

func TestEnsureBracket_UnusableAccountSkipsSiblingLeg(t *testing.T) {
	st := memory.NewStore()
	gw := new(MockGateway)
	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(isLeg(exchange.OrderTypeStopLimit))).
		Return(exchange.PlaceOrderResult{}, &exchange.GatewayError{
			Reason: exchange.ReasonAPITradingDisabled, ExchangeCode: -2015, Message: "invalid api key",
		})

	bc := NewBracketCreator(st, gw, BracketSettings{})
	res, err := bc.EnsureBracket(context.Background(), filledEntry(), testInstrument(), "conservative", MarketContext{ATR: 2})
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.Error(t, res.SLErr)
	assert.Error(t, res.TPErr)
	gw.AssertNumberOfCalls(t, "PlaceOrder", 1)
}

func TestEnsureBracket_PartialWhenOneLegRejected(t *testing.T) {
	st := memory.NewStore()
	gw := new(MockGateway)
	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(isLeg(exchange.OrderTypeStopLimit))).
		Return(exchange.PlaceOrderResult{}, &exchange.GatewayError{
			Reason: exchange.ReasonInvalidPriceFormat, ExchangeCode: -1013, Message: "filter failure",
		})
	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(isLeg(exchange.OrderTypeLimit))).
		Return(exchange.PlaceOrderResult{OrderID: "tp-1", Status: exchange.StatusNew}, nil)

	bc := NewBracketCreator(st, gw, BracketSettings{})
	res, err := bc.EnsureBracket(context.Background(), filledEntry(), testInstrument(), "conservative", MarketContext{ATR: 2})
	require.NoError(t, err)
	assert.False(t, res.Failed(), "one leg on the book still protects the position")
	assert.Nil(t, res.StopLoss)
	require.NotNil(t, res.TakeProfit)
	assert.Error(t, res.SLErr)
	assert.NoError(t, res.TPErr)
}

func TestEnsureBracket_RejectsUnfilledEntry(t *testing.T) {
	st := memory.NewStore()
	gw := new(MockGateway)
	bc := NewBracketCreator(st, gw, BracketSettings{})

	entry := filledEntry()
	entry.FilledQuantity = 0
	_, err := bc.EnsureBracket(context.Background(), entry, testInstrument(), "conservative", MarketContext{})
	require.Error(t, err)
	gw.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestEnsureBracket_RejectsSellEntry(t *testing.T) {
	st := memory.NewStore()
	gw := new(MockGateway)
	bc := NewBracketCreator(st, gw, BracketSettings{})

	entry := filledEntry()
	entry.Side = "SELL"
	_, err := bc.EnsureBracket(context.Background(), entry, testInstrument(), "conservative", MarketContext{ATR: 2})
	require.Error(t, err)
	gw.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestEnsureBracket_QuantityBelowMinimum(t *testing.T) {
	st := memory.NewStore()
	gw := new(MockGateway)
	bc := NewBracketCreator(st, gw, BracketSettings{})

	inst := testInstrument()
	inst.MinQuantity = dec("1")
	_, err := bc.EnsureBracket(context.Background(), filledEntry(), inst, "conservative", MarketContext{ATR: 2})
	require.Error(t, err)
	gw.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}
