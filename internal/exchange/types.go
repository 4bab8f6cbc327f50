// Package exchange defines a common abstraction over trading venues.
// The controller core works against these interfaces so different
// exchange backends can be plugged in without touching decision logic.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// Opposite returns the exit side for a filled entry.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderType string

const (
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeStopLimit OrderType = "STOP_LOSS_LIMIT"
)

type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusActive          OrderStatus = "ACTIVE"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCancelled       OrderStatus = "CANCELLED"
	StatusRejected        OrderStatus = "REJECTED"
)

// Terminal reports whether the status can no longer change.
func (s OrderStatus) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusRejected
}

// Active reports whether the order still rests on the book.
func (s OrderStatus) Active() bool {
	return s == StatusNew || s == StatusActive || s == StatusPartiallyFilled
}

type OrderRole string

const (
	RoleEntry      OrderRole = "ENTRY"
	RoleStopLoss   OrderRole = "STOP_LOSS"
	RoleTakeProfit OrderRole = "TAKE_PROFIT"
)

// Order is an exchange order as reported by gateway queries.
type Order struct {
	OrderID        string
	Symbol         string
	Side           Side
	Type           OrderType
	Status         OrderStatus
	Price          float64
	Quantity       float64
	FilledQuantity float64
	UpdatedAt      time.Time
}

// Instrument carries the exchange metadata the controller needs to
// quantize prices/quantities and to decide margin eligibility.
type Instrument struct {
	Symbol        string
	PriceTick     decimal.Decimal
	QtyStep       decimal.Decimal
	MinQuantity   decimal.Decimal
	MarginEnabled bool
	MaxLeverage   float64
}

// Indicators is the per-symbol market snapshot consumed each cycle.
// Resistance is the nearest recent swing high, used by take-profit boosts.
type Indicators struct {
	Price      float64
	RSI        float64
	MA50       float64
	MA200      float64
	EMA10      float64
	ATR        float64
	Volume     float64
	AvgVolume  float64
	Resistance float64
}

// PlaceOrderRequest describes an outbound order. Price, TriggerPrice and
// Quantity are exact decimal text; binary floats never cross this boundary.
type PlaceOrderRequest struct {
	Symbol       string
	Side         Side
	Type         OrderType
	Quantity     string
	Price        string
	TriggerPrice string
	UseMargin    bool
	Leverage     float64
}

type PlaceOrderResult struct {
	OrderID string
	Status  OrderStatus
}

// Gateway is the order-placement/query surface of the venue.
type Gateway interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error)
	OpenOrders(ctx context.Context, symbol string) ([]Order, error)
	OrderHistory(ctx context.Context, symbol string, since time.Time) ([]Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	Instrument(ctx context.Context, symbol string) (Instrument, error)
}

// MarketData supplies the indicator snapshot for a symbol.
type MarketData interface {
	Indicators(ctx context.Context, symbol string) (Indicators, error)
}
