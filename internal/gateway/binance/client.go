package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"pilotfish/internal/exchange"
	"pilotfish/internal/logger"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

const instrumentCacheTTL = 10 * time.Minute

// Config selects credentials and venue-level overrides.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	// DefaultMaxLeverage caps the leverage ladder. Spot exchange info does
	// not expose per-pair borrow limits, which is exactly why the adaptive
	// ladder exists; this is only the hard ceiling.
	DefaultMaxLeverage float64
}

// Client implements exchange.Gateway over the binance spot + margin APIs.
type Client struct {
	api *binance.Client
	cfg Config

	instMu    sync.Mutex
	instCache map[string]cachedInstrument
}

type cachedInstrument struct {
	inst    exchange.Instrument
	fetched time.Time
}

func NewClient(cfg Config) *Client {
	binance.UseTestnet = cfg.Testnet
	return &Client{
		api:       binance.NewClient(cfg.APIKey, cfg.APISecret),
		cfg:       cfg,
		instCache: make(map[string]cachedInstrument),
	}
}

func (c *Client) PlaceOrder(ctx context.Context, req exchange.PlaceOrderRequest) (exchange.PlaceOrderResult, error) {
	if req.UseMargin {
		return c.placeMarginOrder(ctx, req)
	}
	return c.placeSpotOrder(ctx, req)
}

func (c *Client) placeSpotOrder(ctx context.Context, req exchange.PlaceOrderRequest) (exchange.PlaceOrderResult, error) {
	svc := c.api.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(binance.SideType(req.Side)).
		Type(binance.OrderType(req.Type)).
		Quantity(req.Quantity)
	if req.Price != "" {
		svc = svc.Price(req.Price).TimeInForce(binance.TimeInForceTypeGTC)
	}
	if req.TriggerPrice != "" {
		svc = svc.StopPrice(req.TriggerPrice)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return exchange.PlaceOrderResult{}, mapError(err)
	}
	return exchange.PlaceOrderResult{
		OrderID: strconv.FormatInt(res.OrderID, 10),
		Status:  mapStatus(res.Status),
	}, nil
}

// placeMarginOrder borrows on the way in (MARGIN_BUY side effect). The
// requested leverage drives position sizing upstream; the venue rejects
// borrows beyond the account limit and the mapper turns that into
// LEVERAGE_EXCEEDED for the selector's demotion path.
func (c *Client) placeMarginOrder(ctx context.Context, req exchange.PlaceOrderRequest) (exchange.PlaceOrderResult, error) {
	svc := c.api.NewCreateMarginOrderService().
		Symbol(req.Symbol).
		Side(binance.SideType(req.Side)).
		Type(binance.OrderType(req.Type)).
		Quantity(req.Quantity).
		SideEffectType(binance.SideEffectTypeMarginBuy)
	if req.Price != "" {
		svc = svc.Price(req.Price).TimeInForce(binance.TimeInForceTypeGTC)
	}
	if req.TriggerPrice != "" {
		svc = svc.StopPrice(req.TriggerPrice)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return exchange.PlaceOrderResult{}, mapError(err)
	}
	return exchange.PlaceOrderResult{
		OrderID: strconv.FormatInt(res.OrderID, 10),
		Status:  mapStatus(res.Status),
	}, nil
}

// OpenOrders merges spot and margin open orders; margin errors degrade to
// spot-only results for accounts without a margin wallet.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	spot, err := c.api.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]exchange.Order, 0, len(spot))
	for _, o := range spot {
		out = append(out, mapOrder(o))
	}
	marginOrders, err := c.api.NewListMarginOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		logger.Debugf("margin open orders unavailable for %s: %v", symbol, err)
		return out, nil
	}
	for _, o := range marginOrders {
		out = append(out, mapOrder(o))
	}
	return out, nil
}

func (c *Client) OrderHistory(ctx context.Context, symbol string, since time.Time) ([]exchange.Order, error) {
	orders, err := c.api.NewListOrdersService().
		Symbol(symbol).
		StartTime(since.UnixMilli()).
		Do(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]exchange.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, mapOrder(o))
	}
	return out, nil
}

// CancelOrder tries the spot book first and falls back to margin when the
// order id is unknown there.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("order id %q is not numeric: %w", orderID, err)
	}
	_, err = c.api.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(ctx)
	if err == nil {
		return nil
	}
	mapped := mapError(err)
	if exchange.ReasonOf(mapped) != exchange.ReasonOrderNotFound {
		return mapped
	}
	_, err = c.api.NewCancelMarginOrderService().Symbol(symbol).OrderID(id).Do(ctx)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (c *Client) Instrument(ctx context.Context, symbol string) (exchange.Instrument, error) {
	c.instMu.Lock()
	if cached, ok := c.instCache[symbol]; ok && time.Since(cached.fetched) < instrumentCacheTTL {
		c.instMu.Unlock()
		return cached.inst, nil
	}
	c.instMu.Unlock()

	info, err := c.api.NewExchangeInfoService().Symbols(symbol).Do(ctx)
	if err != nil {
		return exchange.Instrument{}, mapError(err)
	}
	for _, s := range info.Symbols {
		if !strings.EqualFold(s.Symbol, symbol) {
			continue
		}
		inst := exchange.Instrument{
			Symbol:        s.Symbol,
			MarginEnabled: s.IsMarginTradingAllowed,
			MaxLeverage:   c.cfg.DefaultMaxLeverage,
		}
		if pf := s.PriceFilter(); pf != nil {
			inst.PriceTick = decFromString(pf.TickSize)
		}
		if lf := s.LotSizeFilter(); lf != nil {
			inst.QtyStep = decFromString(lf.StepSize)
			inst.MinQuantity = decFromString(lf.MinQuantity)
		}
		c.instMu.Lock()
		c.instCache[symbol] = cachedInstrument{inst: inst, fetched: time.Now()}
		c.instMu.Unlock()
		return inst, nil
	}
	return exchange.Instrument{}, fmt.Errorf("symbol %s not found in exchange info", symbol)
}

func mapOrder(o *binance.Order) exchange.Order {
	return exchange.Order{
		OrderID:        strconv.FormatInt(o.OrderID, 10),
		Symbol:         o.Symbol,
		Side:           exchange.Side(o.Side),
		Type:           exchange.OrderType(o.Type),
		Status:         mapStatus(o.Status),
		Price:          parseFloat(o.Price),
		Quantity:       parseFloat(o.OrigQuantity),
		FilledQuantity: parseFloat(o.ExecutedQuantity),
		UpdatedAt:      time.UnixMilli(o.UpdateTime),
	}
}

func mapStatus(s binance.OrderStatusType) exchange.OrderStatus {
	switch s {
	case binance.OrderStatusTypeNew:
		return exchange.StatusNew
	case binance.OrderStatusTypePartiallyFilled:
		return exchange.StatusPartiallyFilled
	case binance.OrderStatusTypeFilled:
		return exchange.StatusFilled
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired:
		return exchange.StatusCancelled
	case binance.OrderStatusTypeRejected:
		return exchange.StatusRejected
	default:
		return exchange.StatusActive
	}
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func decFromString(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
