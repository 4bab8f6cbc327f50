package engine

import (
	"context"
	"fmt"
	"time"

	"pilotfish/internal/exchange"
	"pilotfish/internal/logger"
	"pilotfish/internal/store"
	"pilotfish/internal/store/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BracketSettings tune SL/TP pricing.
type BracketSettings struct {
	ATRMultiplier float64 // stop distance in ATRs; default 1.5
	MomentumRSI   float64 // RSI at or above this arms the TP boost; default 70
}

func (s BracketSettings) withDefaults() BracketSettings {
	if s.ATRMultiplier <= 0 {
		s.ATRMultiplier = 1.5
	}
	if s.MomentumRSI <= 0 {
		s.MomentumRSI = 70
	}
	return s
}

// MarketContext is the indicator slice bracket pricing needs.
type MarketContext struct {
	ATR        float64
	RSI        float64
	Volume     float64
	AvgVolume  float64
	Resistance float64
}

// BracketResult reports what EnsureBracket did. Skipped is a successful
// no-op (the idempotency guard fired), distinct from leg failures.
type BracketResult struct {
	Skipped    bool
	GroupID    string
	StopLoss   *model.OrderModel
	TakeProfit *model.OrderModel
	SLErr      error
	TPErr      error
}

// Failed reports whether no protective leg ended up on the book.
func (r BracketResult) Failed() bool {
	return !r.Skipped && r.StopLoss == nil && r.TakeProfit == nil
}

// BracketCreator idempotently attaches an SL/TP pair to a filled entry.
type BracketCreator struct {
	store    store.Store
	gateway  exchange.Gateway
	settings BracketSettings
	now      func() time.Time
}

func NewBracketCreator(st store.Store, gw exchange.Gateway, settings BracketSettings) *BracketCreator {
	return &BracketCreator{store: st, gateway: gw, settings: settings.withDefaults(), now: time.Now}
}

var bracketRoles = []string{string(exchange.RoleStopLoss), string(exchange.RoleTakeProfit)}

// EnsureBracket creates the SL/TP pair for entry exactly once. The guard
// queries existing active children up front and again immediately before
// the transaction that commits the new child rows.
func (b *BracketCreator) EnsureBracket(ctx context.Context, entry *model.OrderModel, inst exchange.Instrument, mode string, mkt MarketContext) (BracketResult, error) {
	if entry == nil {
		return BracketResult{}, fmt.Errorf("entry order cannot be nil")
	}
	// Pricing is long-only: SL below the fill, TP above. A sell entry has
	// no long exposure to protect.
	if exchange.Side(entry.Side) != exchange.SideBuy {
		return BracketResult{}, fmt.Errorf("bracket precondition: protective legs apply to buy entries only, got %s", entry.Side)
	}
	if f := ValidateOrder(ValidateRequest{
		Symbol:        entry.Symbol,
		Side:          exchange.Side(entry.Side),
		Quantity:      entry.FilledQuantity,
		TPSLRequested: true,
		FilledPrice:   &entry.Price,
		FilledQty:     &entry.FilledQuantity,
	}); f != nil {
		return BracketResult{}, fmt.Errorf("bracket precondition: %s: %s", f.Reason, f.Message)
	}

	exists, err := b.activeChildrenExist(ctx, entry.OrderID)
	if err != nil {
		return BracketResult{}, err
	}
	if exists {
		logger.Infow("bracket skipped, children already active",
			"symbol", entry.Symbol, "entry_order_id", entry.OrderID, "reason", string(ReasonBracketExists))
		return BracketResult{Skipped: true}, nil
	}

	slPrice, tpPrice, qty, err := b.prices(entry, inst, mode, mkt)
	if err != nil {
		return BracketResult{}, err
	}

	res := BracketResult{GroupID: uuid.NewString()}
	exitSide := exchange.Side(entry.Side).Opposite()
	now := b.now().Unix()

	slOrder, slErr := b.placeLeg(ctx, entry, exchange.RoleStopLoss, exchange.PlaceOrderRequest{
		Symbol:       entry.Symbol,
		Side:         exitSide,
		Type:         exchange.OrderTypeStopLimit,
		Quantity:     qty.String(),
		Price:        slPrice.String(),
		TriggerPrice: slPrice.String(),
	}, res.GroupID, now)
	res.StopLoss, res.SLErr = slOrder, slErr
	if slErr != nil && exchange.IsAccountUnusable(slErr) {
		// No point sending the sibling through a dead account/API.
		res.TPErr = fmt.Errorf("take-profit leg not attempted: %w", slErr)
		return res, nil
	}

	tpOrder, tpErr := b.placeLeg(ctx, entry, exchange.RoleTakeProfit, exchange.PlaceOrderRequest{
		Symbol:   entry.Symbol,
		Side:     exitSide,
		Type:     exchange.OrderTypeLimit,
		Quantity: qty.String(),
		Price:    tpPrice.String(),
	}, res.GroupID, now)
	res.TakeProfit, res.TPErr = tpOrder, tpErr

	if res.StopLoss == nil && res.TakeProfit == nil {
		return res, nil
	}
	return res, b.commitLegs(ctx, entry, &res)
}

func (b *BracketCreator) activeChildrenExist(ctx context.Context, entryOrderID string) (bool, error) {
	uow, err := b.store.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = uow.Rollback() }()
	children, err := uow.Orders().ListActiveChildren(ctx, entryOrderID, bracketRoles)
	if err != nil {
		return false, err
	}
	return len(children) > 0, nil
}

func (b *BracketCreator) prices(entry *model.OrderModel, inst exchange.Instrument, mode string, mkt MarketContext) (sl, tp, qty decimal.Decimal, err error) {
	pct := sltpModePct(mode)
	filled := decFromFloat(entry.Price)

	sl = quantizeDown(stopLossPrice(filled, decFromFloat(mkt.ATR), decFromFloat(b.settings.ATRMultiplier), pct), inst.PriceTick)
	momentum := mkt.AvgVolume > 0 && mkt.Volume > mkt.AvgVolume && mkt.RSI >= b.settings.MomentumRSI
	tp = quantizeUp(takeProfitPrice(filled, pct, momentum, decFromFloat(mkt.Resistance)), inst.PriceTick)
	qty = quantizeDown(decFromFloat(entry.FilledQuantity), inst.QtyStep)

	if sl.Sign() <= 0 || tp.Sign() <= 0 {
		return sl, tp, qty, fmt.Errorf("bracket pricing degenerate for %s: sl=%s tp=%s", entry.Symbol, sl, tp)
	}
	if inst.MinQuantity.Sign() > 0 && qty.Cmp(inst.MinQuantity) < 0 {
		return sl, tp, qty, fmt.Errorf("bracket quantity %s below instrument minimum %s", qty, inst.MinQuantity)
	}
	return sl, tp, qty, nil
}

func (b *BracketCreator) placeLeg(ctx context.Context, entry *model.OrderModel, role exchange.OrderRole, req exchange.PlaceOrderRequest, groupID string, nowUnix int64) (*model.OrderModel, error) {
	placed, err := b.gateway.PlaceOrder(ctx, req)
	if err != nil {
		logger.Warnw("bracket leg rejected",
			"symbol", entry.Symbol, "role", string(role),
			"reason", string(exchange.ReasonOf(err)), "error", err.Error())
		return nil, err
	}
	price, _ := decimal.NewFromString(req.Price)
	qty, _ := decimal.NewFromString(req.Quantity)
	return &model.OrderModel{
		OrderID:        placed.OrderID,
		Symbol:         entry.Symbol,
		Side:           string(req.Side),
		Type:           string(req.Type),
		Status:         string(placed.Status),
		Price:          price.InexactFloat64(),
		Quantity:       qty.InexactFloat64(),
		ParentOrderID:  entry.OrderID,
		OrderRole:      string(role),
		BracketGroupID: groupID,
		CreatedAtUnix:  nowUnix,
		UpdatedAtUnix:  nowUnix,
	}, nil
}

// commitLegs re-checks the idempotency guard inside the transaction that
// writes the child rows. Losing the race cancels our own legs.
func (b *BracketCreator) commitLegs(ctx context.Context, entry *model.OrderModel, res *BracketResult) error {
	uow, err := b.store.Begin(ctx)
	if err != nil {
		return err
	}
	children, err := uow.Orders().ListActiveChildren(ctx, entry.OrderID, bracketRoles)
	if err != nil {
		_ = uow.Rollback()
		return err
	}
	if len(children) > 0 {
		_ = uow.Rollback()
		logger.Warnf("bracket race lost for entry %s, cancelling own legs", entry.OrderID)
		b.cancelLegs(ctx, entry.Symbol, res)
		*res = BracketResult{Skipped: true}
		return nil
	}
	for _, leg := range []*model.OrderModel{res.StopLoss, res.TakeProfit} {
		if leg == nil {
			continue
		}
		if err := uow.Orders().Save(ctx, leg); err != nil {
			_ = uow.Rollback()
			return err
		}
	}
	return uow.Commit()
}

func (b *BracketCreator) cancelLegs(ctx context.Context, symbol string, res *BracketResult) {
	for _, leg := range []*model.OrderModel{res.StopLoss, res.TakeProfit} {
		if leg == nil {
			continue
		}
		if err := b.gateway.CancelOrder(ctx, symbol, leg.OrderID); err != nil {
			logger.Warnf("cancel of duplicate bracket leg %s failed: %v", leg.OrderID, err)
		}
	}
}
