package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"pilotfish/internal/exchange"
	"pilotfish/internal/gateway/notifier"
	"pilotfish/internal/logger"
	"pilotfish/internal/pkg/circuit"
	"pilotfish/internal/store"
	"pilotfish/internal/store/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Decision is a candidate signal computed outside the controller.
type Decision struct {
	Symbol string
	Side   exchange.Side
	Price  float64
	Reason string // strategy annotation, carried into the alert text
}

// ControllerParams wires the controller's collaborators.
type ControllerParams struct {
	Store    store.Store
	Gateway  exchange.Gateway
	Market   exchange.MarketData
	Configs  ConfigSource
	Notifier notifier.Notifier
	Gate     *ThrottleGate
	Poller   *FillPoller
	Brackets *BracketCreator
	Margins  *MarginSelector
	Dedup    *DedupCache
	Breaker  *circuit.Breaker

	MinSignalInterval time.Duration
}

// Controller ties gate, validator, margin selector, gateway, fill poller,
// bracket creator and dedup together for one symbol's cycle. It is the only
// component with authority to block, allow or force a decision through.
type Controller struct {
	store       store.Store
	gateway     exchange.Gateway
	market      exchange.MarketData
	configs     ConfigSource
	notifier    notifier.Notifier
	gate        *ThrottleGate
	poller      *FillPoller
	brackets    *BracketCreator
	margins     *MarginSelector
	dedup       *DedupCache
	breaker     *circuit.Breaker
	minInterval time.Duration

	kill atomic.Bool
	now  func() time.Time
}

func NewController(p ControllerParams) *Controller {
	n := p.Notifier
	if n == nil {
		n = notifier.Nop{}
	}
	minInterval := p.MinSignalInterval
	if minInterval <= 0 {
		minInterval = time.Minute
	}
	return &Controller{
		store:       p.Store,
		gateway:     p.Gateway,
		market:      p.Market,
		configs:     p.Configs,
		notifier:    n,
		gate:        p.Gate,
		poller:      p.Poller,
		brackets:    p.Brackets,
		margins:     p.Margins,
		dedup:       p.Dedup,
		breaker:     p.Breaker,
		minInterval: minInterval,
		now:         time.Now,
	}
}

// EngageKill short-circuits all future cycles before the invariant
// validator runs. It does not interrupt an in-flight fill poll.
func (c *Controller) EngageKill()  { c.kill.Store(true) }
func (c *Controller) ReleaseKill() { c.kill.Store(false) }
func (c *Controller) Killed() bool { return c.kill.Load() }

// Gate exposes the throttle gate for manual force-next commands.
func (c *Controller) Gate() *ThrottleGate { return c.gate }

// RunCycle drives one symbol's decision through gate, checks, order
// placement, fill confirmation, bracket creation and notification. Every
// call produces exactly one audit record, blocked cycles included.
func (c *Controller) RunCycle(ctx context.Context, d Decision) Outcome {
	corr := uuid.NewString()
	out, details := c.runCycle(ctx, d, corr)
	out.CorrelationID = corr
	c.recordOutcome(ctx, d, out, details)
	return out
}

func (c *Controller) runCycle(ctx context.Context, d Decision, corr string) (Outcome, map[string]any) {
	if c.Killed() {
		return Outcome{Status: StatusBlocked, Reason: ReasonKillSwitch}, nil
	}
	cfg, ok := c.configs.TradingConfig(d.Symbol)
	if !ok || !cfg.AlertEnabled {
		return Outcome{Status: StatusBlocked, Reason: ReasonAlertDisabled}, nil
	}
	if (d.Side == exchange.SideBuy && !cfg.BuyAlertEnabled) ||
		(d.Side == exchange.SideSell && !cfg.SellAlertEnabled) {
		return Outcome{Status: StatusBlocked, Reason: ReasonAlertDisabled}, nil
	}

	key := ThrottleKey{Symbol: d.Symbol, StrategyKey: cfg.StrategyID, Side: d.Side}
	gateRes, err := c.gate.ShouldEmit(ctx, key, d.Price, GateSettings{
		MinInterval:       c.minInterval,
		MinPriceChangePct: cfg.MinPriceChangePct,
		ConfigHash:        c.configs.ConfigHash(d.Symbol),
	})
	if err != nil {
		return c.abort(d, "throttle gate", err), nil
	}
	if !gateRes.Allowed {
		return Outcome{Status: StatusBlocked, Reason: gateRes.Reason}, nil
	}

	c.sendAlert(ctx, d, cfg, corr)

	if !cfg.TradeEnabled {
		return Outcome{Status: StatusEmitted, Reason: ReasonTradeDisabled,
			Message: fmt.Sprintf("alert-only symbol, gate passed on %s", gateRes.Reason)}, nil
	}
	return c.runOrderPath(ctx, d, cfg, corr, gateRes)
}

func (c *Controller) runOrderPath(ctx context.Context, d Decision, cfg TradingConfig, corr string, gateRes GateResult) (Outcome, map[string]any) {
	inst, err := c.gateway.Instrument(ctx, d.Symbol)
	if err != nil {
		return c.abort(d, "instrument metadata", err), nil
	}

	qty := orderQuantity(cfg.TradeAmountUSD, d.Price, inst)
	if qty.Sign() <= 0 || (inst.MinQuantity.Sign() > 0 && qty.Cmp(inst.MinQuantity) < 0) {
		return Outcome{Status: StatusOrderSkipped, Reason: ReasonBelowMinQuantity,
			Message: fmt.Sprintf("quantity %s below instrument minimum", qty)}, nil
	}

	var posExists *bool
	if d.Side == exchange.SideSell {
		exists, perr := c.positionExists(ctx, d.Symbol)
		if perr != nil {
			return c.abort(d, "position lookup", perr), nil
		}
		posExists = &exists
	}
	if f := ValidateOrder(ValidateRequest{
		Symbol:         d.Symbol,
		Side:           d.Side,
		Quantity:       qty.InexactFloat64(),
		Price:          &d.Price,
		PositionExists: posExists,
	}); f != nil {
		return Outcome{Status: StatusBlocked, Reason: f.Reason, Message: f.Message}, f.Details
	}

	if c.breaker != nil && !c.breaker.Allow() {
		return Outcome{Status: StatusOrderSkipped, Reason: ReasonCircuitOpen}, nil
	}

	margin, err := c.margins.DecideMode(ctx, d.Symbol, cfg.Leverage, cfg.UseMargin)
	if err != nil {
		return c.abort(d, "margin decision", err), nil
	}

	limitPrice := quantizeDown(decFromFloat(d.Price), inst.PriceTick)
	placed, err := c.gateway.PlaceOrder(ctx, exchange.PlaceOrderRequest{
		Symbol:    d.Symbol,
		Side:      d.Side,
		Type:      exchange.OrderTypeLimit,
		Quantity:  qty.String(),
		Price:     limitPrice.String(),
		UseMargin: margin.UseMargin,
		Leverage:  margin.Leverage,
	})
	if err != nil {
		if c.breaker != nil {
			c.breaker.RecordFailure()
		}
		if margin.UseMargin && exchange.IsLeverageRejection(err) {
			if derr := c.margins.OnOrderResult(ctx, d.Symbol, margin.Leverage, false); derr != nil {
				logger.Errorf("leverage demotion failed for %s: %v", d.Symbol, derr)
			}
		}
		return Outcome{Status: StatusOrderSkipped, Reason: ReasonGatewayRejected,
				Message: err.Error()},
			map[string]any{"exchange_reason": string(exchange.ReasonOf(err))}
	}
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}

	entry := &model.OrderModel{
		OrderID:       placed.OrderID,
		Symbol:        d.Symbol,
		Side:          string(d.Side),
		Type:          string(exchange.OrderTypeLimit),
		Status:        string(placed.Status),
		Price:         limitPrice.InexactFloat64(),
		Quantity:      qty.InexactFloat64(),
		OrderRole:     string(exchange.RoleEntry),
		CreatedAtUnix: c.now().Unix(),
		UpdatedAtUnix: c.now().Unix(),
	}
	if err := c.saveOrder(ctx, entry); err != nil {
		return c.abort(d, "order persist", err), nil
	}

	details := map[string]any{
		"order_id":      entry.OrderID,
		"margin":        margin.UseMargin,
		"leverage":      margin.Leverage,
		"margin_reason": margin.Reason,
	}

	fill, state, err := c.poller.ConfirmFill(ctx, d.Symbol, entry.OrderID)
	if err != nil {
		return Outcome{Status: StatusOrderCreated, Reason: ReasonFillNotConfirmed,
			Message: fmt.Sprintf("fill polling interrupted: %v", err)}, details
	}
	if state != FillConfirmed {
		return Outcome{Status: StatusOrderCreated, Reason: ReasonFillNotConfirmed,
			Message: "fill not confirmed within poll attempts, retry next cycle"}, details
	}

	entry.Status = string(exchange.StatusFilled)
	entry.FilledQuantity = fill.Quantity
	if fill.Price > 0 {
		entry.Price = fill.Price
	}
	entry.UpdatedAtUnix = c.now().Unix()
	if err := c.saveOrder(ctx, entry); err != nil {
		return c.abort(d, "fill persist", err), details
	}
	if margin.UseMargin {
		if perr := c.margins.OnOrderResult(ctx, d.Symbol, margin.Leverage, true); perr != nil {
			logger.Errorf("leverage promotion failed for %s: %v", d.Symbol, perr)
		}
	}

	// Protective legs guard long exposure only. A SELL closes exposure;
	// giving it BUY siblings would price the legs backwards and reopen
	// the position the sell just exited.
	if cfg.SLTPMode == "" || d.Side == exchange.SideSell {
		return Outcome{Status: StatusOrderCreated, Reason: gateRes.Reason}, details
	}
	return c.runBracketPath(ctx, d, cfg, entry, inst, details)
}

func (c *Controller) runBracketPath(ctx context.Context, d Decision, cfg TradingConfig, entry *model.OrderModel, inst exchange.Instrument, details map[string]any) (Outcome, map[string]any) {
	mkt := MarketContext{}
	if ind, err := c.market.Indicators(ctx, d.Symbol); err != nil {
		logger.Warnf("indicators unavailable for %s, bracket falls back to percentage stops: %v", d.Symbol, err)
	} else {
		mkt = MarketContext{
			ATR:        ind.ATR,
			RSI:        ind.RSI,
			Volume:     ind.Volume,
			AvgVolume:  ind.AvgVolume,
			Resistance: ind.Resistance,
		}
	}

	res, err := c.brackets.EnsureBracket(ctx, entry, inst, cfg.SLTPMode, mkt)
	if err != nil {
		return Outcome{Status: StatusSLTPFailed, Reason: ReasonGatewayRejected, Message: err.Error()}, details
	}
	if res.Skipped {
		return Outcome{Status: StatusOrderCreated, Reason: ReasonBracketExists}, details
	}
	details["bracket_group_id"] = res.GroupID
	if res.StopLoss != nil {
		details["sl_order_id"] = res.StopLoss.OrderID
	}
	if res.TakeProfit != nil {
		details["tp_order_id"] = res.TakeProfit.OrderID
	}
	if res.Failed() {
		msg := "both bracket legs rejected"
		if res.SLErr != nil {
			msg = fmt.Sprintf("%s; sl: %v", msg, res.SLErr)
		}
		if res.TPErr != nil {
			msg = fmt.Sprintf("%s; tp: %v", msg, res.TPErr)
		}
		return Outcome{Status: StatusSLTPFailed, Reason: ReasonGatewayRejected, Message: msg}, details
	}
	out := Outcome{Status: StatusSLTPCreated, Reason: ReasonBracketPlaced}
	if res.SLErr != nil || res.TPErr != nil {
		out.Message = fmt.Sprintf("partial bracket: sl_err=%v tp_err=%v", res.SLErr, res.TPErr)
	}
	return out, details
}

// sendAlert pushes the dedup-guarded signal notification. Suppression is a
// successful no-op; notifier failures never block the trade path.
func (c *Controller) sendAlert(ctx context.Context, d Decision, cfg TradingConfig, corr string) {
	fresh, err := c.dedup.ShouldSend(ctx, d.Symbol, d.Side, cfg.StrategyID, d.Price)
	if err != nil {
		logger.Warnf("dedup check failed for %s: %v", d.Symbol, err)
		return
	}
	if !fresh {
		logger.Infow("alert suppressed", "symbol", d.Symbol, "side", string(d.Side),
			"reason", string(ReasonDuplicateAlert))
		return
	}
	msg := fmt.Sprintf("*%s %s* @ %s", d.Side, d.Symbol, decFromFloat(d.Price).String())
	if d.Reason != "" {
		msg = fmt.Sprintf("%s\n%s", msg, d.Reason)
	}
	if err := c.notifier.Send(ctx, msg, corr); err != nil {
		logger.Warnf("notification failed for %s: %v", d.Symbol, err)
	}
}

// positionExists reports whether a filled long entry is on the book for the
// symbol. Consulted only for SELL decisions.
func (c *Controller) positionExists(ctx context.Context, symbol string) (bool, error) {
	uow, err := c.store.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = uow.Rollback() }()
	orders, err := uow.Orders().ListRecent(ctx, 250)
	if err != nil {
		return false, err
	}
	for _, o := range orders {
		if o.Symbol == symbol &&
			o.OrderRole == string(exchange.RoleEntry) &&
			o.Side == string(exchange.SideBuy) &&
			o.Status == string(exchange.StatusFilled) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Controller) saveOrder(ctx context.Context, order *model.OrderModel) error {
	uow, err := c.store.Begin(ctx)
	if err != nil {
		return err
	}
	if err := uow.Orders().Save(ctx, order); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

// abort converts an unexpected collaborator failure into a blocked outcome
// for this symbol without affecting other symbols' cycles.
func (c *Controller) abort(d Decision, stage string, err error) Outcome {
	logger.Errorf("cycle aborted for %s at %s: %v", d.Symbol, stage, err)
	return Outcome{Status: StatusBlocked, Message: fmt.Sprintf("%s: %v", stage, err)}
}

// recordOutcome writes the one audit record every cycle produces.
func (c *Controller) recordOutcome(ctx context.Context, d Decision, out Outcome, details map[string]any) {
	var raw datatypes.JSON
	if len(details) > 0 {
		if buf, err := json.Marshal(details); err == nil {
			raw = datatypes.JSON(buf)
		}
	}
	rec := &model.CycleOutcomeModel{
		CorrelationID: out.CorrelationID,
		Symbol:        d.Symbol,
		Side:          string(d.Side),
		Status:        string(out.Status),
		ReasonCode:    string(out.Reason),
		Details:       raw,
		CreatedAtUnix: c.now().Unix(),
	}
	uow, err := c.store.Begin(ctx)
	if err != nil {
		logger.Errorf("outcome record begin failed: %v", err)
		return
	}
	if err := uow.Outcomes().Insert(ctx, rec); err != nil {
		_ = uow.Rollback()
		logger.Errorf("outcome record insert failed: %v", err)
		return
	}
	if err := uow.Commit(); err != nil {
		logger.Errorf("outcome record commit failed: %v", err)
		return
	}
	logger.Infow("cycle outcome",
		"symbol", d.Symbol, "side", string(d.Side),
		"status", string(out.Status), "reason", string(out.Reason),
		"correlation_id", out.CorrelationID)
}

// orderQuantity converts the configured USD stake into a lot-quantized
// base quantity.
func orderQuantity(amountUSD, price float64, inst exchange.Instrument) decimal.Decimal {
	if amountUSD <= 0 || price <= 0 {
		return decimal.Zero
	}
	raw := decFromFloat(amountUSD).Div(decFromFloat(price))
	return quantizeDown(raw, inst.QtyStep)
}
