package engine

import (
	"context"
	"time"

	"pilotfish/internal/exchange"
	"pilotfish/internal/logger"
	"pilotfish/internal/store"
	"pilotfish/internal/store/model"

	"github.com/shopspring/decimal"
)

// ThrottleKey identifies one independently gated signal stream. Opposite
// sides of the same symbol gate independently.
type ThrottleKey struct {
	Symbol      string
	StrategyKey string
	Side        exchange.Side
}

// GateSettings are the admission knobs in force for one ShouldEmit call.
type GateSettings struct {
	MinInterval       time.Duration
	MinPriceChangePct float64 // 0 disables the price gate
	ConfigHash        string
}

type GateResult struct {
	Allowed bool
	Reason  ReasonCode
}

// ThrottleGate decides whether a freshly computed signal may fire, based on
// the persisted last-signal snapshot per key. Each decision is one
// check-then-set transaction.
type ThrottleGate struct {
	store store.Store
	now   func() time.Time
}

func NewThrottleGate(st store.Store) *ThrottleGate {
	return &ThrottleGate{store: st, now: time.Now}
}

// ShouldEmit applies, in order: first-signal, config-change, forced-signal,
// time gate, price gate. On allow the record baseline is overwritten in the
// same transaction.
func (g *ThrottleGate) ShouldEmit(ctx context.Context, key ThrottleKey, price float64, set GateSettings) (GateResult, error) {
	uow, err := g.store.Begin(ctx)
	if err != nil {
		return GateResult{}, err
	}
	res, err := g.decide(ctx, uow, key, price, set)
	if err != nil {
		_ = uow.Rollback()
		return GateResult{}, err
	}
	if !res.Allowed {
		_ = uow.Rollback()
		return res, nil
	}
	if err := uow.Commit(); err != nil {
		return GateResult{}, err
	}
	return res, nil
}

func (g *ThrottleGate) decide(ctx context.Context, uow store.UnitOfWork, key ThrottleKey, price float64, set GateSettings) (GateResult, error) {
	now := g.now()
	rec, err := uow.Throttles().Get(ctx, key.Symbol, key.StrategyKey, string(key.Side))
	if err != nil {
		return GateResult{}, err
	}

	if rec == nil {
		rec = &model.ThrottleRecordModel{
			Symbol:      key.Symbol,
			StrategyKey: key.StrategyKey,
			Side:        string(key.Side),
		}
		g.overwrite(rec, price, now, set.ConfigHash)
		if err := uow.Throttles().Save(ctx, rec); err != nil {
			return GateResult{}, err
		}
		return GateResult{Allowed: true, Reason: ReasonFirstSignal}, nil
	}

	if rec.ConfigHash != set.ConfigHash {
		// A configuration change resets the baseline and burns its one
		// forced emission right here, so exactly one signal passes per
		// hash change.
		logger.Infof("throttle: config change for %s/%s/%s, resetting baseline", key.Symbol, key.StrategyKey, key.Side)
		g.overwrite(rec, price, now, set.ConfigHash)
		rec.ForceNextSignal = false
		if err := uow.Throttles().Save(ctx, rec); err != nil {
			return GateResult{}, err
		}
		return GateResult{Allowed: true, Reason: ReasonConfigChange}, nil
	}

	if rec.ForceNextSignal {
		g.overwrite(rec, price, now, set.ConfigHash)
		rec.ForceNextSignal = false
		if err := uow.Throttles().Save(ctx, rec); err != nil {
			return GateResult{}, err
		}
		return GateResult{Allowed: true, Reason: ReasonForcedSignal}, nil
	}

	// Time gate first; it short-circuits the price gate.
	if set.MinInterval > 0 {
		elapsed := now.Sub(time.Unix(rec.LastTimeUnix, 0))
		if elapsed < set.MinInterval {
			return GateResult{Allowed: false, Reason: ReasonTimeGate}, nil
		}
	}

	if set.MinPriceChangePct > 0 {
		change := priceChangePct(rec.LastPrice, price)
		threshold := decimal.NewFromFloat(set.MinPriceChangePct)
		// >= by contract: a change of exactly the threshold passes.
		if change.Cmp(threshold) < 0 {
			return GateResult{Allowed: false, Reason: ReasonPriceGate}, nil
		}
	}

	g.overwrite(rec, price, now, set.ConfigHash)
	if err := uow.Throttles().Save(ctx, rec); err != nil {
		return GateResult{}, err
	}
	return GateResult{Allowed: true, Reason: ReasonPriceChange}, nil
}

// ForceNext arms the one-shot override for a key, creating the record if
// needed. Used by manual operator commands.
func (g *ThrottleGate) ForceNext(ctx context.Context, key ThrottleKey) error {
	uow, err := g.store.Begin(ctx)
	if err != nil {
		return err
	}
	rec, err := uow.Throttles().Get(ctx, key.Symbol, key.StrategyKey, string(key.Side))
	if err != nil {
		_ = uow.Rollback()
		return err
	}
	if rec == nil {
		rec = &model.ThrottleRecordModel{
			Symbol:      key.Symbol,
			StrategyKey: key.StrategyKey,
			Side:        string(key.Side),
		}
	}
	rec.ForceNextSignal = true
	rec.UpdatedAtUnix = g.now().Unix()
	if err := uow.Throttles().Save(ctx, rec); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

func (g *ThrottleGate) overwrite(rec *model.ThrottleRecordModel, price float64, now time.Time, hash string) {
	rec.LastPrice = price
	rec.LastTimeUnix = now.Unix()
	rec.ConfigHash = hash
	rec.UpdatedAtUnix = now.Unix()
}

// priceChangePct returns |cur-last|/last*100 as a decimal so threshold
// comparisons are exact at the boundary.
func priceChangePct(last, cur float64) decimal.Decimal {
	l := decimal.NewFromFloat(last)
	if l.IsZero() {
		return decimal.NewFromInt(int64(maxReasonablePrice))
	}
	return decimal.NewFromFloat(cur).Sub(l).Div(l).Abs().Mul(decHundred)
}
