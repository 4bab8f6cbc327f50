package engine

import (
	"context"
	"fmt"
	"time"

	"pilotfish/internal/exchange"
	"pilotfish/internal/logger"
	"pilotfish/internal/store"
	"pilotfish/internal/store/model"
)

// MarginDecision is recomputed on every order; Reason is free text for the
// audit trail.
type MarginDecision struct {
	UseMargin bool
	Leverage  float64
	Reason    string
}

func spotDecision(reason string) MarginDecision {
	return MarginDecision{UseMargin: false, Leverage: 0, Reason: reason}
}

// MarginSelector decides SPOT vs MARGIN and picks leverage by probing
// upward through a fixed ladder from a verified floor. Exchanges reject
// leverage above per-instrument ceilings that are often undocumented;
// learning from confirmations and rejections avoids repeated failures.
type MarginSelector struct {
	store   store.Store
	gateway exchange.Gateway
	ladder  []float64
	seed    float64
	now     func() time.Time
}

func NewMarginSelector(st store.Store, gw exchange.Gateway, ladder []float64, seed float64) *MarginSelector {
	if len(ladder) == 0 {
		ladder = []float64{2, 3, 5, 10}
	}
	if seed <= 0 {
		seed = 2
	}
	return &MarginSelector{store: st, gateway: gw, ladder: ladder, seed: seed, now: time.Now}
}

// DecideMode fails safe to SPOT on any uncertainty: user opt-out, margin
// disabled on the instrument, or a metadata fetch error.
func (s *MarginSelector) DecideMode(ctx context.Context, symbol string, configuredLeverage float64, userWantsMargin bool) (MarginDecision, error) {
	if !userWantsMargin {
		return spotDecision("margin disabled by user"), nil
	}
	inst, err := s.gateway.Instrument(ctx, symbol)
	if err != nil {
		logger.Warnf("margin selector: instrument metadata fetch failed for %s, falling back to spot: %v", symbol, err)
		return spotDecision("instrument metadata unavailable"), nil
	}
	if !inst.MarginEnabled {
		return spotDecision("margin disabled on instrument"), nil
	}

	ceiling := configuredLeverage
	if inst.MaxLeverage > 0 && (ceiling <= 0 || inst.MaxLeverage < ceiling) {
		ceiling = inst.MaxLeverage
	}
	if ceiling < 1 {
		return spotDecision("no leverage headroom"), nil
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return MarginDecision{}, err
	}
	dec, err := s.decide(ctx, uow, symbol, ceiling)
	if err != nil {
		_ = uow.Rollback()
		return MarginDecision{}, err
	}
	if err := uow.Commit(); err != nil {
		return MarginDecision{}, err
	}
	return dec, nil
}

func (s *MarginSelector) decide(ctx context.Context, uow store.UnitOfWork, symbol string, ceiling float64) (MarginDecision, error) {
	entry, err := uow.Leverage().Get(ctx, symbol)
	if err != nil {
		return MarginDecision{}, err
	}

	if entry == nil {
		seed := s.seed
		if seed > ceiling {
			seed = ceiling
		}
		if seed < 1 {
			return spotDecision("seed leverage below 1"), nil
		}
		entry = &model.LeverageCacheModel{
			Symbol:             symbol,
			MaxWorkingLeverage: seed,
			LastUpdatedUnix:    s.now().Unix(),
		}
		if err := uow.Leverage().Save(ctx, entry); err != nil {
			return MarginDecision{}, err
		}
		return MarginDecision{UseMargin: true, Leverage: seed,
			Reason: fmt.Sprintf("seeded at conservative %gx", seed)}, nil
	}

	lev := entry.MaxWorkingLeverage
	if lev > ceiling {
		lev = ceiling
	}
	if lev < 1 {
		return spotDecision("cached leverage below 1"), nil
	}

	if entry.VerificationAttempts == 0 {
		// Unverified entries are reused as-is; no escalation until a real
		// order has proven the value works.
		return MarginDecision{UseMargin: true, Leverage: lev,
			Reason: fmt.Sprintf("reusing unverified %gx", lev)}, nil
	}

	// Verified: try the smallest ladder rung strictly above the verified
	// value that still fits under the ceiling.
	for _, rung := range s.ladder {
		if rung > entry.MaxWorkingLeverage && rung <= ceiling {
			return MarginDecision{UseMargin: true, Leverage: rung,
				Reason: fmt.Sprintf("probing %gx above verified %gx", rung, entry.MaxWorkingLeverage)}, nil
		}
	}
	return MarginDecision{UseMargin: true, Leverage: lev,
		Reason: fmt.Sprintf("holding verified %gx (at ceiling)", lev)}, nil
}

// OnOrderResult closes the feedback loop: a confirmed success at leverage
// promotes the cache entry; a rejection attributable to leverage demotes it
// to the highest ladder rung strictly below the rejected value.
func (s *MarginSelector) OnOrderResult(ctx context.Context, symbol string, leverage float64, success bool) error {
	if leverage <= 0 {
		return nil
	}
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	if err := s.applyResult(ctx, uow, symbol, leverage, success); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

func (s *MarginSelector) applyResult(ctx context.Context, uow store.UnitOfWork, symbol string, leverage float64, success bool) error {
	entry, err := uow.Leverage().Get(ctx, symbol)
	if err != nil {
		return err
	}
	if entry == nil {
		entry = &model.LeverageCacheModel{Symbol: symbol, MaxWorkingLeverage: leverage}
	}
	now := s.now().Unix()
	if success {
		if leverage > entry.MaxWorkingLeverage {
			entry.MaxWorkingLeverage = leverage
		}
		entry.VerificationAttempts++
		entry.LastUpdatedUnix = now
		logger.Infof("leverage cache: %s promoted to %gx (verifications=%d)",
			symbol, entry.MaxWorkingLeverage, entry.VerificationAttempts)
		return uow.Leverage().Save(ctx, entry)
	}

	demoted := 1.0
	for _, rung := range s.ladder {
		if rung < leverage && rung > demoted {
			demoted = rung
		}
	}
	entry.MaxWorkingLeverage = demoted
	// The demoted value has not been proven yet; treat it as unverified so
	// the selector holds it instead of stepping right back up.
	entry.VerificationAttempts = 0
	entry.LastUpdatedUnix = now
	logger.Warnf("leverage cache: %s demoted to %gx after rejection at %gx", symbol, demoted, leverage)
	return uow.Leverage().Save(ctx, entry)
}
