package engine

import (
	"context"
	"errors"
	"testing"

	"pilotfish/internal/exchange"
	"pilotfish/internal/store"
	"pilotfish/internal/store/memory"
	"pilotfish/internal/store/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func marginInstrument(maxLev float64) exchange.Instrument {
	return exchange.Instrument{Symbol: "BTCUSDT", MarginEnabled: true, MaxLeverage: maxLev}
}

func seedLeverage(t *testing.T, st store.Store, entry *model.LeverageCacheModel) {
	t.Helper()
	uow, err := st.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, uow.Leverage().Save(context.Background(), entry))
	require.NoError(t, uow.Commit())
}

func cachedLeverage(t *testing.T, st store.Store, symbol string) *model.LeverageCacheModel {
	t.Helper()
	uow, err := st.Begin(context.Background())
	require.NoError(t, err)
	defer func() { _ = uow.Rollback() }()
	entry, err := uow.Leverage().Get(context.Background(), symbol)
	require.NoError(t, err)
	return entry
}

func TestDecideMode_SpotFallbacks(t *testing.T) {
	st := memory.NewStore()

	t.Run("user opt-out", func(t *testing.T) {
		gw := new(MockGateway)
		sel := NewMarginSelector(st, gw, nil, 0)
		dec, err := sel.DecideMode(context.Background(), "BTCUSDT", 10, false)
		require.NoError(t, err)
		assert.False(t, dec.UseMargin)
		gw.AssertNotCalled(t, "Instrument", mock.Anything, mock.Anything)
	})

	t.Run("instrument fetch error", func(t *testing.T) {
		gw := new(MockGateway)
		gw.On("Instrument", mock.Anything, "BTCUSDT").
			Return(exchange.Instrument{}, errors.New("timeout"))
		sel := NewMarginSelector(st, gw, nil, 0)
		dec, err := sel.DecideMode(context.Background(), "BTCUSDT", 10, true)
		require.NoError(t, err, "metadata failures degrade to spot, not error")
		assert.False(t, dec.UseMargin)
	})

	t.Run("margin disabled on instrument", func(t *testing.T) {
		gw := new(MockGateway)
		gw.On("Instrument", mock.Anything, "BTCUSDT").
			Return(exchange.Instrument{Symbol: "BTCUSDT", MarginEnabled: false}, nil)
		sel := NewMarginSelector(st, gw, nil, 0)
		dec, err := sel.DecideMode(context.Background(), "BTCUSDT", 10, true)
		require.NoError(t, err)
		assert.False(t, dec.UseMargin)
	})
}

func TestDecideMode_SeedsAtLadderFloor(t *testing.T) {
	st := memory.NewStore()
	gw := new(MockGateway)
	gw.On("Instrument", mock.Anything, "BTCUSDT").Return(marginInstrument(10), nil)

	sel := NewMarginSelector(st, gw, nil, 0)
	dec, err := sel.DecideMode(context.Background(), "BTCUSDT", 10, true)
	require.NoError(t, err)
	assert.True(t, dec.UseMargin)
	assert.Equal(t, 2.0, dec.Leverage)

	entry := cachedLeverage(t, st, "BTCUSDT")
	require.NotNil(t, entry)
	assert.Equal(t, 2.0, entry.MaxWorkingLeverage)
	assert.Equal(t, 0, entry.VerificationAttempts)
}

func TestDecideMode_UnverifiedEntryReusedAsIs(t *testing.T) {
	st := memory.NewStore()
	seedLeverage(t, st, &model.LeverageCacheModel{Symbol: "BTCUSDT", MaxWorkingLeverage: 3, VerificationAttempts: 0})
	gw := new(MockGateway)
	gw.On("Instrument", mock.Anything, "BTCUSDT").Return(marginInstrument(10), nil)

	sel := NewMarginSelector(st, gw, nil, 0)
	dec, err := sel.DecideMode(context.Background(), "BTCUSDT", 10, true)
	require.NoError(t, err)
	assert.Equal(t, 3.0, dec.Leverage, "no escalation until the cached value is proven")
}

func TestDecideMode_VerifiedEntryProbesNextRung(t *testing.T) {
	st := memory.NewStore()
	seedLeverage(t, st, &model.LeverageCacheModel{Symbol: "BTCUSDT", MaxWorkingLeverage: 3, VerificationAttempts: 2})
	gw := new(MockGateway)
	gw.On("Instrument", mock.Anything, "BTCUSDT").Return(marginInstrument(10), nil)

	sel := NewMarginSelector(st, gw, nil, 0)
	dec, err := sel.DecideMode(context.Background(), "BTCUSDT", 10, true)
	require.NoError(t, err)
	assert.Equal(t, 5.0, dec.Leverage)
}

func TestDecideMode_NeverExceedsCeiling(t *testing.T) {
	st := memory.NewStore()
	seedLeverage(t, st, &model.LeverageCacheModel{Symbol: "BTCUSDT", MaxWorkingLeverage: 5, VerificationAttempts: 1})
	gw := new(MockGateway)
	// instrument allows 10x but the user configured 5x
	gw.On("Instrument", mock.Anything, "BTCUSDT").Return(marginInstrument(10), nil)

	sel := NewMarginSelector(st, gw, nil, 0)
	dec, err := sel.DecideMode(context.Background(), "BTCUSDT", 5, true)
	require.NoError(t, err)
	assert.Equal(t, 5.0, dec.Leverage, "verified value at the ceiling holds")

	// instrument cap below the cached value clamps the decision
	gw2 := new(MockGateway)
	gw2.On("Instrument", mock.Anything, "BTCUSDT").Return(marginInstrument(3), nil)
	sel2 := NewMarginSelector(st, gw2, nil, 0)
	dec, err = sel2.DecideMode(context.Background(), "BTCUSDT", 10, true)
	require.NoError(t, err)
	assert.LessOrEqual(t, dec.Leverage, 3.0)
}

func TestOnOrderResult_PromotionAndDemotion(t *testing.T) {
	st := memory.NewStore()
	seedLeverage(t, st, &model.LeverageCacheModel{Symbol: "BTCUSDT", MaxWorkingLeverage: 2})
	sel := NewMarginSelector(st, new(MockGateway), nil, 0)

	require.NoError(t, sel.OnOrderResult(context.Background(), "BTCUSDT", 3, true))
	entry := cachedLeverage(t, st, "BTCUSDT")
	assert.Equal(t, 3.0, entry.MaxWorkingLeverage)
	assert.Equal(t, 1, entry.VerificationAttempts)

	// rejection at 5x drops to the highest rung strictly below 5
	require.NoError(t, sel.OnOrderResult(context.Background(), "BTCUSDT", 5, false))
	entry = cachedLeverage(t, st, "BTCUSDT")
	assert.Equal(t, 3.0, entry.MaxWorkingLeverage)
	assert.Equal(t, 0, entry.VerificationAttempts, "demoted value is unverified again")

	// rejection at the ladder floor falls back to 1x
	require.NoError(t, sel.OnOrderResult(context.Background(), "BTCUSDT", 2, false))
	entry = cachedLeverage(t, st, "BTCUSDT")
	assert.Equal(t, 1.0, entry.MaxWorkingLeverage)
}

func TestOnOrderResult_SuccessNeverLowersCache(t *testing.T) {
	st := memory.NewStore()
	seedLeverage(t, st, &model.LeverageCacheModel{Symbol: "BTCUSDT", MaxWorkingLeverage: 5, VerificationAttempts: 1})
	sel := NewMarginSelector(st, new(MockGateway), nil, 0)

	require.NoError(t, sel.OnOrderResult(context.Background(), "BTCUSDT", 3, true))
	entry := cachedLeverage(t, st, "BTCUSDT")
	assert.Equal(t, 5.0, entry.MaxWorkingLeverage)
	assert.Equal(t, 2, entry.VerificationAttempts)
}
