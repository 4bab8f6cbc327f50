package engine

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestStopLossPrice(t *testing.T) {
	// ATR path: 50 - 2*1.5 = 47
	sl := stopLossPrice(dec("50"), dec("2"), dec("1.5"), dec("0.03"))
	assert.True(t, sl.Equal(dec("47")), "got %s", sl)

	// Percentage fallback when ATR is absent: 50 * 0.97 = 48.5
	sl = stopLossPrice(dec("50"), decimal.Zero, dec("1.5"), dec("0.03"))
	assert.True(t, sl.Equal(dec("48.5")), "got %s", sl)
}

func TestTakeProfitPrice(t *testing.T) {
	// Base conservative target: 50 * 1.03 = 51.5
	tp := takeProfitPrice(dec("50"), dec("0.03"), false, decimal.Zero)
	assert.True(t, tp.Equal(dec("51.5")), "got %s", tp)

	// Momentum boost with no resistance: 50 * 1.05 = 52.5
	tp = takeProfitPrice(dec("50"), dec("0.03"), true, decimal.Zero)
	assert.True(t, tp.Equal(dec("52.5")), "got %s", tp)

	// Resistance above the boosted level wins.
	tp = takeProfitPrice(dec("50"), dec("0.03"), true, dec("54"))
	assert.True(t, tp.Equal(dec("54")), "got %s", tp)

	// Resistance below the boosted level is ignored.
	tp = takeProfitPrice(dec("50"), dec("0.03"), true, dec("51"))
	assert.True(t, tp.Equal(dec("52.5")), "got %s", tp)

	// Aggressive base already above the boost keeps the base.
	tp = takeProfitPrice(dec("50"), dec("0.08"), true, decimal.Zero)
	assert.True(t, tp.Equal(dec("54")), "got %s", tp)
}

func TestQuantizeDirections(t *testing.T) {
	tick := dec("0.01")
	assert.True(t, quantizeDown(dec("47.009"), tick).Equal(dec("47")), "stop rounds away from the trigger")
	assert.True(t, quantizeUp(dec("51.501"), tick).Equal(dec("51.51")), "target never gets easier to hit")
	assert.True(t, quantizeDown(dec("47"), tick).Equal(dec("47")), "on-grid values are unchanged")
	assert.True(t, quantizeUp(dec("51.5"), tick).Equal(dec("51.5")))

	// A zero tick leaves the value alone.
	assert.True(t, quantizeDown(dec("47.009"), decimal.Zero).Equal(dec("47.009")))
}

func TestSLTPModePct(t *testing.T) {
	assert.True(t, sltpModePct("aggressive").Equal(dec("0.05")))
	assert.True(t, sltpModePct("conservative").Equal(dec("0.03")))
	assert.True(t, sltpModePct("bogus").Equal(dec("0.03")), "unknown modes fall back to conservative")
}

func TestDecFromFloatGuardsNonFinite(t *testing.T) {
	assert.True(t, decFromFloat(0).IsZero())
	assert.True(t, decFromFloat(math.NaN()).IsZero())
	assert.True(t, decFromFloat(math.Inf(1)).IsZero())
}
