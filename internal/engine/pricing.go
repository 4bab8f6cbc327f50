package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	decOne     = decimal.NewFromInt(1)
	decHundred = decimal.NewFromInt(100)
)

// SLTPMode maps the configured bracket mode to its default percentage.
// Unknown modes fall back to conservative.
func sltpModePct(mode string) decimal.Decimal {
	switch mode {
	case "aggressive":
		return decimal.NewFromFloat(0.05)
	default:
		return decimal.NewFromFloat(0.03)
	}
}

func decFromFloat(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// quantizeDown floors v to the tick grid. Used for stop-loss prices
// (further from trigger) and for quantities (never exceed the fill).
func quantizeDown(v, tick decimal.Decimal) decimal.Decimal {
	if tick.Sign() <= 0 {
		return v
	}
	return v.Div(tick).Floor().Mul(tick)
}

// quantizeUp ceils v to the tick grid. Used for take-profit prices so the
// rounded target is never easier to hit than the computed one.
func quantizeUp(v, tick decimal.Decimal) decimal.Decimal {
	if tick.Sign() <= 0 {
		return v
	}
	return v.Div(tick).Ceil().Mul(tick)
}

// stopLossPrice computes the protective stop for a long fill:
// filled − ATR×multiplier when ATR is available, else filled×(1−pct).
func stopLossPrice(filled, atr, atrMult, defaultPct decimal.Decimal) decimal.Decimal {
	if atr.Sign() > 0 && atrMult.Sign() > 0 {
		return filled.Sub(atr.Mul(atrMult))
	}
	return filled.Mul(decOne.Sub(defaultPct))
}

// takeProfitPrice computes the profit target for a long fill. The base is
// filled×(1+pct); a momentum boost lifts it to the nearest resistance or a
// fixed +5%, whichever is higher.
func takeProfitPrice(filled, defaultPct decimal.Decimal, momentum bool, resistance decimal.Decimal) decimal.Decimal {
	base := filled.Mul(decOne.Add(defaultPct))
	if !momentum {
		return base
	}
	boosted := filled.Mul(decOne.Add(decimal.NewFromFloat(0.05)))
	if resistance.Sign() > 0 && resistance.Cmp(boosted) > 0 {
		boosted = resistance
	}
	if boosted.Cmp(base) > 0 {
		return boosted
	}
	return base
}
