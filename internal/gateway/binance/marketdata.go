package binance

import (
	"context"
	"fmt"

	"pilotfish/internal/exchange"

	"github.com/adshao/go-binance/v2"
	"github.com/markcheno/go-talib"
)

const (
	rsiPeriod    = 14
	atrPeriod    = 14
	emaFast      = 10
	smaMid       = 50
	smaSlow      = 200
	avgVolumeWin = 20
)

// MarketConfig tunes the kline window backing the indicator snapshot.
type MarketConfig struct {
	KlineInterval  string
	KlineLookback  int
	ResistanceBars int
}

func (c MarketConfig) withDefaults() MarketConfig {
	if c.KlineInterval == "" {
		c.KlineInterval = "1h"
	}
	if c.KlineLookback < smaSlow+atrPeriod {
		c.KlineLookback = 250
	}
	if c.ResistanceBars <= 0 {
		c.ResistanceBars = 20
	}
	return c
}

// Market implements exchange.MarketData from binance klines.
type Market struct {
	api *binance.Client
	cfg MarketConfig
}

func NewMarket(client *Client, cfg MarketConfig) *Market {
	return &Market{api: client.api, cfg: cfg.withDefaults()}
}

// Indicators computes the snapshot from closed candles; the still-forming
// last candle is dropped so values do not flicker intra-bar.
func (m *Market) Indicators(ctx context.Context, symbol string) (exchange.Indicators, error) {
	kls, err := m.api.NewKlinesService().
		Symbol(symbol).
		Interval(m.cfg.KlineInterval).
		Limit(m.cfg.KlineLookback + 1).
		Do(ctx)
	if err != nil {
		return exchange.Indicators{}, mapError(err)
	}
	if len(kls) > 1 {
		kls = kls[:len(kls)-1]
	}
	if len(kls) < smaSlow {
		return exchange.Indicators{}, fmt.Errorf("%s: %d candles, need %d for slow MA", symbol, len(kls), smaSlow)
	}

	closes := make([]float64, len(kls))
	highs := make([]float64, len(kls))
	lows := make([]float64, len(kls))
	volumes := make([]float64, len(kls))
	for i, k := range kls {
		closes[i] = parseFloat(k.Close)
		highs[i] = parseFloat(k.High)
		lows[i] = parseFloat(k.Low)
		volumes[i] = parseFloat(k.Volume)
	}

	last := len(closes) - 1
	rsi := talib.Rsi(closes, rsiPeriod)
	ma50 := talib.Sma(closes, smaMid)
	ma200 := talib.Sma(closes, smaSlow)
	ema10 := talib.Ema(closes, emaFast)
	atr := talib.Atr(highs, lows, closes, atrPeriod)

	return exchange.Indicators{
		Price:      closes[last],
		RSI:        rsi[last],
		MA50:       ma50[last],
		MA200:      ma200[last],
		EMA10:      ema10[last],
		ATR:        atr[last],
		Volume:     volumes[last],
		AvgVolume:  average(volumes[maxInt(0, len(volumes)-avgVolumeWin):]),
		Resistance: recentHigh(highs, m.cfg.ResistanceBars),
	}, nil
}

// recentHigh is the swing high over the lookback window, excluding the
// latest bar so a fresh breakout does not become its own resistance.
func recentHigh(highs []float64, bars int) float64 {
	end := len(highs) - 1
	start := end - bars
	if start < 0 {
		start = 0
	}
	high := 0.0
	for _, h := range highs[start:end] {
		if h > high {
			high = h
		}
	}
	return high
}

func average(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
