package strategy

import (
	"fmt"
	"strings"

	"pilotfish/internal/engine"
	"pilotfish/internal/exchange"
)

// Strategy evaluates one symbol's indicator snapshot into a candidate
// decision. ok=false means no signal this cycle.
type Strategy interface {
	ID() string
	Evaluate(symbol string, ind exchange.Indicators) (engine.Decision, bool)
}

var registry = map[string]Strategy{}

func register(s Strategy) {
	registry[s.ID()] = s
}

// ForID resolves a strategy by its watchlist id.
func ForID(id string) (Strategy, error) {
	s, ok := registry[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", id)
	}
	return s, nil
}

func init() {
	register(rsiMA{})
}

// rsiMA buys oversold dips inside a long-term uptrend and sells overbought
// prints once short-term momentum rolls over.
type rsiMA struct{}

const (
	rsiOversold   = 30
	rsiOverbought = 70
)

func (rsiMA) ID() string { return "rsi-ma" }

func (rsiMA) Evaluate(symbol string, ind exchange.Indicators) (engine.Decision, bool) {
	if ind.Price <= 0 || ind.MA200 <= 0 {
		return engine.Decision{}, false
	}
	switch {
	case ind.RSI <= rsiOversold && ind.Price > ind.MA200:
		return engine.Decision{
			Symbol: symbol,
			Side:   exchange.SideBuy,
			Price:  ind.Price,
			Reason: fmt.Sprintf("RSI %.1f oversold, price above MA200", ind.RSI),
		}, true
	case ind.RSI >= rsiOverbought && ind.Price < ind.EMA10:
		return engine.Decision{
			Symbol: symbol,
			Side:   exchange.SideSell,
			Price:  ind.Price,
			Reason: fmt.Sprintf("RSI %.1f overbought, price below EMA10", ind.RSI),
		}, true
	}
	return engine.Decision{}, false
}
