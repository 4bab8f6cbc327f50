package engine

import (
	"fmt"
	"math"

	"pilotfish/internal/exchange"
	"pilotfish/internal/logger"
)

// Prices at or above this are treated as garbage input, not market data.
const maxReasonablePrice = 1e12

// InvariantFailure is a value object describing the first violated
// pre-trade rule. Produced, logged once, never stored.
type InvariantFailure struct {
	Reason  ReasonCode
	Message string
	Details map[string]any
}

// ValidateRequest carries the inputs of a pre-trade invariant check.
// Optional fields are pointers; nil means "not supplied by this context".
type ValidateRequest struct {
	Symbol         string
	Side           exchange.Side
	Quantity       float64
	Price          *float64
	TPSLRequested  bool
	FilledPrice    *float64
	FilledQty      *float64
	PositionExists *bool
}

// ValidateOrder runs the fail-fast pre-trade checks and returns the first
// violated rule, or nil. Pure apart from one structured log line per
// failure.
func ValidateOrder(req ValidateRequest) *InvariantFailure {
	if req.Symbol == "" {
		return fail(ReasonInvalidSymbol, "symbol must not be empty", map[string]any{})
	}
	if !req.Side.Valid() {
		return fail(ReasonInvalidSide, fmt.Sprintf("side must be BUY or SELL, got %q", req.Side),
			map[string]any{"symbol": req.Symbol, "side": string(req.Side)})
	}
	if req.Quantity <= 0 || !finite(req.Quantity) {
		return fail(ReasonInvalidQuantity, fmt.Sprintf("quantity must be > 0, got %v", req.Quantity),
			map[string]any{"symbol": req.Symbol, "quantity": req.Quantity})
	}
	if req.Price != nil {
		p := *req.Price
		if !finite(p) || p < 0 || p >= maxReasonablePrice {
			return fail(ReasonInvalidPrice, fmt.Sprintf("price out of range: %v", p),
				map[string]any{"symbol": req.Symbol, "price": p})
		}
	}
	if req.TPSLRequested {
		if req.FilledPrice == nil || !finite(*req.FilledPrice) || *req.FilledPrice <= 0 {
			return fail(ReasonMissingFill, "cannot bracket an unconfirmed fill: filled price missing or not positive",
				map[string]any{"symbol": req.Symbol})
		}
		if req.FilledQty == nil || !finite(*req.FilledQty) || *req.FilledQty <= 0 {
			return fail(ReasonMissingFill, "cannot bracket an unconfirmed fill: filled quantity missing or not positive",
				map[string]any{"symbol": req.Symbol})
		}
	}
	if req.Side == exchange.SideSell && req.PositionExists != nil && !*req.PositionExists {
		return fail(ReasonNoPosition, "sell requested but no position exists",
			map[string]any{"symbol": req.Symbol})
	}
	return nil
}

func fail(reason ReasonCode, msg string, details map[string]any) *InvariantFailure {
	logger.Warnw("invariant violation", "reason", string(reason), "message", msg, "details", details)
	return &InvariantFailure{Reason: reason, Message: msg, Details: details}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
