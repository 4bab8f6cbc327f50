package engine

import (
	"context"
	"time"

	"pilotfish/internal/exchange"
	"pilotfish/internal/logger"
)

// RetryPolicy is a bounded polling schedule: at most MaxAttempts queries
// with Interval between them. The ceiling keeps one symbol's confirmation
// from starving the cycle.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 10
	}
	if p.Interval <= 0 {
		p.Interval = 2 * time.Second
	}
	return p
}

// FillState is an explicit result: "not yet filled" is an expected outcome,
// not an error.
type FillState int

const (
	FillNotConfirmed FillState = iota
	FillConfirmed
)

// ConfirmedFill carries the fill facts a bracket needs.
type ConfirmedFill struct {
	Price    float64
	Quantity float64
}

// FillPoller confirms that an entry order reached a terminal filled state.
type FillPoller struct {
	gateway exchange.Gateway
	policy  RetryPolicy
	history time.Duration              // lookback for the historical fallback
	sleep   func(context.Context, time.Duration) error
}

func NewFillPoller(gw exchange.Gateway, policy RetryPolicy) *FillPoller {
	return &FillPoller{
		gateway: gw,
		policy:  policy.withDefaults(),
		history: 24 * time.Hour,
		sleep:   sleepCtx,
	}
}

// ConfirmFill polls open orders, falling back to order history, until the
// order reports status FILLED with cumulative filled quantity > 0. An order
// visible in neither view is treated as not-yet-visible and retried.
// Exhausting attempts returns FillNotConfirmed with a nil error; the caller
// must not proceed to bracket creation.
func (p *FillPoller) ConfirmFill(ctx context.Context, symbol, orderID string) (ConfirmedFill, FillState, error) {
	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		order, found := p.lookup(ctx, symbol, orderID)
		if found {
			if order.Status == exchange.StatusFilled && order.FilledQuantity > 0 {
				return ConfirmedFill{Price: order.Price, Quantity: order.FilledQuantity}, FillConfirmed, nil
			}
			logger.Debugf("fill poller: %s order %s attempt %d/%d status=%s filled=%v, keep polling",
				symbol, orderID, attempt, p.policy.MaxAttempts, order.Status, order.FilledQuantity)
		} else {
			logger.Debugf("fill poller: %s order %s not visible yet (attempt %d/%d)",
				symbol, orderID, attempt, p.policy.MaxAttempts)
		}
		if attempt == p.policy.MaxAttempts {
			break
		}
		if err := p.sleep(ctx, p.policy.Interval); err != nil {
			return ConfirmedFill{}, FillNotConfirmed, err
		}
	}
	return ConfirmedFill{}, FillNotConfirmed, nil
}

// lookup checks open orders first, then recent history. Gateway errors are
// logged and treated as "not visible" so polling stays bounded by attempts.
func (p *FillPoller) lookup(ctx context.Context, symbol, orderID string) (exchange.Order, bool) {
	open, err := p.gateway.OpenOrders(ctx, symbol)
	if err != nil {
		logger.Warnf("fill poller: open orders query failed for %s: %v", symbol, err)
	} else {
		for _, o := range open {
			if o.OrderID == orderID {
				return o, true
			}
		}
	}
	since := time.Now().Add(-p.history)
	hist, err := p.gateway.OrderHistory(ctx, symbol, since)
	if err != nil {
		logger.Warnf("fill poller: order history query failed for %s: %v", symbol, err)
		return exchange.Order{}, false
	}
	for _, o := range hist {
		if o.OrderID == orderID {
			return o, true
		}
	}
	return exchange.Order{}, false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
