package scheduler

import (
	"context"
	"time"

	"pilotfish/internal/engine"
	"pilotfish/internal/exchange"
	"pilotfish/internal/logger"
	"pilotfish/internal/strategy"

	"golang.org/x/sync/errgroup"
)

// SymbolSource is the watchlist surface the scheduler needs: the symbols to
// scan plus their per-symbol settings.
type SymbolSource interface {
	engine.ConfigSource
	Symbols() []string
}

// Options tune the cycle loop.
type Options struct {
	Interval       time.Duration // one scan per interval; default 1m
	MaxConcurrency int           // parallel symbols per scan; default 4
	PurgeEvery     int           // dedup purge every N scans; default 10
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = time.Minute
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 4
	}
	if o.PurgeEvery <= 0 {
		o.PurgeEvery = 10
	}
	return o
}

// Scheduler drives periodic decision cycles across the watchlist. Distinct
// symbols run in parallel; a symbol is never scanned concurrently with
// itself because each scan finishes before the next begins.
type Scheduler struct {
	controller *engine.Controller
	symbols    SymbolSource
	market     exchange.MarketData
	dedup      *engine.DedupCache
	opts       Options
}

func New(ctl *engine.Controller, symbols SymbolSource, market exchange.MarketData, dedup *engine.DedupCache, opts Options) *Scheduler {
	return &Scheduler{
		controller: ctl,
		symbols:    symbols,
		market:     market,
		dedup:      dedup,
		opts:       opts.withDefaults(),
	}
}

// Run blocks until ctx is done. The first scan fires immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	logger.Infof("scheduler started: interval=%s concurrency=%d", s.opts.Interval, s.opts.MaxConcurrency)
	scans := 0
	for {
		s.scan(ctx)
		scans++
		if scans%s.opts.PurgeEvery == 0 && s.dedup != nil {
			s.dedup.Purge(ctx)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) scan(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrency)
	for _, symbol := range s.symbols.Symbols() {
		symbol := symbol
		g.Go(func() error {
			s.scanSymbol(gctx, symbol)
			return nil
		})
	}
	_ = g.Wait()
}

// scanSymbol evaluates one symbol and hands any candidate decision to the
// controller. Failures are per-symbol; they never abort the scan.
func (s *Scheduler) scanSymbol(ctx context.Context, symbol string) {
	cfg, ok := s.symbols.TradingConfig(symbol)
	if !ok || !cfg.AlertEnabled {
		return
	}
	strat, err := strategy.ForID(cfg.StrategyID)
	if err != nil {
		logger.Warnf("scan %s: %v", symbol, err)
		return
	}
	ind, err := s.market.Indicators(ctx, symbol)
	if err != nil {
		logger.Warnf("scan %s: indicators failed: %v", symbol, err)
		return
	}
	decision, fired := strat.Evaluate(symbol, ind)
	if !fired {
		return
	}
	out := s.controller.RunCycle(ctx, decision)
	logger.Debugf("scan %s: %s %s (%s)", symbol, out.Status, out.Reason, out.CorrelationID)
}
