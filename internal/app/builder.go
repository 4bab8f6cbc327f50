package app

import (
	"context"
	"fmt"

	"pilotfish/internal/config"
	"pilotfish/internal/engine"
	"pilotfish/internal/exchange"
	binancegw "pilotfish/internal/gateway/binance"
	"pilotfish/internal/gateway/notifier"
	"pilotfish/internal/logger"
	"pilotfish/internal/pkg/circuit"
	"pilotfish/internal/scheduler"
	"pilotfish/internal/store"
	"pilotfish/internal/store/sqlite"
	transporthttp "pilotfish/internal/transport/http"
	"pilotfish/internal/watchlist"
)

// AppBuilder assembles the dependency graph. The fn fields exist so tests
// can substitute fakes for the pieces that talk to the outside world.
type AppBuilder struct {
	cfg *config.Config

	storeFn    func(*config.Config) (store.Store, error)
	gatewayFn  func(*config.Config) (exchange.Gateway, exchange.MarketData, error)
	notifierFn func(*config.Config) notifier.Notifier
}

type AppBuilderOption func(*AppBuilder)

func WithStore(st store.Store) AppBuilderOption {
	return func(b *AppBuilder) {
		b.storeFn = func(*config.Config) (store.Store, error) { return st, nil }
	}
}

func WithGateway(gw exchange.Gateway, md exchange.MarketData) AppBuilderOption {
	return func(b *AppBuilder) {
		b.gatewayFn = func(*config.Config) (exchange.Gateway, exchange.MarketData, error) { return gw, md, nil }
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		storeFn:    buildStore,
		gatewayFn:  buildGateway,
		notifierFn: buildNotifier,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg
	st, err := b.storeFn(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	gw, md, err := b.gatewayFn(cfg)
	if err != nil {
		return nil, fmt.Errorf("building gateway: %w", err)
	}

	wl, err := watchlist.New(cfg.Watchlist.Path)
	if err != nil {
		return nil, fmt.Errorf("loading watchlist: %w", err)
	}

	poller := engine.NewFillPoller(gw, engine.RetryPolicy{
		MaxAttempts: cfg.Controller.FillPollAttempts,
		Interval:    cfg.Controller.FillPollIntervalDuration(),
	})
	dedup := engine.NewDedupCache(st, engine.DedupSettings{
		TTL:          cfg.Controller.DedupTTLDuration(),
		TolerancePct: cfg.Controller.DedupTolerancePct,
	})
	breaker := circuit.NewBreaker("order-gateway",
		cfg.Controller.BreakerThreshold, cfg.Controller.BreakerTimeoutDuration())

	controller := engine.NewController(engine.ControllerParams{
		Store:             st,
		Gateway:           gw,
		Market:            md,
		Configs:           wl,
		Notifier:          b.notifierFn(cfg),
		Gate:              engine.NewThrottleGate(st),
		Poller:            poller,
		Brackets:          engine.NewBracketCreator(st, gw, engine.BracketSettings{}),
		Margins:           engine.NewMarginSelector(st, gw, nil, 0),
		Dedup:             dedup,
		Breaker:           breaker,
		MinSignalInterval: cfg.Controller.MinSignalIntervalDuration(),
	})
	if cfg.Controller.KillSwitch {
		controller.EngageKill()
		logger.Warnf("kill switch engaged from config")
	}

	sched := scheduler.New(controller, wl, md, dedup, scheduler.Options{
		Interval:       cfg.Controller.CycleIntervalDuration(),
		MaxConcurrency: cfg.Controller.MaxConcurrentCycles,
	})

	httpServer, err := transporthttp.NewServer(transporthttp.ServerConfig{
		Addr:       cfg.App.HTTPAddr,
		Store:      st,
		Controller: controller,
	})
	if err != nil {
		return nil, fmt.Errorf("building http server: %w", err)
	}

	return &App{
		cfg:        cfg,
		store:      st,
		watchlist:  wl,
		controller: controller,
		scheduler:  sched,
		httpServer: httpServer,
	}, nil
}

func buildStore(cfg *config.Config) (store.Store, error) {
	return sqlite.NewSqliteStore(cfg.App.DBPath)
}

func buildGateway(cfg *config.Config) (exchange.Gateway, exchange.MarketData, error) {
	if cfg.Exchange.Name != "binance" {
		return nil, nil, fmt.Errorf("unsupported exchange %q", cfg.Exchange.Name)
	}
	client := binancegw.NewClient(binancegw.Config{
		APIKey:             cfg.Exchange.APIKey,
		APISecret:          cfg.Exchange.APISecret,
		Testnet:            cfg.Exchange.Testnet,
		DefaultMaxLeverage: cfg.Exchange.DefaultMaxLeverage,
	})
	market := binancegw.NewMarket(client, binancegw.MarketConfig{
		KlineInterval:  cfg.Market.KlineInterval,
		KlineLookback:  cfg.Market.KlineLookback,
		ResistanceBars: cfg.Market.ResistanceBars,
	})
	return client, market, nil
}

func buildNotifier(cfg *config.Config) notifier.Notifier {
	tg := cfg.Notify.Telegram
	if !tg.Enabled {
		return notifier.Nop{}
	}
	return notifier.NewTelegram(tg.BotToken, tg.ChatID)
}
