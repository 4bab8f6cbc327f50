package app

import (
	"context"
	"fmt"

	"pilotfish/internal/config"
	"pilotfish/internal/engine"
	"pilotfish/internal/logger"
	"pilotfish/internal/scheduler"
	"pilotfish/internal/store"
	transporthttp "pilotfish/internal/transport/http"
	"pilotfish/internal/watchlist"

	"golang.org/x/sync/errgroup"
)

// App owns application-level orchestration: build the graph, then run the
// scan loop, the HTTP surface and the watchlist watcher together.
type App struct {
	cfg        *config.Config
	store      store.Store
	watchlist  *watchlist.Watchlist
	controller *engine.Controller
	scheduler  *scheduler.Scheduler
	httpServer *transporthttp.Server
}

// NewApp builds the application from config without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer func() {
		if err := a.store.Close(); err != nil {
			logger.Warnf("closing store: %v", err)
		}
	}()

	logger.Infof("pilotfish starting: env=%s symbols=%d http=%s",
		a.cfg.App.Env, len(a.watchlist.Symbols()), a.httpServer.Addr())

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.httpServer.Start(ctx); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if a.cfg.Watchlist.HotReload {
		group.Go(func() error {
			err := a.watchlist.Watch(ctx)
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("watchlist watcher: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return a.scheduler.Run(ctx)
	})
	return group.Wait()
}

// Controller exposes the controller for operational harnesses.
func (a *App) Controller() *engine.Controller {
	if a == nil {
		return nil
	}
	return a.controller
}
