package config

import "strings"

const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppLogPath       = "data/logs/pilotfish.log"
	defaultAppHTTPAddr      = ":9910"
	defaultAppDBPath        = "data/pilotfish.db"
	defaultExchangeName     = "binance"
	defaultMaxLeverage      = 10.0
	defaultCycleInterval    = "1m"
	defaultSignalInterval   = "60s"
	defaultFillPollAttempts = 10
	defaultFillPollInterval = "2s"
	defaultDedupTTL         = "5m"
	defaultDedupTolerance   = 0.5
	defaultBreakerThreshold = 5
	defaultBreakerTimeout   = "1m"
	defaultMaxConcurrency   = 4
	defaultWatchlistPath    = "configs/watchlist.yaml"
	defaultKlineInterval    = "1h"
	defaultKlineLookback    = 250
	defaultResistanceBars   = 20
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Controller.applyDefaults(keys)
	c.Watchlist.applyDefaults(keys)
	c.Market.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.db_path", &a.DBPath, defaultAppDBPath),
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.name", &e.Name, defaultExchangeName),
		fieldDefault{
			key:   "exchange.default_max_leverage",
			need:  func() bool { return e.DefaultMaxLeverage <= 0 },
			apply: func() { e.DefaultMaxLeverage = defaultMaxLeverage },
		},
	)
}

func (c *ControllerConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("controller.cycle_interval", &c.CycleInterval, defaultCycleInterval),
		stringFieldDefault("controller.min_signal_interval", &c.MinSignalInterval, defaultSignalInterval),
		stringFieldDefault("controller.fill_poll_interval", &c.FillPollInterval, defaultFillPollInterval),
		stringFieldDefault("controller.dedup_ttl", &c.DedupTTL, defaultDedupTTL),
		stringFieldDefault("controller.breaker_timeout", &c.BreakerTimeout, defaultBreakerTimeout),
		fieldDefault{
			key:   "controller.fill_poll_attempts",
			need:  func() bool { return c.FillPollAttempts <= 0 },
			apply: func() { c.FillPollAttempts = defaultFillPollAttempts },
		},
		fieldDefault{
			key:   "controller.dedup_tolerance_pct",
			need:  func() bool { return c.DedupTolerancePct <= 0 },
			apply: func() { c.DedupTolerancePct = defaultDedupTolerance },
		},
		fieldDefault{
			key:   "controller.breaker_threshold",
			need:  func() bool { return c.BreakerThreshold <= 0 },
			apply: func() { c.BreakerThreshold = defaultBreakerThreshold },
		},
		fieldDefault{
			key:   "controller.max_concurrent_cycles",
			need:  func() bool { return c.MaxConcurrentCycles <= 0 },
			apply: func() { c.MaxConcurrentCycles = defaultMaxConcurrency },
		},
	)
}

func (w *WatchlistConfig) applyDefaults(keys keySet) {
	if w == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("watchlist.path", &w.Path, defaultWatchlistPath),
		boolFieldDefault("watchlist.hot_reload", &w.HotReload, true),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.kline_interval", &m.KlineInterval, defaultKlineInterval),
		fieldDefault{
			key:   "market.kline_lookback",
			need:  func() bool { return m.KlineLookback <= 0 },
			apply: func() { m.KlineLookback = defaultKlineLookback },
		},
		fieldDefault{
			key:   "market.resistance_bars",
			need:  func() bool { return m.ResistanceBars <= 0 },
			apply: func() { m.ResistanceBars = defaultResistanceBars },
		},
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
