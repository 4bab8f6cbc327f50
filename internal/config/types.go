package config

import "strings"

// Config is the full pilotfish configuration tree.
type Config struct {
	App        AppConfig        `toml:"app"`
	Exchange   ExchangeConfig   `toml:"exchange"`
	Controller ControllerConfig `toml:"controller"`
	Watchlist  WatchlistConfig  `toml:"watchlist"`
	Market     MarketConfig     `toml:"market"`
	Notify     NotifyConfig     `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
	DBPath   string `toml:"db_path"`
}

// ExchangeConfig holds venue credentials and per-venue overrides.
type ExchangeConfig struct {
	Name               string  `toml:"name"`
	APIKey             string  `toml:"api_key"`
	APISecret          string  `toml:"api_secret"`
	Testnet            bool    `toml:"testnet"`
	DefaultMaxLeverage float64 `toml:"default_max_leverage"`
}

// ControllerConfig tunes the decision cycle: gate windows, fill polling,
// dedup, and the order-gateway breaker.
type ControllerConfig struct {
	CycleInterval       string  `toml:"cycle_interval"`
	MinSignalInterval   string  `toml:"min_signal_interval"`
	FillPollAttempts    int     `toml:"fill_poll_attempts"`
	FillPollInterval    string  `toml:"fill_poll_interval"`
	DedupTTL            string  `toml:"dedup_ttl"`
	DedupTolerancePct   float64 `toml:"dedup_tolerance_pct"`
	BreakerThreshold    int     `toml:"breaker_threshold"`
	BreakerTimeout      string  `toml:"breaker_timeout"`
	MaxConcurrentCycles int     `toml:"max_concurrent_cycles"`
	KillSwitch          bool    `toml:"kill_switch"`
}

type WatchlistConfig struct {
	Path      string `toml:"path"`
	HotReload bool   `toml:"hot_reload"`
}

// MarketConfig drives the indicator snapshot: which kline interval to pull
// and how much history to feed the indicator window.
type MarketConfig struct {
	KlineInterval  string `toml:"kline_interval"`
	KlineLookback  int    `toml:"kline_lookback"`
	ResistanceBars int    `toml:"resistance_bars"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet tracks which field paths were explicitly set in the config files,
// so defaults never clobber intentional zero values.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault is one field's defaulting rule.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
