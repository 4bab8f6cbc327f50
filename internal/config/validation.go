package config

import (
	"fmt"
	"strings"
	"time"
)

func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Exchange.validate(); err != nil {
		return err
	}
	if err := c.Controller.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %q", a.LogLevel)
}

func (e *ExchangeConfig) validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("exchange.name cannot be empty")
	}
	if e.DefaultMaxLeverage < 1 {
		return fmt.Errorf("exchange.default_max_leverage must be >= 1")
	}
	return nil
}

func (c *ControllerConfig) validate() error {
	for key, val := range map[string]string{
		"controller.cycle_interval":      c.CycleInterval,
		"controller.min_signal_interval": c.MinSignalInterval,
		"controller.fill_poll_interval":  c.FillPollInterval,
		"controller.dedup_ttl":           c.DedupTTL,
		"controller.breaker_timeout":     c.BreakerTimeout,
	} {
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("%s: invalid duration %q", key, val)
		}
	}
	if c.DedupTolerancePct < 0 {
		return fmt.Errorf("controller.dedup_tolerance_pct must be >= 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if !n.Telegram.Enabled {
		return nil
	}
	if strings.TrimSpace(n.Telegram.BotToken) == "" {
		return fmt.Errorf("notify.telegram.bot_token required when telegram is enabled")
	}
	if strings.TrimSpace(n.Telegram.ChatID) == "" {
		return fmt.Errorf("notify.telegram.chat_id required when telegram is enabled")
	}
	return nil
}

// Duration accessors. Validation guarantees these parse; a zero value is
// returned only for unvalidated hand-built configs.

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func (c ControllerConfig) CycleIntervalDuration() time.Duration     { return mustDuration(c.CycleInterval) }
func (c ControllerConfig) MinSignalIntervalDuration() time.Duration { return mustDuration(c.MinSignalInterval) }
func (c ControllerConfig) FillPollIntervalDuration() time.Duration  { return mustDuration(c.FillPollInterval) }
func (c ControllerConfig) DedupTTLDuration() time.Duration          { return mustDuration(c.DedupTTL) }
func (c ControllerConfig) BreakerTimeoutDuration() time.Duration    { return mustDuration(c.BreakerTimeout) }
