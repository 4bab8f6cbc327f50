package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `app:
  env: prod
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "binance", cfg.Exchange.Name)
	assert.Equal(t, 10.0, cfg.Exchange.DefaultMaxLeverage)
	assert.Equal(t, 10, cfg.Controller.FillPollAttempts)
	assert.Equal(t, time.Minute, cfg.Controller.MinSignalIntervalDuration())
	assert.Equal(t, 2*time.Second, cfg.Controller.FillPollIntervalDuration())
	assert.Equal(t, 5*time.Minute, cfg.Controller.DedupTTLDuration())
	assert.True(t, cfg.Watchlist.HotReload)
}

func TestLoad_ExplicitValuesSurviveDefaulting(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `controller:
  min_signal_interval: 5m
  fill_poll_attempts: 3
watchlist:
  hot_reload: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Controller.MinSignalIntervalDuration())
	assert.Equal(t, 3, cfg.Controller.FillPollAttempts)
	assert.False(t, cfg.Watchlist.HotReload, "explicit false is not overwritten by the default")
}

func TestLoad_IncludeMerging(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `app:
  env: base
  log_level: debug
`)
	path := writeConfig(t, dir, "config.yaml", `include:
  - base.yaml
app:
  env: main
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.App.Env, "including file wins")
	assert.Equal(t, "debug", cfg.App.LogLevel, "included values fill the gaps")
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad log level", "app:\n  log_level: loud\n"},
		{"bad duration", "controller:\n  dedup_ttl: soon\n"},
		{"telegram missing token", "notify:\n  telegram:\n    enabled: true\n    chat_id: \"42\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yaml", tc.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_IncludeCycleDetected(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include:\n  - b.yaml\n")
	writeConfig(t, dir, "b.yaml", "include:\n  - a.yaml\n")
	_, err := Load(filepath.Join(dir, "a.yaml"))
	assert.Error(t, err)
}
