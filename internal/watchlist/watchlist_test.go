package watchlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validWatchlist = `symbols:
  - symbol: BTCUSDT
    alert_enabled: true
    buy_alert_enabled: true
    sell_alert_enabled: true
    trade_enabled: true
    min_price_change_pct: 1.5
    strategy_id: rsi-ma
    trade_amount_usd: 100
    sltp_mode: conservative
  - symbol: ethusdt
    alert_enabled: true
    buy_alert_enabled: true
    sell_alert_enabled: false
`

func writeWatchlist(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNew_LoadsEntries(t *testing.T) {
	w, err := New(writeWatchlist(t, validWatchlist))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, w.Symbols())

	cfg, ok := w.TradingConfig("BTCUSDT")
	require.True(t, ok)
	assert.True(t, cfg.TradeEnabled)
	assert.Equal(t, 1.5, cfg.MinPriceChangePct)
	assert.Equal(t, "conservative", cfg.SLTPMode)
	assert.Equal(t, 100.0, cfg.TradeAmountUSD)

	// lookup is case-insensitive, file symbols are normalized upper
	cfg, ok = w.TradingConfig("ethusdt")
	require.True(t, ok)
	assert.False(t, cfg.SellAlertEnabled)
	assert.Equal(t, "rsi-ma", cfg.StrategyID, "strategy id defaults when omitted")

	_, ok = w.TradingConfig("DOGEUSDT")
	assert.False(t, ok)
}

func TestNew_RejectsUnknownFields(t *testing.T) {
	_, err := New(writeWatchlist(t, `symbols:
  - symbol: BTCUSDT
    trade_enabld: true
`))
	require.Error(t, err)
}

func TestNew_RejectsInvalidMode(t *testing.T) {
	_, err := New(writeWatchlist(t, `symbols:
  - symbol: BTCUSDT
    sltp_mode: yolo
`))
	require.Error(t, err)
}

func TestNew_RejectsDuplicateSymbols(t *testing.T) {
	_, err := New(writeWatchlist(t, `symbols:
  - symbol: BTCUSDT
  - symbol: btcusdt
`))
	require.Error(t, err)
}

func TestConfigHash_StablePerEntry(t *testing.T) {
	path := writeWatchlist(t, validWatchlist)
	w, err := New(path)
	require.NoError(t, err)

	btc := w.ConfigHash("BTCUSDT")
	eth := w.ConfigHash("ETHUSDT")
	require.NotEmpty(t, btc)
	require.NotEmpty(t, eth)
	assert.NotEqual(t, btc, eth)

	// editing one symbol changes only that symbol's hash
	edited := validWatchlist + "    trade_enabled: true\n"
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))
	require.NoError(t, w.Reload())
	assert.Equal(t, btc, w.ConfigHash("BTCUSDT"))
	assert.NotEqual(t, eth, w.ConfigHash("ETHUSDT"))
}

func TestReload_KeepsSnapshotOnBadFile(t *testing.T) {
	path := writeWatchlist(t, validWatchlist)
	w, err := New(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("symbols: {broken"), 0o644))
	require.Error(t, w.Reload())

	_, ok := w.TradingConfig("BTCUSDT")
	assert.True(t, ok, "previous snapshot survives a failed reload")
}
