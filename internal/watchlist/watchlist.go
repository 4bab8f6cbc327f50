package watchlist

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"pilotfish/internal/engine"
	"pilotfish/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Entry is one symbol's trading settings as written in the watchlist file.
type Entry struct {
	Symbol            string  `yaml:"symbol" json:"symbol"`
	AlertEnabled      bool    `yaml:"alert_enabled" json:"alert_enabled"`
	BuyAlertEnabled   bool    `yaml:"buy_alert_enabled" json:"buy_alert_enabled"`
	SellAlertEnabled  bool    `yaml:"sell_alert_enabled" json:"sell_alert_enabled"`
	TradeEnabled      bool    `yaml:"trade_enabled" json:"trade_enabled"`
	MinPriceChangePct float64 `yaml:"min_price_change_pct" json:"min_price_change_pct"`
	StrategyID        string  `yaml:"strategy_id" json:"strategy_id"`
	TradeAmountUSD    float64 `yaml:"trade_amount_usd" json:"trade_amount_usd"`
	SLTPMode          string  `yaml:"sltp_mode" json:"sltp_mode"`
	UseMargin         bool    `yaml:"use_margin" json:"use_margin"`
	Leverage          float64 `yaml:"leverage" json:"leverage"`
}

type fileFormat struct {
	Symbols []Entry `yaml:"symbols"`
}

// Watchlist serves per-symbol trading settings and their fingerprints. It
// implements engine.ConfigSource. Reload swaps the whole snapshot under the
// lock so a cycle never observes a half-applied file.
type Watchlist struct {
	path   string
	schema *jsonschema.Schema

	mu      sync.RWMutex
	entries map[string]engine.TradingConfig
	hashes  map[string]string
	symbols []string
}

func New(path string) (*Watchlist, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("watchlist path cannot be empty")
	}
	schema, err := jsonschema.CompileString("watchlist.schema.json", watchlistSchema)
	if err != nil {
		return nil, fmt.Errorf("compiling watchlist schema: %w", err)
	}
	w := &Watchlist{
		path:    path,
		schema:  schema,
		entries: make(map[string]engine.TradingConfig),
		hashes:  make(map[string]string),
	}
	if err := w.Reload(); err != nil {
		return nil, err
	}
	return w, nil
}

// Reload re-reads the file and swaps the snapshot. Per-symbol hashes change
// only for entries whose settings actually changed, so an unrelated edit
// does not burn other symbols' throttle baselines.
func (w *Watchlist) Reload() error {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("reading watchlist: %w", err)
	}
	entries, err := w.parse(raw)
	if err != nil {
		return err
	}

	next := make(map[string]engine.TradingConfig, len(entries))
	hashes := make(map[string]string, len(entries))
	symbols := make([]string, 0, len(entries))
	for _, e := range entries {
		sym := strings.ToUpper(strings.TrimSpace(e.Symbol))
		if _, dup := next[sym]; dup {
			return fmt.Errorf("duplicate watchlist symbol %s", sym)
		}
		next[sym] = e.tradingConfig()
		hashes[sym] = fingerprint(e)
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	w.mu.Lock()
	w.entries = next
	w.hashes = hashes
	w.symbols = symbols
	w.mu.Unlock()
	logger.Infof("watchlist loaded: %d symbols from %s", len(symbols), w.path)
	return nil
}

func (w *Watchlist) parse(raw []byte) ([]Entry, error) {
	// Schema validation runs on the loosely decoded document; the strict
	// decode afterwards rejects unknown fields with a line number. The
	// JSON round-trip normalizes YAML scalar types for the validator.
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("watchlist is not valid YAML: %w", err)
	}
	jsonBuf, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalizing watchlist document: %w", err)
	}
	doc = nil
	if err := json.Unmarshal(jsonBuf, &doc); err != nil {
		return nil, fmt.Errorf("normalizing watchlist document: %w", err)
	}
	if err := w.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("watchlist schema violation: %w", err)
	}

	var f fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding watchlist: %w", err)
	}
	for i := range f.Symbols {
		f.Symbols[i].applyDefaults()
	}
	return f.Symbols, nil
}

func (e *Entry) applyDefaults() {
	if strings.TrimSpace(e.StrategyID) == "" {
		e.StrategyID = "rsi-ma"
	}
}

func (e Entry) tradingConfig() engine.TradingConfig {
	return engine.TradingConfig{
		AlertEnabled:      e.AlertEnabled,
		BuyAlertEnabled:   e.BuyAlertEnabled,
		SellAlertEnabled:  e.SellAlertEnabled,
		TradeEnabled:      e.TradeEnabled,
		MinPriceChangePct: e.MinPriceChangePct,
		StrategyID:        e.StrategyID,
		TradeAmountUSD:    e.TradeAmountUSD,
		SLTPMode:          e.SLTPMode,
		UseMargin:         e.UseMargin,
		Leverage:          e.Leverage,
	}
}

// fingerprint hashes the canonical JSON of an entry. JSON field order is
// the struct order, so the serialization is deterministic.
func fingerprint(e Entry) string {
	buf, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:8])
}

// TradingConfig implements engine.ConfigSource.
func (w *Watchlist) TradingConfig(symbol string) (engine.TradingConfig, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cfg, ok := w.entries[strings.ToUpper(symbol)]
	return cfg, ok
}

// ConfigHash implements engine.ConfigSource.
func (w *Watchlist) ConfigHash(symbol string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.hashes[strings.ToUpper(symbol)]
}

// Symbols returns the watched symbols in sorted order.
func (w *Watchlist) Symbols() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.symbols...)
}

// Watch reloads the file on filesystem changes until ctx is done. Editors
// often replace files via rename, so the parent directory is watched and
// events are filtered by name. A failed reload keeps the previous snapshot.
func (w *Watchlist) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watchlist watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watchlist watcher add: %w", err)
	}

	target := filepath.Clean(w.path)
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// debounce bursts from editors writing in chunks
			pending = time.After(200 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("watchlist watcher error: %v", err)
		case <-pending:
			pending = nil
			if err := w.Reload(); err != nil {
				logger.Errorf("watchlist reload failed, keeping previous snapshot: %v", err)
			}
		}
	}
}
