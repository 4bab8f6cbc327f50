package engine

// TradingConfig is the per-symbol slice of mutable configuration the
// controller consumes each cycle. Its canonical serialization is hashed to
// detect configuration drift.
type TradingConfig struct {
	AlertEnabled      bool
	BuyAlertEnabled   bool
	SellAlertEnabled  bool
	TradeEnabled      bool
	MinPriceChangePct float64
	StrategyID        string
	TradeAmountUSD    float64
	SLTPMode          string // "" disables brackets; "conservative" | "aggressive"
	UseMargin         bool
	Leverage          float64
}

// ConfigSource is the configuration-store collaborator.
type ConfigSource interface {
	// TradingConfig returns the settings for a symbol; ok=false when the
	// symbol is not watched.
	TradingConfig(symbol string) (TradingConfig, bool)
	// ConfigHash fingerprints the symbol's current mutable settings.
	ConfigHash(symbol string) string
}
