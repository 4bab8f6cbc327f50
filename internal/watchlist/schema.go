package watchlist

// watchlistSchema is the JSON schema every watchlist file must satisfy
// before entries are accepted. Strict YAML decoding catches typos at the
// field level; the schema catches value-level mistakes.
const watchlistSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["symbols"],
  "additionalProperties": false,
  "properties": {
    "symbols": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["symbol"],
        "additionalProperties": false,
        "properties": {
          "symbol": {"type": "string", "minLength": 1},
          "alert_enabled": {"type": "boolean"},
          "buy_alert_enabled": {"type": "boolean"},
          "sell_alert_enabled": {"type": "boolean"},
          "trade_enabled": {"type": "boolean"},
          "min_price_change_pct": {"type": "number", "minimum": 0},
          "strategy_id": {"type": "string"},
          "trade_amount_usd": {"type": "number", "minimum": 0},
          "sltp_mode": {"enum": ["", "conservative", "aggressive"]},
          "use_margin": {"type": "boolean"},
          "leverage": {"type": "number", "minimum": 0}
        }
      }
    }
  }
}`
