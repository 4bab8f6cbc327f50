package model

import (
	"gorm.io/datatypes"
)

// ThrottleRecordModel is the persisted last-signal snapshot per
// (symbol, strategy_key, side). At most one row per key; rows are only
// ever overwritten, never deleted.
type ThrottleRecordModel struct {
	ID              int64   `gorm:"column:id;primaryKey"`
	Symbol          string  `gorm:"column:symbol;uniqueIndex:idx_throttle_key,priority:1"`
	StrategyKey     string  `gorm:"column:strategy_key;uniqueIndex:idx_throttle_key,priority:2"`
	Side            string  `gorm:"column:side;uniqueIndex:idx_throttle_key,priority:3"`
	LastPrice       float64 `gorm:"column:last_price"`
	LastTimeUnix    int64   `gorm:"column:last_time"`
	ConfigHash      string  `gorm:"column:config_hash"`
	ForceNextSignal bool    `gorm:"column:force_next_signal"`
	UpdatedAtUnix   int64   `gorm:"column:updated_at"`
}

func (ThrottleRecordModel) TableName() string { return "throttle_records" }

// OrderModel is an exchange order as tracked locally. Bracket legs link to
// their entry via ParentOrderID and share a BracketGroupID.
type OrderModel struct {
	ID             int64          `gorm:"column:id;primaryKey"`
	OrderID        string         `gorm:"column:order_id;uniqueIndex"`
	Symbol         string         `gorm:"column:symbol;index"`
	Side           string         `gorm:"column:side"`
	Type           string         `gorm:"column:type"`
	Status         string         `gorm:"column:status"`
	Price          float64        `gorm:"column:price"`
	Quantity       float64        `gorm:"column:quantity"`
	FilledQuantity float64        `gorm:"column:filled_quantity"`
	ParentOrderID  string         `gorm:"column:parent_order_id;index"`
	OrderRole      string         `gorm:"column:order_role"`
	BracketGroupID string         `gorm:"column:bracket_group_id;index"`
	Raw            datatypes.JSON `gorm:"column:raw;type:TEXT"`
	CreatedAtUnix  int64          `gorm:"column:created_at"`
	UpdatedAtUnix  int64          `gorm:"column:updated_at"`
}

func (OrderModel) TableName() string { return "orders" }

// LeverageCacheModel remembers the highest leverage verified to work for a
// symbol. Seeded conservatively, promoted only on confirmed success.
type LeverageCacheModel struct {
	ID                   int64   `gorm:"column:id;primaryKey"`
	Symbol               string  `gorm:"column:symbol;uniqueIndex"`
	MaxWorkingLeverage   float64 `gorm:"column:max_working_leverage"`
	VerificationAttempts int     `gorm:"column:verification_attempts"`
	LastUpdatedUnix      int64   `gorm:"column:last_updated"`
}

func (LeverageCacheModel) TableName() string { return "leverage_cache" }

// DedupKeyModel suppresses repeat notifications for its TTL window.
type DedupKeyModel struct {
	ID            int64  `gorm:"column:id;primaryKey"`
	Key           string `gorm:"column:key;uniqueIndex"`
	ExpiresAtUnix int64  `gorm:"column:expires_at;index"`
	CreatedAtUnix int64  `gorm:"column:created_at"`
}

func (DedupKeyModel) TableName() string { return "dedup_keys" }

// CycleOutcomeModel is the audit record produced once per controller cycle,
// including blocked and skipped ones.
type CycleOutcomeModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	CorrelationID string         `gorm:"column:correlation_id;uniqueIndex"`
	Symbol        string         `gorm:"column:symbol;index"`
	Side          string         `gorm:"column:side"`
	Status        string         `gorm:"column:status"`
	ReasonCode    string         `gorm:"column:reason_code"`
	Details       datatypes.JSON `gorm:"column:details;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
}

func (CycleOutcomeModel) TableName() string { return "cycle_outcomes" }
