package store

import (
	"context"

	"pilotfish/internal/store/model"
)

// UnitOfWork defines a transaction scope. Every read-modify-write on the
// keyed tables (throttle, leverage, dedup, bracket children) must happen
// inside one UnitOfWork so check-then-set stays atomic.
type UnitOfWork interface {
	// Commit commits the transaction.
	Commit() error
	// Rollback rolls back the transaction.
	Rollback() error

	Throttles() ThrottleRepository
	Orders() OrderRepository
	Leverage() LeverageRepository
	Dedup() DedupRepository
	Outcomes() OutcomeRepository
}

// Store is the entry point for database access.
type Store interface {
	// Begin starts a new UnitOfWork (transaction).
	Begin(ctx context.Context) (UnitOfWork, error)
	// Close closes the store connection.
	Close() error
}

// ThrottleRepository handles last-signal snapshots.
type ThrottleRepository interface {
	// Get returns the record for the key, or nil when none exists yet.
	Get(ctx context.Context, symbol, strategyKey, side string) (*model.ThrottleRecordModel, error)
	// Save upserts the record on its (symbol, strategy_key, side) key.
	Save(ctx context.Context, rec *model.ThrottleRecordModel) error
}

// OrderRepository handles local order tracking.
type OrderRepository interface {
	Save(ctx context.Context, order *model.OrderModel) error
	FindByOrderID(ctx context.Context, orderID string) (*model.OrderModel, error)
	// ListActiveChildren returns non-terminal child orders of an entry,
	// optionally restricted to the given roles.
	ListActiveChildren(ctx context.Context, parentOrderID string, roles []string) ([]model.OrderModel, error)
	ListRecent(ctx context.Context, limit int) ([]model.OrderModel, error)
}

// LeverageRepository handles the adaptive leverage cache.
type LeverageRepository interface {
	Get(ctx context.Context, symbol string) (*model.LeverageCacheModel, error)
	Save(ctx context.Context, entry *model.LeverageCacheModel) error
}

// DedupRepository handles TTL suppression keys.
type DedupRepository interface {
	// Find returns the unexpired row for key at nowUnix, or nil.
	Find(ctx context.Context, key string, nowUnix int64) (*model.DedupKeyModel, error)
	Insert(ctx context.Context, rec *model.DedupKeyModel) error
	// PurgeExpired removes rows whose TTL elapsed; returns rows deleted.
	PurgeExpired(ctx context.Context, nowUnix int64) (int64, error)
}

// OutcomeRepository handles cycle audit records.
type OutcomeRepository interface {
	Insert(ctx context.Context, rec *model.CycleOutcomeModel) error
	ListRecent(ctx context.Context, limit int) ([]model.CycleOutcomeModel, error)
}
