// Package memory is an in-memory store.Store used by tests and by runs
// without a database path configured. State does not survive restarts; the
// engine tolerates that by contract.
package memory

import (
	"context"
	"sort"
	"sync"

	"pilotfish/internal/store"
	"pilotfish/internal/store/model"
)

type Store struct {
	mu        sync.Mutex
	seq       int64
	throttles map[string]model.ThrottleRecordModel
	orders    map[string]model.OrderModel
	leverage  map[string]model.LeverageCacheModel
	dedup     map[string]model.DedupKeyModel
	outcomes  []model.CycleOutcomeModel
}

func NewStore() *Store {
	return &Store{
		throttles: make(map[string]model.ThrottleRecordModel),
		orders:    make(map[string]model.OrderModel),
		leverage:  make(map[string]model.LeverageCacheModel),
		dedup:     make(map[string]model.DedupKeyModel),
	}
}

func (s *Store) Begin(ctx context.Context) (store.UnitOfWork, error) {
	return &unitOfWork{s: s}, nil
}

func (s *Store) Close() error { return nil }

func throttleKey(symbol, strategyKey, side string) string {
	return symbol + "|" + strategyKey + "|" + side
}

// unitOfWork stages mutations and applies them atomically on Commit.
type unitOfWork struct {
	s      *Store
	staged []func(*Store)
	done   bool
}

func (u *unitOfWork) Commit() error {
	if u.done {
		return nil
	}
	u.done = true
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, apply := range u.staged {
		apply(u.s)
	}
	u.staged = nil
	return nil
}

func (u *unitOfWork) Rollback() error {
	u.done = true
	u.staged = nil
	return nil
}

func (u *unitOfWork) Throttles() store.ThrottleRepository { return &throttleRepo{u} }
func (u *unitOfWork) Orders() store.OrderRepository       { return &orderRepo{u} }
func (u *unitOfWork) Leverage() store.LeverageRepository  { return &leverageRepo{u} }
func (u *unitOfWork) Dedup() store.DedupRepository        { return &dedupRepo{u} }
func (u *unitOfWork) Outcomes() store.OutcomeRepository   { return &outcomeRepo{u} }

type throttleRepo struct{ u *unitOfWork }

func (r *throttleRepo) Get(_ context.Context, symbol, strategyKey, side string) (*model.ThrottleRecordModel, error) {
	r.u.s.mu.Lock()
	defer r.u.s.mu.Unlock()
	if rec, ok := r.u.s.throttles[throttleKey(symbol, strategyKey, side)]; ok {
		dup := rec
		return &dup, nil
	}
	return nil, nil
}

func (r *throttleRepo) Save(_ context.Context, rec *model.ThrottleRecordModel) error {
	dup := *rec
	r.u.staged = append(r.u.staged, func(s *Store) {
		if dup.ID == 0 {
			s.seq++
			dup.ID = s.seq
		}
		s.throttles[throttleKey(dup.Symbol, dup.StrategyKey, dup.Side)] = dup
	})
	return nil
}

type orderRepo struct{ u *unitOfWork }

func (r *orderRepo) Save(_ context.Context, order *model.OrderModel) error {
	dup := *order
	r.u.staged = append(r.u.staged, func(s *Store) {
		if existing, ok := s.orders[dup.OrderID]; ok {
			dup.ID = existing.ID
		} else {
			s.seq++
			dup.ID = s.seq
		}
		s.orders[dup.OrderID] = dup
	})
	return nil
}

func (r *orderRepo) FindByOrderID(_ context.Context, orderID string) (*model.OrderModel, error) {
	r.u.s.mu.Lock()
	defer r.u.s.mu.Unlock()
	if o, ok := r.u.s.orders[orderID]; ok {
		dup := o
		return &dup, nil
	}
	return nil, nil
}

func (r *orderRepo) ListActiveChildren(_ context.Context, parentOrderID string, roles []string) ([]model.OrderModel, error) {
	r.u.s.mu.Lock()
	defer r.u.s.mu.Unlock()
	roleSet := make(map[string]bool, len(roles))
	for _, role := range roles {
		roleSet[role] = true
	}
	var out []model.OrderModel
	for _, o := range r.u.s.orders {
		if o.ParentOrderID != parentOrderID {
			continue
		}
		if len(roleSet) > 0 && !roleSet[o.OrderRole] {
			continue
		}
		switch o.Status {
		case "NEW", "ACTIVE", "PARTIALLY_FILLED":
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *orderRepo) ListRecent(_ context.Context, limit int) ([]model.OrderModel, error) {
	r.u.s.mu.Lock()
	defer r.u.s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := make([]model.OrderModel, 0, len(r.u.s.orders))
	for _, o := range r.u.s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAtUnix != out[j].CreatedAtUnix {
			return out[i].CreatedAtUnix > out[j].CreatedAtUnix
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type leverageRepo struct{ u *unitOfWork }

func (r *leverageRepo) Get(_ context.Context, symbol string) (*model.LeverageCacheModel, error) {
	r.u.s.mu.Lock()
	defer r.u.s.mu.Unlock()
	if e, ok := r.u.s.leverage[symbol]; ok {
		dup := e
		return &dup, nil
	}
	return nil, nil
}

func (r *leverageRepo) Save(_ context.Context, entry *model.LeverageCacheModel) error {
	dup := *entry
	r.u.staged = append(r.u.staged, func(s *Store) {
		if existing, ok := s.leverage[dup.Symbol]; ok {
			dup.ID = existing.ID
		} else {
			s.seq++
			dup.ID = s.seq
		}
		s.leverage[dup.Symbol] = dup
	})
	return nil
}

type dedupRepo struct{ u *unitOfWork }

func (r *dedupRepo) Find(_ context.Context, key string, nowUnix int64) (*model.DedupKeyModel, error) {
	r.u.s.mu.Lock()
	defer r.u.s.mu.Unlock()
	if rec, ok := r.u.s.dedup[key]; ok && rec.ExpiresAtUnix > nowUnix {
		dup := rec
		return &dup, nil
	}
	return nil, nil
}

func (r *dedupRepo) Insert(_ context.Context, rec *model.DedupKeyModel) error {
	dup := *rec
	r.u.staged = append(r.u.staged, func(s *Store) {
		s.seq++
		dup.ID = s.seq
		s.dedup[dup.Key] = dup
	})
	return nil
}

func (r *dedupRepo) PurgeExpired(_ context.Context, nowUnix int64) (int64, error) {
	r.u.s.mu.Lock()
	defer r.u.s.mu.Unlock()
	var n int64
	for k, rec := range r.u.s.dedup {
		if rec.ExpiresAtUnix <= nowUnix {
			delete(r.u.s.dedup, k)
			n++
		}
	}
	return n, nil
}

type outcomeRepo struct{ u *unitOfWork }

func (r *outcomeRepo) Insert(_ context.Context, rec *model.CycleOutcomeModel) error {
	dup := *rec
	r.u.staged = append(r.u.staged, func(s *Store) {
		s.seq++
		dup.ID = s.seq
		s.outcomes = append(s.outcomes, dup)
	})
	return nil
}

func (r *outcomeRepo) ListRecent(_ context.Context, limit int) ([]model.CycleOutcomeModel, error) {
	r.u.s.mu.Lock()
	defer r.u.s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := make([]model.CycleOutcomeModel, 0, len(r.u.s.outcomes))
	for i := len(r.u.s.outcomes) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.u.s.outcomes[i])
	}
	return out, nil
}
