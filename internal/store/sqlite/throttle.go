package sqlite

import (
	"context"
	"errors"

	"pilotfish/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// throttleRepository implements store.ThrottleRepository.
type throttleRepository struct {
	db *gorm.DB
}

func NewThrottleRepo(db *gorm.DB) *throttleRepository {
	return &throttleRepository{db: db}
}

func (r *throttleRepository) Get(ctx context.Context, symbol, strategyKey, side string) (*model.ThrottleRecordModel, error) {
	var rec model.ThrottleRecordModel
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND strategy_key = ? AND side = ?", symbol, strategyKey, side).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save upserts on the throttle key so a record is only ever overwritten.
func (r *throttleRepository) Save(ctx context.Context, rec *model.ThrottleRecordModel) error {
	if rec == nil {
		return errors.New("throttle record cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "strategy_key"}, {Name: "side"}},
		UpdateAll: true,
	}).Save(rec).Error
}
