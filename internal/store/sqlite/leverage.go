package sqlite

import (
	"context"
	"errors"

	"pilotfish/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// leverageRepository implements store.LeverageRepository.
type leverageRepository struct {
	db *gorm.DB
}

func NewLeverageRepo(db *gorm.DB) *leverageRepository {
	return &leverageRepository{db: db}
}

func (r *leverageRepository) Get(ctx context.Context, symbol string) (*model.LeverageCacheModel, error) {
	var entry model.LeverageCacheModel
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *leverageRepository) Save(ctx context.Context, entry *model.LeverageCacheModel) error {
	if entry == nil {
		return errors.New("leverage entry cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		UpdateAll: true,
	}).Save(entry).Error
}
