package sqlite

import (
	"context"
	"errors"

	"pilotfish/internal/store/model"

	"gorm.io/gorm"
)

// outcomeRepository implements store.OutcomeRepository.
type outcomeRepository struct {
	db *gorm.DB
}

func NewOutcomeRepo(db *gorm.DB) *outcomeRepository {
	return &outcomeRepository{db: db}
}

func (r *outcomeRepository) Insert(ctx context.Context, rec *model.CycleOutcomeModel) error {
	if rec == nil {
		return errors.New("outcome record cannot be nil")
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *outcomeRepository) ListRecent(ctx context.Context, limit int) ([]model.CycleOutcomeModel, error) {
	var recs []model.CycleOutcomeModel
	if limit <= 0 {
		limit = 100
	}
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
