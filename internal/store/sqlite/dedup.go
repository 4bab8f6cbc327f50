package sqlite

import (
	"context"
	"errors"

	"pilotfish/internal/store/model"

	"gorm.io/gorm"
)

// dedupRepository implements store.DedupRepository.
type dedupRepository struct {
	db *gorm.DB
}

func NewDedupRepo(db *gorm.DB) *dedupRepository {
	return &dedupRepository{db: db}
}

func (r *dedupRepository) Find(ctx context.Context, key string, nowUnix int64) (*model.DedupKeyModel, error) {
	var rec model.DedupKeyModel
	err := r.db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, nowUnix).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *dedupRepository) Insert(ctx context.Context, rec *model.DedupKeyModel) error {
	if rec == nil {
		return errors.New("dedup record cannot be nil")
	}
	// An expired row under the same key is replaced rather than conflicting.
	r.db.WithContext(ctx).Where("key = ? AND expires_at <= ?", rec.Key, rec.CreatedAtUnix).
		Delete(&model.DedupKeyModel{})
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *dedupRepository) PurgeExpired(ctx context.Context, nowUnix int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", nowUnix).
		Delete(&model.DedupKeyModel{})
	return res.RowsAffected, res.Error
}
