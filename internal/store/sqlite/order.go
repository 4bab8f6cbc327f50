package sqlite

import (
	"context"
	"errors"

	"pilotfish/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Statuses considered non-terminal for the bracket idempotency guard.
var activeStatuses = []string{"NEW", "ACTIVE", "PARTIALLY_FILLED"}

// orderRepository implements store.OrderRepository.
type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) *orderRepository {
	return &orderRepository{db: db}
}

// Save saves or updates an order keyed by its exchange order id.
func (r *orderRepository) Save(ctx context.Context, order *model.OrderModel) error {
	if order == nil {
		return errors.New("order cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		UpdateAll: true,
	}).Save(order).Error
}

func (r *orderRepository) FindByOrderID(ctx context.Context, orderID string) (*model.OrderModel, error) {
	var order model.OrderModel
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ListActiveChildren(ctx context.Context, parentOrderID string, roles []string) ([]model.OrderModel, error) {
	var orders []model.OrderModel
	q := r.db.WithContext(ctx).
		Where("parent_order_id = ?", parentOrderID).
		Where("status IN ?", activeStatuses)
	if len(roles) > 0 {
		q = q.Where("order_role IN ?", roles)
	}
	if err := q.Order("id ASC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) ListRecent(ctx context.Context, limit int) ([]model.OrderModel, error) {
	var orders []model.OrderModel
	if limit <= 0 {
		limit = 100
	}
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
