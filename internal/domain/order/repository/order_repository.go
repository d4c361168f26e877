package repository

import (
	"encoding/json"
	"time"

	"starpay/internal/domain/order/model"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(order *model.Order) error
	GetByID(id string) (*model.Order, error)
	// MarkPaid settles the order iff it is still pending, merging proof into
	// the gateway payload. The returned flag is the only signal that this
	// call won the transition; every competing caller sees false. A missing
	// order is gorm.ErrRecordNotFound.
	MarkPaid(id string, proof map[string]interface{}) (bool, error)
	// MergePayload folds fields into the gateway payload without touching
	// status.
	MergePayload(id string, fields map[string]interface{}) error
	SetMessage(id, message string) error
	// ExpireStale moves pending orders created before cutoff to expired and
	// returns how many moved.
	ExpireStale(cutoff time.Time) (int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(order *model.Order) error {
	return r.db.Create(order).Error
}

func (r *orderRepository) GetByID(id string) (*model.Order, error) {
	var order model.Order
	if err := r.db.Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) MarkPaid(id string, proof map[string]interface{}) (bool, error) {
	merged, err := json.Marshal(proof)
	if err != nil {
		return false, err
	}

	now := time.Now()
	res := r.db.Model(&model.Order{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"status":          model.StatusPaid,
			"paid_at":         &now,
			"gateway_payload": gorm.Expr("COALESCE(gateway_payload, '{}'::jsonb) || ?::jsonb", string(merged)),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish an already settled order from one that never existed.
		var n int64
		if err := r.db.Model(&model.Order{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return false, err
		}
		if n == 0 {
			return false, gorm.ErrRecordNotFound
		}
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepository) MergePayload(id string, fields map[string]interface{}) error {
	merged, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return r.db.Model(&model.Order{}).
		Where("id = ?", id).
		Update("gateway_payload",
			gorm.Expr("COALESCE(gateway_payload, '{}'::jsonb) || ?::jsonb", string(merged))).Error
}

func (r *orderRepository) SetMessage(id, message string) error {
	return r.db.Model(&model.Order{}).
		Where("id = ?", id).
		Update("message", message).Error
}

func (r *orderRepository) ExpireStale(cutoff time.Time) (int64, error) {
	res := r.db.Model(&model.Order{}).
		Where("status = ? AND created_at < ?", model.StatusPending, cutoff).
		Update("status", model.StatusExpired)
	return res.RowsAffected, res.Error
}
