package repository

import (
	"encoding/json"
	"time"

	"starpay/internal/domain/withdrawal/model"

	"gorm.io/gorm"
)

type WithdrawalRepository interface {
	Create(w *model.Withdrawal) error
	GetByID(id string) (*model.Withdrawal, error)
	// SetProcessing moves pending -> processing and records the provider
	// reference. Returns false when the record already left pending.
	SetProcessing(id, providerRef string) (bool, error)
	// MarkTerminal moves a non-terminal withdrawal to a terminal status.
	// Returns whether this call made the transition; refunds key off it so a
	// reconciler and a racing operator cannot both compensate.
	MarkTerminal(id, status string, payload map[string]interface{}) (bool, error)
	ListProcessing() ([]model.Withdrawal, error)
}

type withdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) WithdrawalRepository {
	return &withdrawalRepository{db: db}
}

func (r *withdrawalRepository) Create(w *model.Withdrawal) error {
	return r.db.Create(w).Error
}

func (r *withdrawalRepository) GetByID(id string) (*model.Withdrawal, error) {
	var w model.Withdrawal
	if err := r.db.Where("id = ?", id).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *withdrawalRepository) SetProcessing(id, providerRef string) (bool, error) {
	res := r.db.Model(&model.Withdrawal{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"status":       model.StatusProcessing,
			"provider_ref": providerRef,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *withdrawalRepository) MarkTerminal(id, status string, payload map[string]interface{}) (bool, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"processed_at": &now,
	}
	if payload != nil {
		merged, err := json.Marshal(payload)
		if err != nil {
			return false, err
		}
		updates["provider_payload"] = gorm.Expr(
			"COALESCE(provider_payload, '{}'::jsonb) || ?::jsonb", string(merged))
	}

	res := r.db.Model(&model.Withdrawal{}).
		Where("id = ? AND status IN ?", id,
			[]string{model.StatusPending, model.StatusProcessing}).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *withdrawalRepository) ListProcessing() ([]model.Withdrawal, error) {
	var list []model.Withdrawal
	err := r.db.Where("status = ?", model.StatusProcessing).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}
