package repository

import (
	"errors"

	"starpay/internal/domain/pricing/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PricingRepository interface {
	// GetActive returns the newest active rule for the tuple, or nil when
	// none is configured.
	GetActive(itemKind, currency, mode, botID string) (*model.PricingRule, error)
	// SetActive deactivates any previous rule for the tuple and writes the
	// replacement, so exactly one active rule exists per tuple.
	SetActive(itemKind, currency, mode, botID string, price decimal.Decimal, markup *decimal.Decimal) error
	ActiveBotIDs() ([]string, error)
}

type pricingRepository struct {
	db *gorm.DB
}

func NewPricingRepository(db *gorm.DB) PricingRepository {
	return &pricingRepository{db: db}
}

func (r *pricingRepository) GetActive(itemKind, currency, mode, botID string) (*model.PricingRule, error) {
	var rule model.PricingRule
	err := r.db.
		Where("item_kind = ? AND currency = ? AND mode = ? AND bot_id = ? AND is_active = ?",
			itemKind, currency, mode, botID, true).
		Order("created_at DESC").
		First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *pricingRepository) SetActive(itemKind, currency, mode, botID string, price decimal.Decimal, markup *decimal.Decimal) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.PricingRule{}).
			Where("item_kind = ? AND currency = ? AND mode = ? AND bot_id = ? AND is_active = ?",
				itemKind, currency, mode, botID, true).
			Update("is_active", false).Error
		if err != nil {
			return err
		}

		rule := &model.PricingRule{
			ItemKind:      itemKind,
			Currency:      currency,
			Mode:          mode,
			BotID:         botID,
			ManualPrice:   price,
			MarkupPercent: markup,
			IsActive:      true,
		}
		return tx.Create(rule).Error
	})
}

func (r *pricingRepository) ActiveBotIDs() ([]string, error) {
	var ids []string
	err := r.db.Model(&model.PricingRule{}).
		Distinct("bot_id").
		Where("is_active = ?", true).
		Pluck("bot_id", &ids).Error
	return ids, err
}
