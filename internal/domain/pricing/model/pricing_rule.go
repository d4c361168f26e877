package model

import (
	baseModel "starpay/pkg/model"

	"github.com/shopspring/decimal"
)

// PricingRule prices one (item kind, currency, mode) tuple for one bot.
// Manual rules carry an operator-set price verbatim; dynamic rules carry the
// refreshed upstream cost as the base and apply a markup on top.
type PricingRule struct {
	baseModel.BaseModel
	ItemKind      string           `gorm:"size:16;index:idx_rule,priority:1" json:"itemKind"`
	Currency      string           `gorm:"size:8;index:idx_rule,priority:2" json:"currency"`
	Mode          string           `gorm:"size:16;index:idx_rule,priority:3" json:"mode"`
	BotID         string           `gorm:"size:32;index:idx_rule,priority:4" json:"botId"`
	ManualPrice   decimal.Decimal  `gorm:"type:decimal(18,9)" json:"manualPrice"`
	MarkupPercent *decimal.Decimal `gorm:"type:decimal(8,3)" json:"markupPercent,omitempty"`
	IsActive      bool             `gorm:"default:true" json:"isActive"`
}

const (
	ModeManual  = "manual"
	ModeDynamic = "dynamic"

	KindStars   = "stars"
	KindPremium = "premium"
	KindTon     = "ton"

	CurrencyCoin = "TON"
	CurrencyRUB  = "RUB"
)
