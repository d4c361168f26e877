package model

import (
	"encoding/json"
	"time"

	baseModel "starpay/pkg/model"

	"github.com/shopspring/decimal"
)

// Order is one purchase. Status only ever moves pending -> paid or
// pending -> expired; both transitions are one-way.
type Order struct {
	baseModel.BaseModel
	UserID         string           `gorm:"type:uuid;index" json:"userId"`
	BotID          string           `gorm:"size:32" json:"botId"`
	Username       *string          `json:"username,omitempty"`
	Recipient      *string          `json:"recipient,omitempty"`
	ItemKind       string           `gorm:"size:16" json:"itemKind"`
	Quantity       int64            `json:"quantity"`
	Price          decimal.Decimal  `gorm:"type:decimal(18,9)" json:"price"`
	Income         decimal.Decimal  `gorm:"type:decimal(18,9)" json:"income"`
	Currency       string           `gorm:"size:8" json:"currency"`
	Rail           string           `gorm:"size:16" json:"rail"`
	Status         string           `gorm:"size:16;default:'pending';index" json:"status"`
	Message        *string          `json:"message,omitempty"`
	GatewayPayload json.RawMessage  `gorm:"type:jsonb" json:"gatewayPayload,omitempty"`
	Cost           *decimal.Decimal `gorm:"type:decimal(18,9)" json:"cost,omitempty"`
	PaidAt         *time.Time       `json:"paidAt,omitempty"`
}

const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusExpired = "expired"

	RailChain   = "ton"
	RailGateway = "sbp"
	RailInvoice = "crypto"

	KindStars   = "stars"
	KindPremium = "premium"
	KindTon     = "ton"
)
