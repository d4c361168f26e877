package model

import (
	"encoding/json"
	"time"

	baseModel "starpay/pkg/model"

	"github.com/shopspring/decimal"
)

// Withdrawal is one payout of referral balance. The reserved amount leaves
// the user's balance before the record exists and comes back only on a
// terminal failure, so the ledger can never double-spend.
type Withdrawal struct {
	baseModel.BaseModel
	UserID          string          `gorm:"type:uuid;index" json:"userId"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,9)" json:"amount"`
	ToAddress       string          `json:"toAddress"`
	Status          string          `gorm:"size:16;default:'pending';index" json:"status"`
	ProviderRef     *string         `json:"providerRef,omitempty"`
	ProviderPayload json.RawMessage `gorm:"type:jsonb" json:"providerPayload,omitempty"`
	ProcessedAt     *time.Time      `json:"processedAt,omitempty"`
}

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSent       = "sent"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// IsTerminal reports whether a status ends the withdrawal's lifecycle.
func IsTerminal(status string) bool {
	switch status {
	case StatusSent, StatusFailed, StatusCanceled:
		return true
	}
	return false
}
