package model

import (
	"time"

	baseModel "starpay/pkg/model"

	"github.com/shopspring/decimal"
)

// User is the ledger-side view of an end user. The chat front-end owns the
// conversational profile; this service only needs identity and the referral
// balance, held in the coin settlement currency.
type User struct {
	baseModel.BaseModel
	TgUserID  int64           `gorm:"uniqueIndex;not null" json:"tgUserId"`
	Username  *string         `json:"username,omitempty"`
	FirstName *string         `json:"firstName,omitempty"`
	LastName  *string         `json:"lastName,omitempty"`
	LangCode  *string         `gorm:"size:8" json:"langCode,omitempty"`
	Balance   decimal.Decimal `gorm:"type:decimal(18,9);default:0" json:"balance"`
	IsBlocked bool            `gorm:"default:false" json:"isBlocked"`

	AcceptedOfferAt *time.Time `json:"acceptedOfferAt,omitempty"`
}
