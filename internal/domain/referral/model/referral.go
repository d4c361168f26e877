package model

import (
	baseModel "starpay/pkg/model"
)

// Referral is one referrer->referee edge. A referee has at most one
// referrer, enforced by the unique index, and the edge never changes once
// written.
type Referral struct {
	baseModel.BaseModel
	ReferrerID string `gorm:"type:uuid;index" json:"referrerId"`
	RefereeID  string `gorm:"type:uuid;uniqueIndex" json:"refereeId"`
}
