package repository

import (
	"errors"

	"starpay/internal/domain/referral/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReferralRepository interface {
	// CreateLinkIfAbsent writes the referrer->referee edge. An existing edge
	// for the referee wins; returns whether a new edge was created.
	CreateLinkIfAbsent(referrerID, refereeID string) (bool, error)
	// GetReferrerID returns the referee's referrer, or "" when none exists.
	GetReferrerID(refereeID string) (string, error)
}

type referralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) ReferralRepository {
	return &referralRepository{db: db}
}

func (r *referralRepository) CreateLinkIfAbsent(referrerID, refereeID string) (bool, error) {
	edge := &model.Referral{
		ReferrerID: referrerID,
		RefereeID:  refereeID,
	}
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "referee_id"}},
		DoNothing: true,
	}).Create(edge)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *referralRepository) GetReferrerID(refereeID string) (string, error) {
	var edge model.Referral
	err := r.db.Where("referee_id = ?", refereeID).First(&edge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return edge.ReferrerID, nil
}
