package repository

import (
	"starpay/internal/domain/user/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	GetByID(id string) (*model.User, error)
	GetByTgID(tgUserID int64) (*model.User, error)
	UpsertFromFrontend(tgUserID int64, username *string) (*model.User, error)
	// AddBalance applies a relative delta. All balance writes go through
	// deltas so concurrent accrual and withdrawal reservation cannot lose
	// updates.
	AddBalance(userID string, delta decimal.Decimal) error
	// ReserveBalance decrements atomically iff the balance covers amount.
	// Returns false when funds are insufficient.
	ReserveBalance(userID string, amount decimal.Decimal) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(id string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByTgID(tgUserID int64) (*model.User, error) {
	var user model.User
	if err := r.db.Where("tg_user_id = ?", tgUserID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UpsertFromFrontend(tgUserID int64, username *string) (*model.User, error) {
	user := &model.User{
		TgUserID: tgUserID,
		Username: username,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tg_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username"}),
	}).Create(user).Error
	if err != nil {
		return nil, err
	}
	return r.GetByTgID(tgUserID)
}

func (r *userRepository) AddBalance(userID string, delta decimal.Decimal) error {
	return r.db.Model(&model.User{}).
		Where("id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", delta)).Error
}

func (r *userRepository) ReserveBalance(userID string, amount decimal.Decimal) (bool, error) {
	res := r.db.Model(&model.User{}).
		Where("id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
