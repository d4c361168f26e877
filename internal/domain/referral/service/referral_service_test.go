package service

import (
	"context"
	"testing"

	userModel "starpay/internal/domain/user/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockReferralRepository struct {
	mock.Mock
}

func (m *MockReferralRepository) CreateLinkIfAbsent(referrerID, refereeID string) (bool, error) {
	args := m.Called(referrerID, refereeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockReferralRepository) GetReferrerID(refereeID string) (string, error) {
	args := m.Called(refereeID)
	return args.String(0), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(id string) (*userModel.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*userModel.User), args.Error(1)
}

func (m *MockUserRepository) GetByTgID(tgUserID int64) (*userModel.User, error) {
	args := m.Called(tgUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*userModel.User), args.Error(1)
}

func (m *MockUserRepository) UpsertFromFrontend(tgUserID int64, username *string) (*userModel.User, error) {
	args := m.Called(tgUserID, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*userModel.User), args.Error(1)
}

func (m *MockUserRepository) AddBalance(userID string, delta decimal.Decimal) error {
	args := m.Called(userID, delta)
	return args.Error(0)
}

func (m *MockUserRepository) ReserveBalance(userID string, amount decimal.Decimal) (bool, error) {
	args := m.Called(userID, amount)
	return args.Bool(0), args.Error(1)
}

type MockRateSource struct {
	mock.Mock
}

func (m *MockRateSource) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// decimalEq matches a decimal argument by value, ignoring exponent form.
func decimalEq(s string) interface{} {
	want := dec(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(want)
	})
}

func TestLink(t *testing.T) {
	ctx := context.Background()

	t.Run("Self referral rejected", func(t *testing.T) {
		repo := new(MockReferralRepository)
		svc := NewReferralService(repo, new(MockUserRepository), new(MockRateSource), 40)

		err := svc.Link(ctx, 100, 100)

		assert.ErrorIs(t, err, ErrSelfReferral)
		repo.AssertNotCalled(t, "CreateLinkIfAbsent", mock.Anything, mock.Anything)
	})

	t.Run("Creates edge between existing users", func(t *testing.T) {
		repo := new(MockReferralRepository)
		users := new(MockUserRepository)
		svc := NewReferralService(repo, users, new(MockRateSource), 40)

		referrer := &userModel.User{TgUserID: 100}
		referrer.ID = "referrer-id"
		referee := &userModel.User{TgUserID: 200}
		referee.ID = "referee-id"

		users.On("GetByTgID", int64(100)).Return(referrer, nil)
		users.On("GetByTgID", int64(200)).Return(referee, nil)
		repo.On("CreateLinkIfAbsent", "referrer-id", "referee-id").Return(true, nil)

		err := svc.Link(ctx, 100, 200)

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestAccrue(t *testing.T) {
	ctx := context.Background()

	t.Run("Rewards referrer with margin share in coin", func(t *testing.T) {
		repo := new(MockReferralRepository)
		users := new(MockUserRepository)
		svc := NewReferralService(repo, users, new(MockRateSource), 40)

		repo.On("GetReferrerID", "buyer-id").Return("referrer-id", nil)
		// margin 0.05, 40% share.
		users.On("AddBalance", "referrer-id", decimalEq("0.02")).Return(nil)

		err := svc.Accrue(ctx, "buyer-id", dec("0.2"), dec("0.15"), "TON")

		assert.NoError(t, err)
		users.AssertExpectations(t)
	})

	t.Run("No referrer is a no-op", func(t *testing.T) {
		repo := new(MockReferralRepository)
		users := new(MockUserRepository)
		svc := NewReferralService(repo, users, new(MockRateSource), 40)

		repo.On("GetReferrerID", "buyer-id").Return("", nil)

		err := svc.Accrue(ctx, "buyer-id", dec("0.2"), dec("0.15"), "TON")

		assert.NoError(t, err)
		users.AssertNotCalled(t, "AddBalance", mock.Anything, mock.Anything)
	})

	t.Run("Non-positive margin is a no-op", func(t *testing.T) {
		repo := new(MockReferralRepository)
		users := new(MockUserRepository)
		svc := NewReferralService(repo, users, new(MockRateSource), 40)

		repo.On("GetReferrerID", "buyer-id").Return("referrer-id", nil)

		err := svc.Accrue(ctx, "buyer-id", dec("0.1"), dec("0.15"), "TON")

		assert.NoError(t, err)
		users.AssertNotCalled(t, "AddBalance", mock.Anything, mock.Anything)
	})

	t.Run("Fiat margin converted through USD", func(t *testing.T) {
		repo := new(MockReferralRepository)
		users := new(MockUserRepository)
		ratesSrc := new(MockRateSource)
		svc := NewReferralService(repo, users, ratesSrc, 40)

		repo.On("GetReferrerID", "buyer-id").Return("referrer-id", nil)
		ratesSrc.On("Rate", ctx, "RUB", "USD").Return(dec("0.01"), nil)
		ratesSrc.On("Rate", ctx, "USD", "TON").Return(dec("0.5"), nil)
		// Cost is coin-denominated. Price 300 RUB -> 3 USD -> 1.5 TON;
		// margin 1.5 - 1 = 0.5 TON -> reward 0.2 TON.
		users.On("AddBalance", "referrer-id", decimalEq("0.2")).Return(nil)

		err := svc.Accrue(ctx, "buyer-id", dec("300"), dec("1"), "RUB")

		assert.NoError(t, err)
		users.AssertExpectations(t)
	})

	t.Run("Fiat price below coin cost is a no-op", func(t *testing.T) {
		repo := new(MockReferralRepository)
		users := new(MockUserRepository)
		ratesSrc := new(MockRateSource)
		svc := NewReferralService(repo, users, ratesSrc, 40)

		repo.On("GetReferrerID", "buyer-id").Return("referrer-id", nil)
		ratesSrc.On("Rate", ctx, "RUB", "USD").Return(dec("0.01"), nil)
		ratesSrc.On("Rate", ctx, "USD", "TON").Return(dec("0.5"), nil)

		// 100 RUB -> 0.5 TON, below the 1 TON cost.
		err := svc.Accrue(ctx, "buyer-id", dec("100"), dec("1"), "RUB")

		assert.NoError(t, err)
		users.AssertNotCalled(t, "AddBalance", mock.Anything, mock.Anything)
	})
}
