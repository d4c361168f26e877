package service

import (
	"context"
	"testing"

	userModel "starpay/internal/domain/user/model"
	"starpay/internal/domain/withdrawal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) Create(w *model.Withdrawal) error {
	args := m.Called(w)
	if args.Error(0) == nil && w.ID == "" {
		w.ID = "wd-1"
	}
	return args.Error(0)
}

func (m *MockWithdrawalRepository) GetByID(id string) (*model.Withdrawal, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) SetProcessing(id, providerRef string) (bool, error) {
	args := m.Called(id, providerRef)
	return args.Bool(0), args.Error(1)
}

func (m *MockWithdrawalRepository) MarkTerminal(id, status string, payload map[string]interface{}) (bool, error) {
	args := m.Called(id, status, payload)
	return args.Bool(0), args.Error(1)
}

func (m *MockWithdrawalRepository) ListProcessing() ([]model.Withdrawal, error) {
	args := m.Called()
	return args.Get(0).([]model.Withdrawal), args.Error(1)
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

type MockPayoutProvider struct {
	mock.Mock
}

func (m *MockPayoutProvider) Submit(ctx context.Context, ref, address string, amount decimal.Decimal) (*Submission, error) {
	args := m.Called(ctx, ref, address, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Submission), args.Error(1)
}

func (m *MockPayoutProvider) Check(ctx context.Context, ref string) (string, bool, error) {
	args := m.Called(ctx, ref)
	return args.String(0), args.Bool(1), args.Error(2)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func holder() *userModel.User {
	u := &userModel.User{TgUserID: 100, Balance: dec("10.5")}
	u.ID = "user-1"
	return u
}

func TestRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("Below minimum rejected before any balance change", func(t *testing.T) {
		repo := new(MockWithdrawalRepository)
		users := new(MockUserRepository)
		svc := NewWithdrawalService(repo, users, new(MockPayoutProvider), 1, 1000)

		_, err := svc.Request(ctx, 100, dec("0.5"), "addr")

		assert.ErrorIs(t, err, ErrAmountOutOfRange)
		users.AssertNotCalled(t, "ReserveBalance", mock.Anything, mock.Anything)
	})

	t.Run("Insufficient balance leaves ledger untouched", func(t *testing.T) {
		repo := new(MockWithdrawalRepository)
		users := new(MockUserRepository)
		svc := NewWithdrawalService(repo, users, new(MockPayoutProvider), 1, 1000)

		users.On("GetByTgID", int64(100)).Return(holder(), nil)
		users.On("ReserveBalance", "user-1", dec("100")).Return(false, nil)

		_, err := svc.Request(ctx, 100, dec("100"), "addr")

		assert.ErrorIs(t, err, ErrInsufficientBalance)
		repo.AssertNotCalled(t, "Create", mock.Anything)
	})

	t.Run("Synchronous payout settles as sent", func(t *testing.T) {
		repo := new(MockWithdrawalRepository)
		users := new(MockUserRepository)
		provider := new(MockPayoutProvider)
		svc := NewWithdrawalService(repo, users, provider, 1, 1000)

		users.On("GetByTgID", int64(100)).Return(holder(), nil)
		users.On("ReserveBalance", "user-1", dec("10")).Return(true, nil)
		repo.On("Create", mock.AnythingOfType("*model.Withdrawal")).Return(nil)
		provider.On("Submit", ctx, "wd-1", "addr", dec("10")).Return(&Submission{
			ProviderRef: "hash-1",
			Status:      model.StatusSent,
			Payload:     map[string]interface{}{"tx_hash": "hash-1"},
		}, nil)
		repo.On("MarkTerminal", "wd-1", model.StatusSent, mock.Anything).Return(true, nil)
		sent := &model.Withdrawal{UserID: "user-1", Amount: dec("10"), Status: model.StatusSent}
		sent.ID = "wd-1"
		repo.On("GetByID", "wd-1").Return(sent, nil)

		w, err := svc.Request(ctx, 100, dec("10"), "addr")

		assert.NoError(t, err)
		assert.Equal(t, model.StatusSent, w.Status)
		// No refund on success.
		users.AssertNotCalled(t, "AddBalance", mock.Anything, mock.Anything)
	})

	t.Run("Submit failure holds funds in pending", func(t *testing.T) {
		repo := new(MockWithdrawalRepository)
		users := new(MockUserRepository)
		provider := new(MockPayoutProvider)
		svc := NewWithdrawalService(repo, users, provider, 1, 1000)

		users.On("GetByTgID", int64(100)).Return(holder(), nil)
		users.On("ReserveBalance", "user-1", dec("10")).Return(true, nil)
		repo.On("Create", mock.AnythingOfType("*model.Withdrawal")).Return(nil)
		provider.On("Submit", ctx, "wd-1", "addr", dec("10")).Return(nil, assert.AnError)
		pending := &model.Withdrawal{UserID: "user-1", Amount: dec("10"), Status: model.StatusPending}
		pending.ID = "wd-1"
		repo.On("GetByID", "wd-1").Return(pending, nil)

		w, err := svc.Request(ctx, 100, dec("10"), "addr")

		assert.NoError(t, err)
		assert.Equal(t, model.StatusPending, w.Status)
		// Reserved funds stay held; refunding here could double-pay if the
		// provider actually accepted the payout.
		users.AssertNotCalled(t, "AddBalance", mock.Anything, mock.Anything)
	})
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	processing := func() model.Withdrawal {
		w := model.Withdrawal{UserID: "user-1", Amount: dec("10"), Status: model.StatusProcessing}
		w.ID = "wd-1"
		return w
	}

	t.Run("Failed payout refunds the exact reserved amount", func(t *testing.T) {
		repo := new(MockWithdrawalRepository)
		users := new(MockUserRepository)
		provider := new(MockPayoutProvider)
		svc := NewWithdrawalService(repo, users, provider, 1, 1000)

		repo.On("ListProcessing").Return([]model.Withdrawal{processing()}, nil)
		provider.On("Check", ctx, "wd-1").Return(model.StatusFailed, true, nil)
		repo.On("MarkTerminal", "wd-1", model.StatusFailed, mock.Anything).Return(true, nil)
		// 10.5 - 10 reserved = 0.5 during flight; the refund restores 10.5.
		users.On("AddBalance", "user-1", dec("10")).Return(nil)

		assert.NoError(t, svc.Reconcile(ctx))
		users.AssertExpectations(t)
	})

	t.Run("Sent payout never refunds", func(t *testing.T) {
		repo := new(MockWithdrawalRepository)
		users := new(MockUserRepository)
		provider := new(MockPayoutProvider)
		svc := NewWithdrawalService(repo, users, provider, 1, 1000)

		repo.On("ListProcessing").Return([]model.Withdrawal{processing()}, nil)
		provider.On("Check", ctx, "wd-1").Return(model.StatusSent, true, nil)
		repo.On("MarkTerminal", "wd-1", model.StatusSent, mock.Anything).Return(true, nil)

		assert.NoError(t, svc.Reconcile(ctx))
		users.AssertNotCalled(t, "AddBalance", mock.Anything, mock.Anything)
	})

	t.Run("Lost transition race skips the refund", func(t *testing.T) {
		repo := new(MockWithdrawalRepository)
		users := new(MockUserRepository)
		provider := new(MockPayoutProvider)
		svc := NewWithdrawalService(repo, users, provider, 1, 1000)

		repo.On("ListProcessing").Return([]model.Withdrawal{processing()}, nil)
		provider.On("Check", ctx, "wd-1").Return(model.StatusFailed, true, nil)
		repo.On("MarkTerminal", "wd-1", model.StatusFailed, mock.Anything).Return(false, nil)

		assert.NoError(t, svc.Reconcile(ctx))
		users.AssertNotCalled(t, "AddBalance", mock.Anything, mock.Anything)
	})

	t.Run("Non-final payouts stay processing", func(t *testing.T) {
		repo := new(MockWithdrawalRepository)
		users := new(MockUserRepository)
		provider := new(MockPayoutProvider)
		svc := NewWithdrawalService(repo, users, provider, 1, 1000)

		repo.On("ListProcessing").Return([]model.Withdrawal{processing()}, nil)
		provider.On("Check", ctx, "wd-1").Return(model.StatusProcessing, false, nil)

		assert.NoError(t, svc.Reconcile(ctx))
		repo.AssertNotCalled(t, "MarkTerminal", mock.Anything, mock.Anything, mock.Anything)
	})
}
