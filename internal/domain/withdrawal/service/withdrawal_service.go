package service

import (
	"context"
	"errors"
	"time"

	userRepo "starpay/internal/domain/user/repository"
	"starpay/internal/domain/withdrawal/model"
	"starpay/internal/domain/withdrawal/repository"
	"starpay/pkg/logger"
	"starpay/pkg/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrAmountOutOfRange    = errors.New("withdrawal: amount outside allowed range")
	ErrInsufficientBalance = errors.New("withdrawal: insufficient balance")
)

type WithdrawalService interface {
	// Request reserves the amount from the user's balance and submits the
	// payout. The reservation is the first durable step: if anything after
	// it fails the record stays pending with the funds held, never lost.
	Request(ctx context.Context, tgUserID int64, amount decimal.Decimal, toAddress string) (*model.Withdrawal, error)
	GetByID(id string) (*model.Withdrawal, error)
	// Reconcile settles processing withdrawals against the provider and
	// refunds terminal failures.
	Reconcile(ctx context.Context) error
	// StartReconciler runs Reconcile on an interval until ctx ends.
	StartReconciler(ctx context.Context, interval time.Duration)
}

type withdrawalService struct {
	repo     repository.WithdrawalRepository
	users    userRepo.UserRepository
	provider PayoutProvider
	min      decimal.Decimal
	max      decimal.Decimal
}

func NewWithdrawalService(repo repository.WithdrawalRepository, users userRepo.UserRepository, provider PayoutProvider, minAmount, maxAmount float64) WithdrawalService {
	return &withdrawalService{
		repo:     repo,
		users:    users,
		provider: provider,
		min:      decimal.NewFromFloat(minAmount),
		max:      decimal.NewFromFloat(maxAmount),
	}
}

func (s *withdrawalService) Request(ctx context.Context, tgUserID int64, amount decimal.Decimal, toAddress string) (*model.Withdrawal, error) {
	if amount.LessThan(s.min) || amount.GreaterThan(s.max) {
		return nil, ErrAmountOutOfRange
	}

	user, err := s.users.GetByTgID(tgUserID)
	if err != nil {
		return nil, err
	}

	reserved, err := s.users.ReserveBalance(user.ID, amount)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return nil, ErrInsufficientBalance
	}

	w := &model.Withdrawal{
		UserID:    user.ID,
		Amount:    amount,
		ToAddress: toAddress,
		Status:    model.StatusPending,
	}
	if err := s.repo.Create(w); err != nil {
		// The reservation already happened; compensate immediately so the
		// funds are not stranded.
		if rbErr := s.users.AddBalance(user.ID, amount); rbErr != nil {
			logger.Log.Error("withdrawal: reservation rollback failed",
				zap.String("user_id", user.ID), zap.Error(rbErr))
		}
		return nil, err
	}

	s.submit(ctx, w)

	current, err := s.repo.GetByID(w.ID)
	if err != nil {
		return w, nil
	}
	return current, nil
}

// submit hands the payout to the provider. A submit error leaves the record
// pending with the funds reserved; the operator or a later retry resolves
// it, never an automatic refund that could double-pay.
func (s *withdrawalService) submit(ctx context.Context, w *model.Withdrawal) {
	sub, err := s.provider.Submit(ctx, w.ID, w.ToAddress, w.Amount)
	if err != nil {
		logger.Log.Error("withdrawal: submit failed",
			zap.String("withdrawal_id", w.ID), zap.Error(err))
		return
	}

	if model.IsTerminal(sub.Status) {
		s.finish(w, sub.Status, sub.Payload)
		return
	}

	moved, err := s.repo.SetProcessing(w.ID, sub.ProviderRef)
	if err != nil {
		logger.Log.Error("withdrawal: processing transition failed",
			zap.String("withdrawal_id", w.ID), zap.Error(err))
		return
	}
	if moved {
		logger.Log.Info("withdrawal submitted",
			zap.String("withdrawal_id", w.ID),
			zap.String("provider_ref", sub.ProviderRef))
	}
}

// finish applies a terminal status. The conditional transition gates the
// refund: whoever wins it compensates, everyone else sees a no-op, so the
// exact reserved amount comes back at most once.
func (s *withdrawalService) finish(w *model.Withdrawal, status string, payload map[string]interface{}) {
	moved, err := s.repo.MarkTerminal(w.ID, status, payload)
	if err != nil {
		logger.Log.Error("withdrawal: terminal transition failed",
			zap.String("withdrawal_id", w.ID), zap.Error(err))
		return
	}
	if !moved {
		return
	}

	metrics.WithdrawalsTotal.WithLabelValues(status).Inc()

	if status == model.StatusFailed || status == model.StatusCanceled {
		if err := s.users.AddBalance(w.UserID, w.Amount); err != nil {
			logger.Log.Error("withdrawal: refund failed",
				zap.String("withdrawal_id", w.ID),
				zap.String("amount", w.Amount.String()),
				zap.Error(err))
			return
		}
		logger.Log.Info("withdrawal refunded",
			zap.String("withdrawal_id", w.ID),
			zap.String("amount", w.Amount.String()))
		return
	}

	logger.Log.Info("withdrawal sent", zap.String("withdrawal_id", w.ID))
}

func (s *withdrawalService) GetByID(id string) (*model.Withdrawal, error) {
	return s.repo.GetByID(id)
}

func (s *withdrawalService) Reconcile(ctx context.Context) error {
	list, err := s.repo.ListProcessing()
	if err != nil {
		return err
	}

	for i := range list {
		w := &list[i]
		status, final, err := s.provider.Check(ctx, w.ID)
		if err != nil {
			logger.Log.Warn("withdrawal: reconcile check failed",
				zap.String("withdrawal_id", w.ID), zap.Error(err))
			continue
		}
		if !final {
			continue
		}
		s.finish(w, status, map[string]interface{}{"reconciled_status": status})
	}
	return nil
}

func (s *withdrawalService) StartReconciler(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Reconcile(ctx); err != nil {
					logger.Log.Error("withdrawal: reconcile failed", zap.Error(err))
				}
			}
		}
	}()
}
