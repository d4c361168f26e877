package service

import (
	"context"
	"errors"

	"starpay/internal/domain/referral/repository"
	userRepo "starpay/internal/domain/user/repository"
	"starpay/pkg/logger"
	"starpay/pkg/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrSelfReferral = errors.New("referral: user cannot refer themselves")

// RateSource converts between currencies for rewards settled off the coin
// ledger. Implemented by the rates client.
type RateSource interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

type ReferralService interface {
	// Link records referrer->referee by Telegram id. Idempotent; an
	// existing edge or a self-referral creates nothing.
	Link(ctx context.Context, referrerTgID, refereeTgID int64) error
	// Accrue credits the buyer's referrer with a share of the order margin.
	// The cost is carried in coin; the price is converted into coin before
	// the margin is taken, so fiat orders compare like for like. No referrer
	// or a non-positive margin is a no-op. The reward only ever increases
	// the referrer's balance.
	Accrue(ctx context.Context, buyerUserID string, price, cost decimal.Decimal, currency string) error
}

type referralService struct {
	repo    repository.ReferralRepository
	users   userRepo.UserRepository
	rates   RateSource
	percent decimal.Decimal
}

func NewReferralService(repo repository.ReferralRepository, users userRepo.UserRepository, rates RateSource, percent float64) ReferralService {
	return &referralService{
		repo:    repo,
		users:   users,
		rates:   rates,
		percent: decimal.NewFromFloat(percent),
	}
}

func (s *referralService) Link(ctx context.Context, referrerTgID, refereeTgID int64) error {
	if referrerTgID == refereeTgID {
		return ErrSelfReferral
	}

	referrer, err := s.users.GetByTgID(referrerTgID)
	if err != nil {
		return err
	}
	referee, err := s.users.GetByTgID(refereeTgID)
	if err != nil {
		return err
	}

	created, err := s.repo.CreateLinkIfAbsent(referrer.ID, referee.ID)
	if err != nil {
		return err
	}
	if created {
		logger.Log.Info("referral: link created",
			zap.Int64("referrer_tg_id", referrerTgID),
			zap.Int64("referee_tg_id", refereeTgID))
	}
	return nil
}

func (s *referralService) Accrue(ctx context.Context, buyerUserID string, price, cost decimal.Decimal, currency string) error {
	referrerID, err := s.repo.GetReferrerID(buyerUserID)
	if err != nil {
		return err
	}
	if referrerID == "" {
		return nil
	}

	price, err = s.toCoin(ctx, price, currency)
	if err != nil {
		return err
	}

	margin := price.Sub(cost)
	if margin.Sign() <= 0 {
		return nil
	}

	reward := margin.Mul(s.percent).Div(decimal.NewFromInt(100)).Round(9)
	if reward.Sign() <= 0 {
		return nil
	}

	if err := s.users.AddBalance(referrerID, reward); err != nil {
		return err
	}
	metrics.ReferralRewardsTotal.Inc()
	logger.Log.Info("referral: reward accrued",
		zap.String("referrer_id", referrerID),
		zap.String("reward", reward.String()))
	return nil
}

// toCoin converts a fiat amount into coin via USD. Coin amounts pass
// through untouched.
func (s *referralService) toCoin(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	if currency == "TON" {
		return amount, nil
	}

	toUSD, err := s.rates.Rate(ctx, currency, "USD")
	if err != nil {
		return decimal.Zero, err
	}
	usdToCoin, err := s.rates.Rate(ctx, "USD", "TON")
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(toUSD).Mul(usdToCoin), nil
}
