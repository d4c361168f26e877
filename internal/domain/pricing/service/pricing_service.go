package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"starpay/internal/domain/pricing/model"
	"starpay/internal/domain/pricing/repository"
	"starpay/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrRuleNotConfigured means no active pricing rule exists for the requested
// tuple. Callers must fail the quote; falling back to a stale or zero price
// would under-charge or over-charge silently.
var ErrRuleNotConfigured = errors.New("pricing: no active rule configured")

// CostSource quotes the house's current per-unit cost in coin. Implemented
// by the delivery provider client.
type CostSource interface {
	UnitCost(ctx context.Context, kind string) (decimal.Decimal, error)
}

type PricingService interface {
	// Quote resolves the current unit price for an item in a currency. A
	// manual rule wins; otherwise the dynamic rule's base gets the markup
	// applied.
	Quote(ctx context.Context, itemKind, currency, botID string) (decimal.Decimal, error)
	// CostQuote returns the dynamic base price without markup, the house's
	// own cost, used as the margin baseline for referral accrual.
	CostQuote(ctx context.Context, itemKind, botID string) (decimal.Decimal, error)
	// Total prices a quantity, rounding up: whole units for fiat, 9 decimal
	// places for coin.
	Total(unitPrice decimal.Decimal, quantity int64, currency string) decimal.Decimal
	// RefreshDynamic pulls current unit costs from the cost source and
	// rewrites the dynamic rules for every known bot.
	RefreshDynamic(ctx context.Context) error
	// StartRefresher runs RefreshDynamic on a fixed interval until ctx ends.
	StartRefresher(ctx context.Context, interval time.Duration)
}

type pricingService struct {
	repo           repository.PricingRepository
	costs          CostSource
	defaultMarkup  decimal.Decimal
	refreshedKinds []string
}

func NewPricingService(repo repository.PricingRepository, costs CostSource, defaultMarkupPercent float64) PricingService {
	return &pricingService{
		repo:           repo,
		costs:          costs,
		defaultMarkup:  decimal.NewFromFloat(defaultMarkupPercent),
		refreshedKinds: []string{model.KindStars, model.KindPremium, model.KindTon},
	}
}

func (s *pricingService) Quote(ctx context.Context, itemKind, currency, botID string) (decimal.Decimal, error) {
	manual, err := s.repo.GetActive(itemKind, currency, model.ModeManual, botID)
	if err != nil {
		return decimal.Zero, err
	}
	if manual != nil {
		return manual.ManualPrice, nil
	}

	dynamic, err := s.repo.GetActive(itemKind, currency, model.ModeDynamic, botID)
	if err != nil {
		return decimal.Zero, err
	}
	if dynamic == nil {
		return decimal.Zero, fmt.Errorf("%w: %s/%s", ErrRuleNotConfigured, itemKind, currency)
	}

	markup := s.defaultMarkup
	if dynamic.MarkupPercent != nil {
		markup = *dynamic.MarkupPercent
	}
	// base * (1 + markup/100)
	factor := decimal.NewFromInt(1).Add(markup.Div(decimal.NewFromInt(100)))
	return dynamic.ManualPrice.Mul(factor), nil
}

func (s *pricingService) CostQuote(ctx context.Context, itemKind, botID string) (decimal.Decimal, error) {
	dynamic, err := s.repo.GetActive(itemKind, model.CurrencyCoin, model.ModeDynamic, botID)
	if err != nil {
		return decimal.Zero, err
	}
	if dynamic == nil {
		return decimal.Zero, fmt.Errorf("%w: %s cost", ErrRuleNotConfigured, itemKind)
	}
	return dynamic.ManualPrice, nil
}

func (s *pricingService) Total(unitPrice decimal.Decimal, quantity int64, currency string) decimal.Decimal {
	total := unitPrice.Mul(decimal.NewFromInt(quantity))
	if currency == model.CurrencyCoin {
		// Round up to nano precision so the house never under-charges.
		return total.RoundUp(9)
	}
	// Fiat gateways take whole currency units.
	return total.RoundUp(0)
}

func (s *pricingService) RefreshDynamic(ctx context.Context) error {
	botIDs, err := s.repo.ActiveBotIDs()
	if err != nil {
		return err
	}
	if len(botIDs) == 0 {
		return nil
	}

	for _, kind := range s.refreshedKinds {
		cost, err := s.costs.UnitCost(ctx, kind)
		if err != nil {
			// One kind failing must not starve the others; the stale
			// dynamic rule stays active until the next cycle.
			logger.Log.Warn("pricing: cost refresh failed",
				zap.String("kind", kind), zap.Error(err))
			continue
		}
		for _, botID := range botIDs {
			if err := s.repo.SetActive(kind, model.CurrencyCoin, model.ModeDynamic, botID, cost, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *pricingService) StartRefresher(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		if err := s.RefreshDynamic(ctx); err != nil {
			logger.Log.Error("pricing: initial refresh failed", zap.Error(err))
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.RefreshDynamic(ctx); err != nil {
					logger.Log.Error("pricing: refresh failed", zap.Error(err))
				}
			}
		}
	}()
}
