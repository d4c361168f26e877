package service

import (
	"context"
	"testing"

	"starpay/internal/domain/pricing/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockPricingRepository struct {
	mock.Mock
}

func (m *MockPricingRepository) GetActive(itemKind, currency, mode, botID string) (*model.PricingRule, error) {
	args := m.Called(itemKind, currency, mode, botID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PricingRule), args.Error(1)
}

func (m *MockPricingRepository) SetActive(itemKind, currency, mode, botID string, price decimal.Decimal, markup *decimal.Decimal) error {
	args := m.Called(itemKind, currency, mode, botID, price, markup)
	return args.Error(0)
}

func (m *MockPricingRepository) ActiveBotIDs() ([]string, error) {
	args := m.Called()
	return args.Get(0).([]string), args.Error(1)
}

type MockCostSource struct {
	mock.Mock
}

func (m *MockCostSource) UnitCost(ctx context.Context, kind string) (decimal.Decimal, error) {
	args := m.Called(ctx, kind)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestQuote(t *testing.T) {
	ctx := context.Background()

	t.Run("Manual rule returned verbatim", func(t *testing.T) {
		repo := new(MockPricingRepository)
		svc := NewPricingService(repo, new(MockCostSource), 40)

		repo.On("GetActive", "stars", "RUB", model.ModeManual, "bot1").Return(&model.PricingRule{
			ManualPrice: dec("1.75"),
		}, nil)

		price, err := svc.Quote(ctx, "stars", "RUB", "bot1")

		assert.NoError(t, err)
		assert.True(t, price.Equal(dec("1.75")))
		repo.AssertExpectations(t)
	})

	t.Run("Dynamic rule applies markup", func(t *testing.T) {
		repo := new(MockPricingRepository)
		svc := NewPricingService(repo, new(MockCostSource), 40)

		markup := dec("10")
		repo.On("GetActive", "stars", "TON", model.ModeManual, "bot1").Return(nil, nil)
		repo.On("GetActive", "stars", "TON", model.ModeDynamic, "bot1").Return(&model.PricingRule{
			ManualPrice:   dec("0.002"),
			MarkupPercent: &markup,
		}, nil)

		price, err := svc.Quote(ctx, "stars", "TON", "bot1")

		assert.NoError(t, err)
		assert.True(t, price.Equal(dec("0.0022")), "got %s", price)
	})

	t.Run("Dynamic rule without markup uses default percent", func(t *testing.T) {
		repo := new(MockPricingRepository)
		svc := NewPricingService(repo, new(MockCostSource), 40)

		repo.On("GetActive", "premium", "TON", model.ModeManual, "bot1").Return(nil, nil)
		repo.On("GetActive", "premium", "TON", model.ModeDynamic, "bot1").Return(&model.PricingRule{
			ManualPrice: dec("1"),
		}, nil)

		price, err := svc.Quote(ctx, "premium", "TON", "bot1")

		assert.NoError(t, err)
		assert.True(t, price.Equal(dec("1.4")), "got %s", price)
	})

	t.Run("Missing rule is a configuration error", func(t *testing.T) {
		repo := new(MockPricingRepository)
		svc := NewPricingService(repo, new(MockCostSource), 40)

		repo.On("GetActive", "stars", "TON", model.ModeManual, "bot1").Return(nil, nil)
		repo.On("GetActive", "stars", "TON", model.ModeDynamic, "bot1").Return(nil, nil)

		_, err := svc.Quote(ctx, "stars", "TON", "bot1")

		assert.ErrorIs(t, err, ErrRuleNotConfigured)
	})
}

func TestTotalRounding(t *testing.T) {
	svc := NewPricingService(new(MockPricingRepository), new(MockCostSource), 40)

	t.Run("Coin totals round up to 9 decimal places", func(t *testing.T) {
		// 0.333333333... * 3 must never round below 1 coin.
		unit := dec("1").Div(dec("3"))
		total := svc.Total(unit, 3, model.CurrencyCoin)

		assert.True(t, total.GreaterThanOrEqual(dec("1.000000000")), "got %s", total)
		assert.Equal(t, int32(-9), total.Exponent())
	})

	t.Run("Fiat totals round up to whole units", func(t *testing.T) {
		total := svc.Total(dec("1.75"), 3, "RUB")

		// 5.25 rounds up, never down.
		assert.True(t, total.Equal(dec("6")), "got %s", total)
	})

	t.Run("Exact totals are unchanged", func(t *testing.T) {
		total := svc.Total(dec("0.002"), 100, model.CurrencyCoin)

		assert.True(t, total.Equal(dec("0.2")), "got %s", total)
	})
}

func TestRefreshDynamic(t *testing.T) {
	ctx := context.Background()

	t.Run("Writes cost rules for every bot", func(t *testing.T) {
		repo := new(MockPricingRepository)
		costs := new(MockCostSource)
		svc := NewPricingService(repo, costs, 40)

		repo.On("ActiveBotIDs").Return([]string{"bot1", "bot2"}, nil)
		costs.On("UnitCost", ctx, "stars").Return(dec("0.002"), nil)
		costs.On("UnitCost", ctx, "premium").Return(dec("1.2"), nil)
		costs.On("UnitCost", ctx, "ton").Return(dec("1"), nil)
		repo.On("SetActive", mock.Anything, model.CurrencyCoin, model.ModeDynamic, mock.Anything, mock.Anything, (*decimal.Decimal)(nil)).Return(nil)

		err := svc.RefreshDynamic(ctx)

		assert.NoError(t, err)
		repo.AssertNumberOfCalls(t, "SetActive", 6)
	})

	t.Run("No bots means nothing to refresh", func(t *testing.T) {
		repo := new(MockPricingRepository)
		costs := new(MockCostSource)
		svc := NewPricingService(repo, costs, 40)

		repo.On("ActiveBotIDs").Return([]string{}, nil)

		err := svc.RefreshDynamic(ctx)

		assert.NoError(t, err)
		costs.AssertNotCalled(t, "UnitCost", mock.Anything, mock.Anything)
	})
}
