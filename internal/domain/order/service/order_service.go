package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"starpay/internal/domain/order/model"
	"starpay/internal/domain/order/repository"
	"starpay/internal/domain/order/strategy"
	pricingService "starpay/internal/domain/pricing/service"
	userRepo "starpay/internal/domain/user/repository"
	"starpay/pkg/logger"
	"starpay/pkg/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedRail  = errors.New("order: unsupported payment rail")
	ErrInvalidQuantity  = errors.New("order: invalid quantity for item kind")
	ErrUnknownItemKind  = errors.New("order: unknown item kind")
	ErrMissingRecipient = errors.New("order: recipient required")
)

const minStars = 50

var premiumMonths = map[int64]bool{3: true, 6: true, 12: true}

// Accruer credits the buyer's referrer after settlement. The cost is
// coin-denominated; price is in the order currency.
type Accruer interface {
	Accrue(ctx context.Context, buyerUserID string, price, cost decimal.Decimal, currency string) error
}

// Deliverer hands the purchased good to the recipient.
type Deliverer interface {
	Deliver(ctx context.Context, kind, recipient string, quantity int64) (map[string]interface{}, error)
}

// Enqueuer schedules a durable fulfillment task.
type Enqueuer interface {
	Enqueue(ctx context.Context, orderID string) error
}

type CreateOrderInput struct {
	TgUserID  int64
	Username  *string
	BotID     string
	ItemKind  string
	Quantity  int64
	Currency  string
	Rail      string
	Recipient *string
}

type OrderService interface {
	// Create validates the purchase, prices it, records the order and opens
	// the payment on the chosen rail. A watcher goroutine then follows the
	// payment until settlement or timeout.
	Create(ctx context.Context, input CreateOrderInput) (*model.Order, *strategy.Instructions, error)
	GetByID(id string) (*model.Order, error)
	// HandlePaid settles the order. Exactly one caller wins the pending->paid
	// transition; only the winner triggers accrual and fulfillment, so the
	// webhook and the poller can race freely.
	HandlePaid(ctx context.Context, orderID string, proof map[string]interface{}) error
	// Fulfill performs one delivery attempt. Safe to retry: an already
	// delivered order is a no-op.
	Fulfill(ctx context.Context, orderID string) error
	RegisterStrategy(rail string, s strategy.ConfirmStrategy)
	// StartSweeper expires stale pending orders on an interval until ctx ends.
	StartSweeper(ctx context.Context, interval time.Duration, maxAge time.Duration)
}

type orderService struct {
	repo       repository.OrderRepository
	users      userRepo.UserRepository
	pricing    pricingService.PricingService
	accruer    Accruer
	deliverer  Deliverer
	queue      Enqueuer
	strategies map[string]strategy.ConfirmStrategy
}

func NewOrderService(
	repo repository.OrderRepository,
	users userRepo.UserRepository,
	pricing pricingService.PricingService,
	accruer Accruer,
	deliverer Deliverer,
	queue Enqueuer,
) OrderService {
	return &orderService{
		repo:       repo,
		users:      users,
		pricing:    pricing,
		accruer:    accruer,
		deliverer:  deliverer,
		queue:      queue,
		strategies: make(map[string]strategy.ConfirmStrategy),
	}
}

func (s *orderService) RegisterStrategy(rail string, st strategy.ConfirmStrategy) {
	s.strategies[rail] = st
}

func validateQuantity(kind string, quantity int64) error {
	switch kind {
	case model.KindStars:
		if quantity < minStars {
			return fmt.Errorf("%w: at least %d stars", ErrInvalidQuantity, minStars)
		}
	case model.KindPremium:
		if !premiumMonths[quantity] {
			return fmt.Errorf("%w: premium term must be 3, 6 or 12 months", ErrInvalidQuantity)
		}
	case model.KindTon:
		if quantity <= 0 {
			return fmt.Errorf("%w: amount must be positive", ErrInvalidQuantity)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownItemKind, kind)
	}
	return nil
}

func (s *orderService) Create(ctx context.Context, input CreateOrderInput) (*model.Order, *strategy.Instructions, error) {
	st, ok := s.strategies[input.Rail]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedRail, input.Rail)
	}
	if err := validateQuantity(input.ItemKind, input.Quantity); err != nil {
		return nil, nil, err
	}
	if recipient(input.Recipient, input.Username) == "" {
		return nil, nil, ErrMissingRecipient
	}

	user, err := s.users.UpsertFromFrontend(input.TgUserID, input.Username)
	if err != nil {
		return nil, nil, err
	}

	unit, err := s.pricing.Quote(ctx, input.ItemKind, input.Currency, input.BotID)
	if err != nil {
		return nil, nil, err
	}
	price := s.pricing.Total(unit, input.Quantity, input.Currency)

	// The margin baseline is pinned at creation so a later cost refresh
	// cannot change what the referrer earns from this order.
	var cost *decimal.Decimal
	if unitCost, err := s.pricing.CostQuote(ctx, input.ItemKind, input.BotID); err == nil {
		total := s.pricing.Total(unitCost, input.Quantity, "TON")
		cost = &total
	} else {
		logger.Log.Warn("order: cost baseline unavailable",
			zap.String("item_kind", input.ItemKind), zap.Error(err))
	}

	order := &model.Order{
		UserID:    user.ID,
		BotID:     input.BotID,
		Username:  input.Username,
		Recipient: input.Recipient,
		ItemKind:  input.ItemKind,
		Quantity:  input.Quantity,
		Price:     price,
		Income:    price,
		Currency:  input.Currency,
		Rail:      input.Rail,
		Status:    model.StatusPending,
		Cost:      cost,
	}
	if err := s.repo.Create(order); err != nil {
		return nil, nil, err
	}

	instr, err := st.Begin(ctx, order)
	if err != nil {
		return nil, nil, err
	}
	if err := s.mergeInstructions(order.ID, instr); err != nil {
		return nil, nil, err
	}

	metrics.OrdersCreatedTotal.WithLabelValues(order.ItemKind, order.Rail).Inc()
	logger.Log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("item_kind", order.ItemKind),
		zap.String("rail", order.Rail),
		zap.String("price", price.String()))

	go s.watch(order, st, instr)

	return order, instr, nil
}

func (s *orderService) mergeInstructions(orderID string, instr *strategy.Instructions) error {
	raw, err := json.Marshal(instr)
	if err != nil {
		return err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	return s.repo.MergePayload(orderID, fields)
}

// watch follows the payment off the request goroutine. The strategy owns
// the deadline; settlement goes through the same idempotent path webhooks
// use.
func (s *orderService) watch(order *model.Order, st strategy.ConfirmStrategy, instr *strategy.Instructions) {
	ctx := context.Background()

	proof, ok, err := st.Await(ctx, order, instr)
	if err != nil {
		logger.Log.Error("order: confirmation watch aborted",
			zap.String("order_id", order.ID), zap.Error(err))
		metrics.ConfirmationsTotal.WithLabelValues(order.Rail, "error").Inc()
		return
	}
	if !ok {
		// Not settled within the window; the sweeper expires the record.
		metrics.ConfirmationsTotal.WithLabelValues(order.Rail, "unsettled").Inc()
		return
	}

	metrics.ConfirmationsTotal.WithLabelValues(order.Rail, "confirmed").Inc()
	if err := s.HandlePaid(ctx, order.ID, proof); err != nil {
		logger.Log.Error("order: settlement failed after confirmation",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (s *orderService) GetByID(id string) (*model.Order, error) {
	return s.repo.GetByID(id)
}

func (s *orderService) HandlePaid(ctx context.Context, orderID string, proof map[string]interface{}) error {
	wasPending, err := s.repo.MarkPaid(orderID, proof)
	if err != nil {
		return err
	}
	if !wasPending {
		// Lost the race or the order already left pending; downstream
		// effects belong to the winner only.
		return nil
	}

	order, err := s.repo.GetByID(orderID)
	if err != nil {
		return err
	}

	metrics.OrdersPaidTotal.WithLabelValues(order.ItemKind, order.Rail).Inc()
	logger.Log.Info("order paid",
		zap.String("order_id", order.ID),
		zap.String("rail", order.Rail))

	if order.Cost != nil {
		if err := s.accruer.Accrue(ctx, order.UserID, order.Price, *order.Cost, order.Currency); err != nil {
			// Accrual must not block fulfillment; the buyer paid.
			logger.Log.Error("order: referral accrual failed",
				zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	if err := s.queue.Enqueue(ctx, order.ID); err != nil {
		logger.Log.Error("order: fulfillment enqueue failed",
			zap.String("order_id", order.ID), zap.Error(err))
		return err
	}
	return nil
}

func (s *orderService) Fulfill(ctx context.Context, orderID string) error {
	order, err := s.repo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order.Status != model.StatusPaid {
		logger.Log.Warn("order: fulfillment skipped, not paid",
			zap.String("order_id", orderID), zap.String("status", order.Status))
		return nil
	}
	if delivered(order.GatewayPayload) {
		return nil
	}

	result, err := s.deliverer.Deliver(ctx, order.ItemKind, recipient(order.Recipient, order.Username), order.Quantity)
	if err != nil {
		metrics.FulfillmentAttemptsTotal.WithLabelValues("failure").Inc()
		return err
	}

	if err := s.repo.MergePayload(order.ID, map[string]interface{}{
		"delivered": true,
		"delivery":  result,
	}); err != nil {
		return err
	}
	if err := s.repo.SetMessage(order.ID, "delivered"); err != nil {
		return err
	}

	metrics.FulfillmentAttemptsTotal.WithLabelValues("success").Inc()
	logger.Log.Info("order delivered", zap.String("order_id", order.ID))
	return nil
}

func recipient(explicit, username *string) string {
	if explicit != nil && *explicit != "" {
		return *explicit
	}
	if username != nil {
		return *username
	}
	return ""
}

func delivered(payload json.RawMessage) bool {
	if len(payload) == 0 {
		return false
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return false
	}
	flag, _ := fields["delivered"].(bool)
	return flag
}

func (s *orderService) StartSweeper(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.repo.ExpireStale(time.Now().Add(-maxAge))
				if err != nil {
					logger.Log.Error("order: expiry sweep failed", zap.Error(err))
					continue
				}
				if n > 0 {
					metrics.OrdersExpiredTotal.Add(float64(n))
					logger.Log.Info("order: expired stale orders", zap.Int64("count", n))
				}
			}
		}
	}()
}
