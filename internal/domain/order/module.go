package order

import (
	"context"
	"time"

	"starpay/internal/clients/chain"
	"starpay/internal/clients/cryptopay"
	"starpay/internal/clients/delivery"
	"starpay/internal/clients/gateway"
	"starpay/internal/clients/rates"
	"starpay/internal/domain/order/handler"
	"starpay/internal/domain/order/model"
	"starpay/internal/domain/order/repository"
	"starpay/internal/domain/order/service"
	"starpay/internal/domain/order/strategy"
	"starpay/internal/domain/pricing"
	referralRepo "starpay/internal/domain/referral/repository"
	referralService "starpay/internal/domain/referral/service"
	userRepo "starpay/internal/domain/user/repository"
	"starpay/internal/pkg/config"
	"starpay/internal/pkg/middleware"
	"starpay/internal/pkg/queue"
	"starpay/internal/pkg/registry"
	"starpay/pkg/cache"

	"github.com/gin-gonic/gin"
)

type OrderModule struct{}

func init() {
	registry.Register(&OrderModule{})
}

func (m *OrderModule) Name() string {
	return "order"
}

func (m *OrderModule) Priority() int {
	// Depends on user, pricing and referral.
	return 20
}

func (m *OrderModule) Init(ctx *registry.ModuleContext) error {
	cfg := &config.GlobalConfig

	oRepo := repository.NewOrderRepository(ctx.DB)
	uRepo := userRepo.NewUserRepository(ctx.DB)

	tokens := cache.NewRedisCache(ctx.Redis, "starpay:")
	deliveryClient := delivery.NewClient(cfg.Delivery, tokens)

	// The pricing module owns the oracle and its refresher; orders quote
	// against the same instance.
	pricingSvc := pricing.Service()

	rRepo := referralRepo.NewReferralRepository(ctx.DB)
	ratesClient := rates.NewClient(cfg.Rates)
	accruer := referralService.NewReferralService(rRepo, uRepo, ratesClient, cfg.Referral.Percent)

	// The pool and the service reference each other: the pool runs
	// fulfillment attempts, the service enqueues them.
	var oService service.OrderService
	pool := queue.NewWorkerPool(ctx.Redis,
		func(taskCtx context.Context, task queue.Task) error {
			return oService.Fulfill(taskCtx, task.OrderID)
		},
		cfg.Queue.Workers,
		cfg.Queue.MaxAttempts,
		time.Duration(cfg.Queue.BaseBackoffSec)*time.Second,
	)

	oService = service.NewOrderService(oRepo, uRepo, pricingSvc, accruer, deliveryClient, pool)

	oService.RegisterStrategy(model.RailChain,
		strategy.NewChainStrategy(chain.NewClient(cfg.Chain), cfg.Wallet, cfg.Confirm))
	if cfg.Gateway.MerchantID != "" {
		oService.RegisterStrategy(model.RailGateway,
			strategy.NewGatewayStrategy(gateway.NewClient(cfg.Gateway), cfg.Confirm))
	}
	if cfg.CryptoPay.MerchantID != "" {
		oService.RegisterStrategy(model.RailInvoice,
			strategy.NewInvoiceStrategy(cryptopay.NewClient(cfg.CryptoPay), cfg.Confirm))
	}

	bg := context.Background()
	pool.Start(bg)
	oService.StartSweeper(bg, cfg.Confirm.SweepInterval(), cfg.Confirm.Timeout())

	oHandler := handler.NewOrderHandler(oService)
	setupRoutes(ctx.Router, oHandler)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.OrderHandler) {
	// Provider callback; authenticated by signature, not by service token.
	r.POST("/callbacks/cryptopay", h.CryptoPayWebhook)

	g := r.Group("/orders")
	g.Use(middleware.AuthMiddleware())
	{
		g.POST("", h.CreateOrder)
		g.GET("/:id", h.GetOrder)
	}
}
