package pricing

import (
	"context"
	"time"

	"starpay/internal/clients/delivery"
	"starpay/internal/domain/pricing/handler"
	"starpay/internal/domain/pricing/repository"
	"starpay/internal/domain/pricing/service"
	"starpay/internal/pkg/config"
	"starpay/internal/pkg/middleware"
	"starpay/internal/pkg/registry"
	"starpay/pkg/cache"

	"github.com/gin-gonic/gin"
)

const refreshInterval = 10 * time.Minute

// defaultService is the single oracle instance, set by Init. The refresher
// and every consumer quote against the same service.
var defaultService service.PricingService

type PricingModule struct{}

func init() {
	registry.Register(&PricingModule{})
}

func (m *PricingModule) Name() string {
	return "pricing"
}

func (m *PricingModule) Priority() int {
	// Orders quote against pricing, so it comes up first.
	return 10
}

func (m *PricingModule) Init(ctx *registry.ModuleContext) error {
	cfg := &config.GlobalConfig

	pRepo := repository.NewPricingRepository(ctx.DB)
	tokens := cache.NewRedisCache(ctx.Redis, "starpay:")
	deliveryClient := delivery.NewClient(cfg.Delivery, tokens)
	pService := service.NewPricingService(pRepo, deliveryClient, cfg.Referral.Percent)

	defaultService = pService
	pService.StartRefresher(context.Background(), refreshInterval)

	pHandler := handler.NewPricingHandler(pService)
	setupRoutes(ctx.Router, pHandler)

	return nil
}

// Service returns the oracle for other modules. Valid after Init; the
// registry initializes pricing before its consumers.
func Service() service.PricingService {
	return defaultService
}

func setupRoutes(r *gin.Engine, h *handler.PricingHandler) {
	g := r.Group("/pricing")
	g.Use(middleware.AuthMiddleware())
	{
		g.GET("/quote", h.Quote)
	}
}
