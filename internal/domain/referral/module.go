package referral

import (
	"starpay/internal/clients/rates"
	"starpay/internal/domain/referral/handler"
	"starpay/internal/domain/referral/repository"
	"starpay/internal/domain/referral/service"
	userRepo "starpay/internal/domain/user/repository"
	"starpay/internal/pkg/config"
	"starpay/internal/pkg/middleware"
	"starpay/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

type ReferralModule struct{}

func init() {
	registry.Register(&ReferralModule{})
}

func (m *ReferralModule) Name() string {
	return "referral"
}

func (m *ReferralModule) Priority() int {
	// Depends on the user module.
	return 15
}

func (m *ReferralModule) Init(ctx *registry.ModuleContext) error {
	rRepo := repository.NewReferralRepository(ctx.DB)
	uRepo := userRepo.NewUserRepository(ctx.DB)
	ratesClient := rates.NewClient(config.GlobalConfig.Rates)

	rService := service.NewReferralService(rRepo, uRepo, ratesClient, config.GlobalConfig.Referral.Percent)
	rHandler := handler.NewReferralHandler(rService)

	setupRoutes(ctx.Router, rHandler)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.ReferralHandler) {
	g := r.Group("/referrals")
	g.Use(middleware.AuthMiddleware())
	{
		g.POST("", h.Link)
	}
}
