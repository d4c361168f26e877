package withdrawal

import (
	"context"

	"starpay/internal/clients/chain"
	"starpay/internal/clients/cryptopay"
	userRepo "starpay/internal/domain/user/repository"
	"starpay/internal/domain/withdrawal/handler"
	"starpay/internal/domain/withdrawal/repository"
	"starpay/internal/domain/withdrawal/service"
	"starpay/internal/pkg/config"
	"starpay/internal/pkg/middleware"
	"starpay/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

type WithdrawalModule struct{}

func init() {
	registry.Register(&WithdrawalModule{})
}

func (m *WithdrawalModule) Name() string {
	return "withdrawal"
}

func (m *WithdrawalModule) Priority() int {
	// Depends on the user module's balance ledger.
	return 25
}

func (m *WithdrawalModule) Init(ctx *registry.ModuleContext) error {
	cfg := &config.GlobalConfig

	wRepo := repository.NewWithdrawalRepository(ctx.DB)
	uRepo := userRepo.NewUserRepository(ctx.DB)

	var provider service.PayoutProvider
	if cfg.Withdrawal.Provider == "cryptopay" {
		provider = service.NewCryptoPayoutProvider(cryptopay.NewClient(cfg.CryptoPay), "TON")
	} else {
		provider = service.NewChainPayoutProvider(chain.NewClient(cfg.Chain))
	}

	wService := service.NewWithdrawalService(wRepo, uRepo, provider,
		cfg.Withdrawal.MinAmount, cfg.Withdrawal.MaxAmount)

	interval := cfg.Withdrawal.ReconcileInterval()
	wService.StartReconciler(context.Background(), interval)

	wHandler := handler.NewWithdrawalHandler(wService)
	setupRoutes(ctx.Router, wHandler)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.WithdrawalHandler) {
	g := r.Group("/withdrawals")
	g.Use(middleware.AuthMiddleware())
	{
		g.POST("", h.Request)
		g.GET("/:id", h.GetWithdrawal)
	}
}
