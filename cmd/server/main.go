package main

import (
	"log"

	"starpay/internal/pkg/config"
	"starpay/internal/pkg/middleware"
	"starpay/internal/pkg/registry"
	"starpay/pkg/database"
	"starpay/pkg/logger"

	orderModel "starpay/internal/domain/order/model"
	pricingModel "starpay/internal/domain/pricing/model"
	referralModel "starpay/internal/domain/referral/model"
	userModel "starpay/internal/domain/user/model"
	withdrawalModel "starpay/internal/domain/withdrawal/model"

	_ "starpay/internal/domain/order"
	_ "starpay/internal/domain/pricing"
	_ "starpay/internal/domain/referral"
	_ "starpay/internal/domain/withdrawal"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

func main() {
	config.LoadConfig()

	debug := config.GlobalConfig.Server.Mode == "debug"
	if err := logger.Init(debug); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	db := database.InitDatabase()
	rdb := database.InitRedis()

	if err := migrate(db); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.RateLimitMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"X-Request-ID"},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	moduleCtx := &registry.ModuleContext{
		DB:     db,
		Redis:  rdb,
		Router: r,
	}
	if err := registry.InitModules(moduleCtx); err != nil {
		log.Fatalf("Failed to init modules: %v", err)
	}

	addr := ":" + config.GlobalConfig.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&userModel.User{},
		&pricingModel.PricingRule{},
		&referralModel.Referral{},
		&orderModel.Order{},
		&withdrawalModel.Withdrawal{},
	)
}
