package pricing

import (
	"testing"

	"starpay/internal/pkg/registry"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestInitSharesOracle(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	assert.NoError(t, err)

	gin.SetMode(gin.TestMode)
	m := &PricingModule{}
	err = m.Init(&registry.ModuleContext{
		DB:     db,
		Redis:  redis.NewClient(&redis.Options{}),
		Router: gin.New(),
	})

	assert.NoError(t, err)
	// Consumers quote against the instance Init built, not a copy.
	assert.NotNil(t, Service())
}
