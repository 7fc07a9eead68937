package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fekuna/omnipos-inventory-service/config"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "app.db"))
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("LEDGER_DEFAULT_LOW_STOCK_THRESHOLD", "4")
	return config.LoadEnv()
}

func TestNew_SQLite(t *testing.T) {
	cfg := sqliteConfig(t)
	a, err := New(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	rec, err := a.Inventory.AdjustQuantity(context.Background(), &dto.AdjustQuantityInput{
		Owner:  model.Product("p-1"),
		Delta:  3,
		Reason: model.ReasonPurchase,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.LowStockThreshold)
	assert.Equal(t, model.StatusLowStock, rec.Status())
}

func TestOpenDatabase_UnknownDriver(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Database.Driver = "oracle"

	_, err := OpenDatabase(context.Background(), cfg)
	assert.ErrorContains(t, err, "oracle")
}
