package app

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-service/config"
	"github.com/fekuna/omnipos-inventory-service/internal/catalog"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/publisher"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/repository"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/usecase"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/pkg/broker"
	"github.com/fekuna/omnipos-inventory-service/pkg/cache"
	"github.com/fekuna/omnipos-inventory-service/pkg/database"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// App holds the ledger and the infrastructure it was built on.
type App struct {
	Config    *config.Config
	Logger    logger.ZapLogger
	DB        *sqlx.DB
	TxManager *database.TxManager
	Inventory inventory.UseCase

	closers []func() error
}

func NewLogger(cfg *config.Config) logger.ZapLogger {
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}

	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		logConfig.Level = cfg.Logger.Level
	}
	return logger.NewZapLogger(logConfig)
}

// OpenDatabase connects to the configured driver and applies the schema.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = database.NewPostgres(&database.PostgresConfig{
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			DBName:          cfg.Postgres.DBName,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
		})
	case "sqlite":
		db, err = database.NewSQLite(cfg.SQLite.Path, cfg.Ledger.LockTimeout)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := repository.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New wires the ledger. Redis and the stock event producer are optional:
// an unreachable Redis only disables caching.
func New(ctx context.Context, cfg *config.Config, log logger.ZapLogger) (*App, error) {
	db, err := OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	a := &App{Config: cfg, Logger: log, DB: db}
	a.closers = append(a.closers, db.Close)
	log.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	a.TxManager = database.NewTxManager(db, cfg.Ledger.LockTimeout)
	repo := repository.NewSQLRepository(db)

	var opts []usecase.Option
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("Could not connect to Redis, inventory cache disabled", zap.Error(err))
		} else {
			a.closers = append(a.closers, redisClient.Close)
			opts = append(opts, usecase.WithCache(redisClient))
			log.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
		}
	}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(&broker.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.StockTopic,
		})
		a.closers = append(a.closers, producer.Close)
		opts = append(opts, usecase.WithPublisher(publisher.NewStockEventPublisher(producer)))
		log.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.StockTopic))
	}
	if cfg.Ledger.VerifyOwners {
		opts = append(opts, usecase.WithOwnerDirectory(catalog.NewSQLDirectory(db)))
	}

	a.Inventory = usecase.NewInventoryUseCase(repo, a.TxManager, log, usecase.Config{
		Defaults: model.Thresholds{
			LowStockThreshold: cfg.Ledger.DefaultLowStockThreshold,
			ReorderPoint:      cfg.Ledger.DefaultReorderPoint,
			ReorderQuantity:   cfg.Ledger.DefaultReorderQuantity,
		},
		VerifyOwners: cfg.Ledger.VerifyOwners,
		CacheTTL:     cfg.Redis.CacheTTL,
	}, opts...)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
