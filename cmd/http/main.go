package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-inventory-service/config"
	"github.com/fekuna/omnipos-inventory-service/internal/app"
	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	invH "github.com/fekuna/omnipos-inventory-service/internal/inventory/handler"
	invListenerPkg "github.com/fekuna/omnipos-inventory-service/internal/inventory/listener"
	"github.com/fekuna/omnipos-inventory-service/pkg/broker"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	appLogger := app.NewLogger(cfg)
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Database, cache, producer and ledger
	ledger, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Could not initialize inventory ledger", zap.Error(err))
	}
	defer ledger.Close()

	// 4. Order listener
	if cfg.Kafka.Enabled {
		kafkaConsumer := broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer kafkaConsumer.Close()
		appLogger.Info("Connected to Kafka Consumer", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))

		invListener := invListenerPkg.NewInventoryListener(kafkaConsumer, ledger.Inventory, ledger.TxManager, appLogger)
		go invListener.Start(ctx)
	}

	// 5. HTTP server
	router := mux.NewRouter()
	router.Use(auth.NewMiddleware(cfg.HTTP.JWTSecret))
	invH.NewInventoryHandler(ledger.Inventory, appLogger).RegisterRoutes(router)

	corsHandler := app.NewCORS(cfg.HTTP)

	port := cfg.Server.HTTPPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	server := &http.Server{
		Addr:         port,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("port", port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
