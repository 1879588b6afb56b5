package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/anmolvirk/swiftcart-backend/internal/activity"
	"github.com/anmolvirk/swiftcart-backend/internal/address"
	"github.com/anmolvirk/swiftcart-backend/internal/cart"
	"github.com/anmolvirk/swiftcart-backend/internal/catalog"
	"github.com/anmolvirk/swiftcart-backend/internal/inventory"
	"github.com/anmolvirk/swiftcart-backend/internal/orders"
	"github.com/anmolvirk/swiftcart-backend/internal/sweeper"
	"github.com/anmolvirk/swiftcart-backend/pkg/config"
	"github.com/anmolvirk/swiftcart-backend/pkg/db"
	"github.com/anmolvirk/swiftcart-backend/pkg/gateway/razorpay"
	"github.com/anmolvirk/swiftcart-backend/pkg/logger"
	"github.com/anmolvirk/swiftcart-backend/pkg/migrate"
	"github.com/anmolvirk/swiftcart-backend/pkg/redis"
)

const lockKeyFormat = "sc:sweeper:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweeper"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "sweeper",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gatewayClient, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create razorpay client", err)
		os.Exit(1)
	}

	ordersSvc := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		cart.NewRepository(dbClient.DB()),
		catalog.NewRepository(dbClient.DB()),
		address.NewRepository(dbClient.DB()),
		dbClient,
		inventory.NewLedger(),
		gatewayClient,
		gatewayClient.KeyID(),
		cfg.Checkout,
		activity.NewRecorder(logg),
		logg,
	)

	lock, err := sweeper.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Sweeper.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep lock", err)
		os.Exit(1)
	}

	service, err := sweeper.NewService(sweeper.ServiceParams{
		Logger:        logg,
		Orders:        ordersSvc,
		Lock:          lock,
		Metrics:       sweeper.NewMetrics(prometheus.DefaultRegisterer),
		Interval:      cfg.Sweeper.Interval,
		PaymentWindow: cfg.Sweeper.PaymentWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env": cfg.App.Env,
	})
	logg.Info(ctx, "starting stale-order sweeper")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweeper stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sweeper shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
