package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/anmolvirk/swiftcart-backend/api/routes"
	"github.com/anmolvirk/swiftcart-backend/internal/activity"
	"github.com/anmolvirk/swiftcart-backend/internal/address"
	"github.com/anmolvirk/swiftcart-backend/internal/cart"
	"github.com/anmolvirk/swiftcart-backend/internal/catalog"
	"github.com/anmolvirk/swiftcart-backend/internal/inventory"
	"github.com/anmolvirk/swiftcart-backend/internal/orders"
	"github.com/anmolvirk/swiftcart-backend/internal/reconcile"
	"github.com/anmolvirk/swiftcart-backend/pkg/config"
	"github.com/anmolvirk/swiftcart-backend/pkg/db"
	"github.com/anmolvirk/swiftcart-backend/pkg/gateway/razorpay"
	"github.com/anmolvirk/swiftcart-backend/pkg/logger"
	"github.com/anmolvirk/swiftcart-backend/pkg/migrate"
	"github.com/anmolvirk/swiftcart-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	ordersRepo := orders.NewRepository(dbClient.DB())
	ledger := inventory.NewLedger()

	ordersSvc := orders.NewService(
		ordersRepo,
		cart.NewRepository(dbClient.DB()),
		catalog.NewRepository(dbClient.DB()),
		address.NewRepository(dbClient.DB()),
		dbClient,
		ledger,
		gatewayClient,
		gatewayClient.KeyID(),
		cfg.Checkout,
		activity.NewRecorder(logg),
		logg,
	)

	reconcileSvc := reconcile.NewService(
		ordersRepo,
		dbClient,
		ledger,
		gatewayClient.Verifier(),
		gatewayClient,
		reconcile.NewMetrics(prometheus.DefaultRegisterer),
		logg,
	)

	webhookGuard, err := reconcile.NewIdempotencyGuard(redisClient, cfg.Razorpay.EventTTL, "razorpay-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			ordersSvc,
			reconcileSvc,
			gatewayClient.Verifier(),
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
