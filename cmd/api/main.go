package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"shopapi/internal/config"
	"shopapi/internal/db"
	"shopapi/internal/gateway"
	"shopapi/internal/httpserver"
	"shopapi/internal/metrics"
	cartrepo "shopapi/internal/repository/cart"
	orderrepo "shopapi/internal/repository/order"
	paymentrepo "shopapi/internal/repository/payment"
	productrepo "shopapi/internal/repository/product"
	ordersvc "shopapi/internal/service/order"
	"shopapi/internal/service/reconcile"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	redisClient, err := db.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Fatalf("connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	productRepo := productrepo.NewPostgres(dbpool, logger)
	paymentRepo := paymentrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool)

	stripe := gateway.NewStripe(cfg.StripeAPIURL, cfg.StripeSecretKey, cfg.GatewayTimeout, logger)
	m := metrics.New()

	// One lock set serves both the order service and the reconciliation
	// engine so all per-order mutations serialize on the same mutex.
	locks := reconcile.NewOrderLocks()
	orderService := ordersvc.New(orderRepo, productRepo, paymentRepo, stripe, locks, logger)
	reconciler := reconcile.NewEngine(orderRepo, paymentRepo, productRepo, cartRepo, locks, m, logger)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		OrderSvc:    orderService,
		Reconciler:  reconciler,
		Gateway:     stripe,
		CartRepo:    cartRepo,
		ProductRepo: productRepo,
		Metrics:     m,

		JWTSecret:     cfg.JWTSecret,
		WebhookSecret: cfg.StripeWebhookSecret,

		Redis:              redisClient,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSOrigins:        cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
