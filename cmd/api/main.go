package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/burdemar/orderflow/internal/auth"
	"github.com/burdemar/orderflow/internal/catalog"
	"github.com/burdemar/orderflow/internal/clock"
	"github.com/burdemar/orderflow/internal/config"
	"github.com/burdemar/orderflow/internal/httpx"
	"github.com/burdemar/orderflow/internal/inventory"
	kafkax "github.com/burdemar/orderflow/internal/kafka"
	"github.com/burdemar/orderflow/internal/orders"
	"github.com/burdemar/orderflow/internal/postgres"
	"github.com/burdemar/orderflow/internal/redisx"
	"github.com/burdemar/orderflow/migrations"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db.Pool); err != nil {
		log.Fatal("apply migrations", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer func() { _ = rdb.Close() }()
	cache := redisx.NewCache(rdb)

	// Kafka producer for lifecycle events
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, log)
	prod.Start(ctx)

	clk := clock.NewSystem()

	// Stores and services
	productRepo := catalog.NewRepo(db)
	orderRepo := orders.NewRepo(db)
	invManager := inventory.NewManager(productRepo, clk)
	orderSvc := orders.NewService(orderRepo, invManager, clk, log,
		orders.WithPublisher(prod, cfg.ServiceName))
	productSvc := catalog.NewService(productRepo, orderRepo, clk, log)

	tokens := auth.NewTokens(cfg.JWTSecret)
	authSvc := auth.NewService(auth.NewRepo(db), tokens, clk, log)

	// Bootstrap data
	if err := authSvc.EnsureAdmin(ctx, cfg.AdminUser, cfg.AdminPassword); err != nil {
		log.Fatal("ensure admin", zap.Error(err))
	}
	if err := productSvc.Seed(ctx); err != nil {
		log.Fatal("seed products", zap.Error(err))
	}

	// Expiry sweeper
	sweeper := orders.NewSweeper(orderSvc, clk, cfg.SweepInterval, log)
	sweepDone := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(sweepDone)
	}()

	// HTTP
	router := httpx.NewRouter(log)
	(&httpx.AuthHandler{Svc: authSvc}).Register(router)
	(&httpx.ProductsHandler{Svc: productSvc, Cache: cache, Tokens: tokens, Log: log}).Register(router)
	(&httpx.OrdersHandler{Svc: orderSvc, Cache: cache, Log: log}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	// Stop the sweeper before closing the producer; a sweep in flight may
	// still publish expiry events.
	cancel()
	<-sweepDone

	prod.Close()
	prod.WaitClosed()
}
