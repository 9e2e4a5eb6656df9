package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeynil/ReWearExchange/internal/api"
	"github.com/honeynil/ReWearExchange/internal/config"
	"github.com/honeynil/ReWearExchange/internal/handler"
	"github.com/honeynil/ReWearExchange/internal/infrastructure/kafka"
	"github.com/honeynil/ReWearExchange/internal/infrastructure/moderation"
	"github.com/honeynil/ReWearExchange/internal/infrastructure/redis"
	"github.com/honeynil/ReWearExchange/internal/observability"
	"github.com/honeynil/ReWearExchange/internal/repository"
	"github.com/honeynil/ReWearExchange/internal/repository/memory"
	"github.com/honeynil/ReWearExchange/internal/repository/postgres"
	service "github.com/honeynil/ReWearExchange/internal/services"
	_ "github.com/lib/pq"
)

const sweepInterval = time.Minute

func main() {
	cfg := config.Load()

	// Инициализируем логи, метрики, трейсы
	shutdownTracing := observability.Setup("rewear-exchange", cfg)
	defer shutdownTracing(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключаемся к Postgres
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		slog.Error("failed to open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		slog.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	store := postgres.NewStore(db)

	redisClient, err := redis.NewClient(cfg.RedisAddr)
	if err != nil {
		slog.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	balances := redis.NewBalanceCache(redisClient)

	var sessions repository.SessionStore
	switch cfg.SessionStore {
	case "memory":
		sessions = memory.NewSessionStore()
	default:
		sessions = redis.NewSessionStore(redisClient)
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	// Консьюмер сбрасывает кэш баланса по событиям леджера
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, "rewear-balance-cache", balances)
	defer consumer.Close()
	go consumer.Consume(ctx)

	var gateway moderation.Gateway = moderation.ManualReview()
	if cfg.ModerationURL != "" {
		gateway = moderation.NewHTTPGateway(cfg.ModerationURL, cfg.ModerationTimeout)
	} else {
		slog.Warn("MODERATION_URL is not set, every listing goes to manual review")
	}

	ledger, err := service.NewLedgerService(store, balances, producer, cfg.PayoutPattern)
	if err != nil {
		slog.Error("failed to init ledger service", "error", err)
		os.Exit(1)
	}
	payments := service.NewPaymentService(store, sessions, balances, producer, service.PaymentConfig{
		SessionTTL:      cfg.SessionTTL,
		GatewayDelay:    cfg.GatewayDelay,
		DeclineRate:     cfg.DeclineRate,
		DonationMin:     cfg.DonationMin,
		DonationMax:     cfg.DonationMax,
		DonationDefault: cfg.DonationDefault,
		Currency:        service.DefaultPaymentConfig().Currency,
		ClaimTTL:        service.DefaultPaymentConfig().ClaimTTL,
	})
	go payments.RunSweeper(ctx, sweepInterval)

	h := handler.NewHandler(
		service.NewListingService(store, gateway, cfg.ModerationTimeout),
		payments,
		service.NewOrderService(store, balances, producer),
		ledger,
		service.NewExchangeService(store, producer),
		service.NewAdminService(store),
	)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.SetupRouter(h, cfg.JWTSecret),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}
