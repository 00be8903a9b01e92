package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/optilens/fulfillment/internal/audit"
	"github.com/optilens/fulfillment/internal/config"
	kafkax "github.com/optilens/fulfillment/internal/kafka"
	"github.com/optilens/fulfillment/internal/orders"
	"github.com/optilens/fulfillment/internal/postgres"
	"github.com/optilens/fulfillment/internal/redisx"
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

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &audit.Service{
		Repo:  &audit.Repo{DB: db},
		Redis: rdb,
		Log:   log.Named("auditor"),
	}

	group := getenv("AUDITOR_GROUP", "auditor-svc")
	workers := mustAtoi(os.Getenv("AUDITOR_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicAuditTrail, workers, log)

	go func() {
		log.Info("audit consumer started",
			zap.String("group", group),
			zap.String("topic", orders.TopicAuditTrail),
			zap.Int("workers", workers))
		if err := cons.Start(ctx, svc.HandleAuditEvent); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
