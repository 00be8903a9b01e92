package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/optilens/fulfillment/internal/config"
	"github.com/optilens/fulfillment/internal/httpx"
	kafkax "github.com/optilens/fulfillment/internal/kafka"
	"github.com/optilens/fulfillment/internal/ledger"
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

	// Kafka producers, one per topic
	pub := httpx.Publishers{
		OrderCreated:   kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log),
		OrderCancelled: kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024, log),
		StockReserved:  kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockReserved, 1024, log),
		StockRejected:  kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockRejected, 1024, log),
		Audit:          kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicAuditTrail, 1024, log),
	}
	producers := []*kafkax.Producer{
		pub.OrderCreated, pub.OrderCancelled, pub.StockReserved, pub.StockRejected, pub.Audit,
	}
	for _, p := range producers {
		p.Start(ctx)
	}

	// Ledger, repo, handler
	led := &ledger.Ledger{DB: db, Log: log.Named("ledger")}
	repo := &orders.Repo{DB: db, Ledger: led}
	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Repo:    repo,
		Pub:     pub,
		Redis:   rdb,
		Log:     log.Named("http"),
		Service: cfg.ServiceName,
	}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sig:
		case <-gctx.Done():
		}
		log.Info("shutting down")

		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = srv.Shutdown(sctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("exit", zap.Error(err))
	}

	// flush producers: close inbox, stop loops, wait for drain
	for _, p := range producers {
		p.Close()
	}
	cancel()
	for _, p := range producers {
		p.WaitClosed()
	}
}
