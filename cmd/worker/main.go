package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/flightseats/config"
	"github.com/Domenick1991/flightseats/internal/bootstrap"
	"github.com/Domenick1991/flightseats/internal/email"
	"github.com/Domenick1991/flightseats/internal/kafka"
	"github.com/Domenick1991/flightseats/internal/logger"
	"github.com/Domenick1991/flightseats/internal/metrics"
	"github.com/Domenick1991/flightseats/internal/service/expiry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log, "flightseats-worker")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.NewInfra(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("init infrastructure", zap.Error(err))
	}
	defer infra.Close()

	m := metrics.New()
	sweeperOpts := []expiry.Option{expiry.WithMetrics(m)}
	if notifier := infra.Notifier(cfg, zlog); notifier != nil {
		sweeperOpts = append(sweeperOpts, expiry.WithNotifier(notifier))
	}
	sweeper := expiry.NewSweeper(infra.Store, infra.Locker, zlog, sweeperOpts...)

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, zlog)
		defer consumer.Close()

		sender := email.NewSender(zlog)
		g.Go(func() error {
			return consumer.Consume(gctx, sender.Send)
		})
	} else {
		zlog.Warn("kafka brokers not configured, email delivery disabled")
	}

	g.Go(func() error {
		return bootstrap.ServeMetrics(gctx, cfg.Worker.MetricsAddress, m.Handler(), zlog)
	})

	g.Go(func() error {
		return sweeper.Run(gctx, time.Duration(cfg.Worker.ExpirationSweepMinutes)*time.Minute)
	})

	if err := g.Wait(); err != nil {
		zlog.Error("worker stopped", zap.Error(err))
		return
	}
	zlog.Info("worker stopped")
}
