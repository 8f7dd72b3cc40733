package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/payflow-backend/internal/cron"
	"github.com/angelmondragon/payflow-backend/internal/events"
	"github.com/angelmondragon/payflow-backend/internal/gateway"
	"github.com/angelmondragon/payflow-backend/internal/payments"
	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/db"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/metrics"
	"github.com/angelmondragon/payflow-backend/pkg/migrate"
	"github.com/angelmondragon/payflow-backend/pkg/pubsub"
	"github.com/angelmondragon/payflow-backend/pkg/redis"
	pkgsquare "github.com/angelmondragon/payflow-backend/pkg/square"
	pkgstripe "github.com/angelmondragon/payflow-backend/pkg/stripe"
)

const lockKeyFormat = "reconcile-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "reconcile-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "reconcile-worker"

	logg = logger.New(logger.Options{
		ServiceName: "reconcile-worker",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	paymentGateway, err := buildGateway(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payment gateway", err)
		os.Exit(1)
	}

	publisher, err := events.NewPublisher(events.PublisherParams{
		Topic:         events.NewGCPTopicPublisher(pubsubClient.PaymentsPublisher()),
		Logger:        logg,
		OriginService: cfg.Service.Name,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create event publisher", err)
		os.Exit(1)
	}

	repo := payments.NewRepository(dbClient.DB())
	service, err := payments.NewService(payments.ServiceParams{
		Logger:    logg,
		Repo:      repo,
		Gateway:   paymentGateway,
		Publisher: publisher,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewReconcileMetrics(prometheus.DefaultRegisterer)

	job, err := cron.NewReconcileJob(cron.ReconcileJobParams{
		Logger:     logg,
		Reader:     repo,
		Reconciler: service,
		Metrics:    metricsCollector,
		PendingAge: cfg.Reconcile.PendingAge,
		BatchSize:  cfg.Reconcile.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), cfg.Reconcile.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep lock", err)
		os.Exit(1)
	}

	sweeper, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(job),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Reconcile.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting reconcile worker")

	if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reconcile worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "reconcile worker shutting down gracefully")
}

func buildGateway(ctx context.Context, cfg *config.Config, logg *logger.Logger) (gateway.Gateway, error) {
	provider, err := enums.ParseGatewayProvider(cfg.Gateway.Provider)
	if err != nil {
		return nil, err
	}

	var stripeClient *pkgstripe.Client
	var squareClient *pkgsquare.Client

	switch provider {
	case enums.GatewayProviderStripe:
		stripeClient, err = pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	case enums.GatewayProviderSquare:
		squareClient, err = pkgsquare.NewClient(ctx, cfg.Square, logg)
	}
	if err != nil {
		return nil, err
	}

	return gateway.ForProvider(provider, stripeClient, squareClient)
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
