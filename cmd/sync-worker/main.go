package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/davidortega/channelsync-backend/internal/bookings"
	"github.com/davidortega/channelsync-backend/internal/channels"
	"github.com/davidortega/channelsync-backend/internal/cron"
	"github.com/davidortega/channelsync-backend/internal/health"
	"github.com/davidortega/channelsync-backend/internal/ledger"
	"github.com/davidortega/channelsync-backend/internal/reconcile"
	"github.com/davidortega/channelsync-backend/internal/rooms"
	"github.com/davidortega/channelsync-backend/internal/scheduler"
	"github.com/davidortega/channelsync-backend/pkg/config"
	"github.com/davidortega/channelsync-backend/pkg/db"
	"github.com/davidortega/channelsync-backend/pkg/instance"
	"github.com/davidortega/channelsync-backend/pkg/logger"
	"github.com/davidortega/channelsync-backend/pkg/metrics"
	"github.com/davidortega/channelsync-backend/pkg/migrate"
	"github.com/davidortega/channelsync-backend/pkg/redis"
)

const lockKeyFormat = "cs:sync-worker:lock:%s"

// The sync worker owns feed-driven ingestion: it polls every iCal-backed
// mapping, runs the diff through the reconciler, and dispatches the
// resulting pushes through its own in-process scheduler.
func main() {
	logg := logger.New(logger.Options{ServiceName: "sync-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "sync-worker",
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

	registry, err := channels.NewDefaultRegistry(cfg.Channels, cfg.Sync.AdapterTimeout)
	if err != nil {
		logg.Error(context.Background(), "failed to build channel registry", err)
		os.Exit(1)
	}

	monitor := health.NewMonitor()
	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	roomsRepo := rooms.NewRepository(dbClient.DB())
	bookingsRepo := bookings.NewRepository(dbClient.DB())
	deadLetters := scheduler.NewDeadLetterRepository(dbClient.DB())

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Client: dbClient,
		Repo:   ledger.NewRepository(dbClient.DB()),
		Config: cfg.Ledger,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	syncScheduler, err := scheduler.NewService(scheduler.ServiceParams{
		Registry:    registry,
		Rooms:       roomsRepo,
		DeadLetters: deadLetters,
		Monitor:     monitor,
		Metrics:     syncMetrics,
		Logger:      logg,
		Config:      cfg.Sync,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sync scheduler", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(reconcile.ServiceParams{
		Client:      dbClient,
		Bookings:    bookingsRepo,
		Rooms:       roomsRepo,
		Ledger:      ledgerService,
		Tasks:       syncScheduler,
		Registry:    registry,
		Logger:      logg,
		Config:      cfg.Reconcile,
		PushTimeout: cfg.Sync.AdapterTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	refreshJob, err := cron.NewICalRefreshJob(cron.ICalRefreshJobParams{
		Logger:     logg,
		Mappings:   roomsRepo,
		Adapters:   registry,
		Reconciler: reconcileService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ical refresh job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	cronService, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(refreshJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create feed refresh loop", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting sync worker")

	schedulerDone := make(chan error, 1)
	go func() {
		schedulerDone <- syncScheduler.Run(ctx)
	}()

	if err := cronService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sync worker stopped unexpectedly", err)
		os.Exit(1)
	}

	<-schedulerDone
	logg.Info(ctx, "sync worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
