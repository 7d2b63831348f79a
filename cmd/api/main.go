package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/davidortega/channelsync-backend/api/routes"
	"github.com/davidortega/channelsync-backend/internal/bookings"
	"github.com/davidortega/channelsync-backend/internal/channels"
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

const shutdownGrace = 15 * time.Second

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

	registry, err := channels.NewDefaultRegistry(cfg.Channels, cfg.Sync.AdapterTimeout)
	if err != nil {
		logg.Error(context.Background(), "failed to build channel registry", err)
		os.Exit(1)
	}

	monitor := health.NewMonitor()
	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)

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

	roomsService, err := rooms.NewService(rooms.ServiceParams{
		Client: dbClient,
		Repo:   roomsRepo,
		Seeder: ledgerService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create rooms service", err)
		os.Exit(1)
	}

	bookingsService, err := bookings.NewService(bookingsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create bookings service", err)
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

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	// Outbound pushes dispatch from the same process that accepted the
	// inbound event; the scheduler queue lives in memory.
	schedulerDone := make(chan error, 1)
	go func() {
		schedulerDone <- syncScheduler.Run(ctx)
	}()

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:           cfg,
			Logger:           logg,
			DBPinger:         dbClient,
			RedisClient:      redisClient,
			LedgerService:    ledgerService,
			ReconcileService: reconcileService,
			RoomsService:     roomsService,
			RoomsRepo:        roomsRepo,
			BookingsService:  bookingsService,
			Monitor:          monitor,
			DeadLetters:      deadLetters,
		}),
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.ListenAndServe()
	}()
	logg.Info(ctx, "starting api server")

	select {
	case err := <-serverDone:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error during server shutdown", err)
		}
	}

	<-schedulerDone
	logg.Info(ctx, "api server shutting down gracefully")
}
