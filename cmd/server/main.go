package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fleetshift/internal/app"
	"fleetshift/internal/config"
	"fleetshift/internal/domain"
	"fleetshift/internal/handler"
	internalRedis "fleetshift/internal/redis"
	"fleetshift/internal/repository/postgres"
	"fleetshift/internal/service"
)

func main() {
	cfg := config.Load()

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", zap.Error(err))
			nrApp = nil
		} else {
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))

	// Redis only backs caching, idempotency and negotiation locks, so the
	// service starts without it.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Warn("redis unavailable, continuing without cache and idempotency", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	server, err := wireServer(db, redisClient, nrApp, cfg, logger)
	if err != nil {
		logger.Fatal("failed to wire server", zap.Error(err))
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, logger *zap.Logger) (*http.Server, error) {
	pricingConfig, err := service.NewPricingConfig(cfg.Pricing.DefaultTariff, cfg.Pricing.OperatingCost, cfg.Pricing.RouteTariffs)
	if err != nil {
		return nil, err
	}

	// Redis stores stay nil interfaces when Redis is down.
	var (
		cacheStore internalRedis.OccupancyCacheInterface
		lockStore  internalRedis.NegotiationLockInterface
	)
	if redisClient != nil {
		cacheStore = internalRedis.NewCacheStore(redisClient, cfg.Transfer.OccupancyCacheTTL)
		lockStore = internalRedis.NewLockStore(redisClient)
	}

	// Initialize repositories.
	txManager := postgres.NewTxManager(db, cfg.Transfer.LockTimeout)
	tripRepo := postgres.NewTripRepository(db)
	reservationRepo := postgres.NewReservationRepository(db)
	transferLogRepo := postgres.NewTransferLogRepository(db)
	negotiationRepo := postgres.NewNegotiationRepository(db)

	// Initialize services.
	policy := domain.PercentageFloor{Min: cfg.Transfer.ThresholdFloorPercent}
	notificationService := service.NewNotificationService(logger.Named("notification"))
	occupancyService := service.NewOccupancyService(tripRepo, reservationRepo, cacheStore, policy, logger.Named("occupancy"))
	pricingService := service.NewPricingService(tripRepo, reservationRepo, pricingConfig)
	transferService := service.NewTransferService(txManager, tripRepo, reservationRepo, transferLogRepo, policy, cacheStore, notificationService, logger.Named("transfer"))
	negotiationService := service.NewNegotiationService(negotiationRepo, tripRepo, reservationRepo, transferService, lockStore, notificationService, logger.Named("negotiation"), cfg.Transfer.NegotiationLockTTL)
	operatorService := service.NewOperatorService(tripRepo, negotiationRepo, occupancyService)

	router := app.NewRouter(app.RouterDeps{
		TransferHandler:    handler.NewTransferHandler(transferService),
		TripHandler:        handler.NewTripHandler(occupancyService, pricingService),
		OperatorHandler:    handler.NewOperatorHandler(operatorService),
		NegotiationHandler: handler.NewNegotiationHandler(negotiationService),
		RedisClient:        redisClient,
		NewRelicApp:        nrApp,
		Logger:             logger,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, nil
}
