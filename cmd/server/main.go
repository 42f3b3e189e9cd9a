package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/printsync/backend/internal/application/rates"
	appsync "github.com/printsync/backend/internal/application/sync"
	"github.com/printsync/backend/internal/infrastructure/cache"
	"github.com/printsync/backend/internal/infrastructure/config"
	"github.com/printsync/backend/internal/infrastructure/logger"
	"github.com/printsync/backend/internal/infrastructure/persistence"
	"github.com/printsync/backend/internal/infrastructure/provider"
	"github.com/printsync/backend/internal/infrastructure/queue"
	"github.com/printsync/backend/internal/infrastructure/scheduler"
	"github.com/printsync/backend/internal/infrastructure/telemetry"
	"github.com/printsync/backend/internal/interfaces/http/handler"
	"github.com/printsync/backend/internal/interfaces/http/middleware"
	"github.com/printsync/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting PrintSync Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.App.Name,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	// Initialize database connection
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database connected and migrated")
	if cfg.Telemetry.Enabled {
		if err := telemetry.InstrumentGorm(db.DB, log); err != nil {
			log.Fatal("Failed to enable database tracing", zap.Error(err))
		}
	}

	// Initialize Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing redis", zap.Error(err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}
	log.Info("Redis connected")

	// Provider API client
	providerClient, err := provider.NewClient(provider.Config{
		BaseURL:        cfg.Provider.BaseURL,
		APIKey:         cfg.Provider.APIKey,
		ShopID:         cfg.Provider.ShopID,
		Timeout:        cfg.Provider.Timeout,
		MaxRetries:     cfg.Provider.MaxRetries,
		RetryBaseDelay: cfg.Provider.RetryBaseDelay,
	}, log)
	if err != nil {
		log.Fatal("Failed to create provider client", zap.Error(err))
	}

	// Repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	linkRepo := persistence.NewGormOrderLinkRepository(db.DB)
	syncLogRepo := persistence.NewGormSyncLogRepository(db.DB)
	snapshotRepo := persistence.NewGormProfileSnapshotRepository(db.DB)

	// Task queue
	taskQueue := queue.NewRedisQueue(redisClient, log)

	// Shipping profile cache, warmed from durable snapshots so the first
	// checkout does not depend on the provider API.
	profileCache := cache.NewProfileCache(providerClient, snapshotRepo, cache.Config{
		TTL:         cfg.Shipping.CacheTTL,
		GraceWindow: cfg.Shipping.GraceWindow,
	}, log)
	if err := profileCache.WarmFromSnapshots(context.Background()); err != nil {
		log.Warn("Failed to warm shipping profile cache", zap.Error(err))
	}
	go func() {
		// Initial refresh runs off the boot path; until it lands, checkout
		// serves from warmed snapshots or refetches lazily per provider.
		if err := profileCache.Refresh(context.Background(), false); err != nil {
			log.Warn("Initial shipping profile refresh failed", zap.Error(err))
		}
	}()

	// Sync engine
	syncEngine := appsync.NewEngine(providerClient, orderRepo, linkRepo, syncLogRepo, taskQueue, appsync.Config{
		PushEnabled: cfg.Sync.PushEnabled,
	}, log)

	// Shipping rate aggregation
	converter := rates.NewConverter(cfg.Shipping.BaseCurrency, cfg.Shipping.ExchangeRates)
	quoteCache := cache.NewRedisQuoteCache(redisClient, log)
	aggregator := rates.NewAggregator(profileCache, converter, quoteCache, rates.Config{
		TieredPricing: cfg.Shipping.TieredPricing,
		CombinedMode:  cfg.Shipping.CombinedMode,
		FallbackCost:  decimal.NewFromFloat(cfg.Shipping.FallbackCost),
		ResultTTL:     cfg.Shipping.ResultCacheTTL,
	}, log)

	// Background sync worker
	workerConfig := scheduler.DefaultConfig()
	workerConfig.WorkerCount = cfg.Sync.WorkerCount
	workerConfig.PollInterval = cfg.Sync.PollInterval
	workerConfig.SyncInterval = cfg.Sync.Interval
	workerConfig.LogRetention = cfg.Sync.LogRetention
	if !cfg.Sync.Enabled {
		workerConfig.SyncInterval = 0
	}
	syncWorker, err := scheduler.NewSyncWorker(workerConfig, taskQueue, syncEngine, syncLogRepo, log)
	if err != nil {
		log.Fatal("Failed to create sync worker", zap.Error(err))
	}
	if err := syncWorker.Start(context.Background()); err != nil {
		log.Fatal("Failed to start sync worker", zap.Error(err))
	}

	// HTTP server
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(middleware.Tracing(cfg.App.Name, cfg.Telemetry.Enabled), middleware.SpanErrorMarker())
	engine.Use(logger.GinMiddleware(log), logger.Recovery(log))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	middleware.SetupValidator()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewWebhookHandler(syncEngine, cfg.Sync.WebhookSecret, log))
	r.Register(handler.NewRatesHandler(aggregator, cfg.Shipping.BaseCurrency, log))
	r.Register(handler.NewSyncHandler(syncEngine, orderRepo, syncLogRepo, taskQueue, log))
	r.Register(handler.NewSystemHandler(map[string]handler.Pinger{
		"database": pingFunc(func(ctx context.Context) error { return db.Ping() }),
		"redis":    pingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
	}))
	r.Setup()

	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := syncWorker.Stop(shutdownCtx); err != nil {
		log.Error("Sync worker shutdown error", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracer provider shutdown error", zap.Error(err))
	}
	log.Info("Shutdown complete")
}

// pingFunc adapts a function to the handler.Pinger interface.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
