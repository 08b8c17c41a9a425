package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	credentialapp "github.com/marketsync/backend/internal/application/credential"
	appingest "github.com/marketsync/backend/internal/application/ingest"
	reportapp "github.com/marketsync/backend/internal/application/report"
	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/ingest"
	"github.com/marketsync/backend/internal/infrastructure/cache"
	"github.com/marketsync/backend/internal/infrastructure/config"
	"github.com/marketsync/backend/internal/infrastructure/ecommerce"
	"github.com/marketsync/backend/internal/infrastructure/exchange"
	"github.com/marketsync/backend/internal/infrastructure/logger"
	"github.com/marketsync/backend/internal/infrastructure/persistence"
	"github.com/marketsync/backend/internal/infrastructure/scheduler"
	"github.com/marketsync/backend/internal/interfaces/http/handler"
	"github.com/marketsync/backend/internal/interfaces/http/middleware"
	"github.com/marketsync/backend/internal/interfaces/http/router"
)

// lazyTokenSource breaks the construction cycle between the Apilo adapter
// (which needs an access token supplier) and the credential service (which
// needs the adapter as its token exchanger).
type lazyTokenSource struct {
	service *credentialapp.Service
}

func (s *lazyTokenSource) AccessToken(ctx context.Context, provider catalog.ProviderCode) (string, error) {
	return s.service.AccessToken(ctx, provider)
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting MarketSync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Persistence ports
	gateway := persistence.NewGormGateway(db.DB)
	credentialStore := persistence.NewGormCredentialStore(db.DB)
	orderReader := persistence.NewGormOrderReader(db.DB)

	// Identity resolution and batched upsert pipeline
	resolver := ingest.NewResolver(gateway, cfg.Sync.MarketplaceRenames)
	ignoreStatuses := map[catalog.ProviderCode][]int{
		catalog.ProviderBaselinker: cfg.Sync.BaselinkerIgnoredStatuses,
		catalog.ProviderApilo:      cfg.Sync.ApiloIgnoredStatuses,
	}
	pipeline, err := appingest.NewPipeline(gateway, resolver, ignoreStatuses, appingest.PipelineOptions{
		BatchSize:      cfg.Sync.BatchSize,
		Concurrency:    cfg.Sync.Concurrency,
		MaxAttempts:    cfg.Sync.MaxAttempts,
		RetryBaseDelay: cfg.Sync.RetryBaseDelay,
		BatchTimeout:   cfg.Sync.BatchTimeout,
	}, log)
	if err != nil {
		log.Fatal("Failed to create sync pipeline", zap.Error(err))
	}

	// Provider adapters
	baselinkerAdapter, err := ecommerce.NewBaselinkerAdapter(&ecommerce.BaselinkerConfig{
		Token:          cfg.Baselinker.Token,
		InventoryID:    cfg.Baselinker.InventoryID,
		APIBaseURL:     cfg.Baselinker.APIBaseURL,
		TimeoutSeconds: cfg.Baselinker.TimeoutSeconds,
	})
	if err != nil {
		log.Fatal("Failed to create BaseLinker adapter", zap.Error(err))
	}
	tokenSource := &lazyTokenSource{}
	apiloAdapter, err := ecommerce.NewApiloAdapter(&ecommerce.ApiloConfig{
		APIBaseURL:     cfg.Apilo.APIBaseURL,
		ClientID:       cfg.Apilo.ClientID,
		ClientSecret:   cfg.Apilo.ClientSecret,
		TimeoutSeconds: cfg.Apilo.TimeoutSeconds,
	}, tokenSource)
	if err != nil {
		log.Fatal("Failed to create Apilo adapter", zap.Error(err))
	}

	// Refresh lock: Redis when reachable, in-process otherwise
	var refreshLock ingest.RefreshLock
	redisLock, err := cache.NewRedisRefreshLock(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, 30*time.Second)
	if err != nil {
		log.Warn("Redis unavailable, falling back to in-process refresh lock", zap.Error(err))
		refreshLock = cache.NewInMemoryRefreshLock()
	} else {
		refreshLock = redisLock
		log.Info("Redis refresh lock initialized")
	}

	// Credential service owns every token write
	credentialService := credentialapp.NewService(
		credentialStore,
		[]ingest.TokenExchanger{apiloAdapter},
		refreshLock,
		log,
	)
	tokenSource.service = credentialService

	// Currency rates with static fallback
	fallbackRates := make(map[string]decimal.Decimal, len(cfg.Exchange.FallbackRates))
	for currency, raw := range cfg.Exchange.FallbackRates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			log.Warn("Skipping invalid fallback rate",
				zap.String("currency", currency),
				zap.String("value", raw),
			)
			continue
		}
		fallbackRates[currency] = rate
	}
	rateSource := exchange.NewNBPRateSource(
		cfg.Exchange.APIBaseURL,
		time.Duration(cfg.Exchange.TimeoutSeconds)*time.Second,
		fallbackRates,
		log,
	)

	// Orchestrator and scheduler
	orchestrator := appingest.NewOrchestrator(
		[]ingest.ProviderAdapter{baselinkerAdapter, apiloAdapter},
		pipeline,
		rateSource,
		log,
	)
	executor := scheduler.NewOrchestratorExecutor(orchestrator, log)
	syncScheduler, err := scheduler.NewSyncScheduler(scheduler.SyncSchedulerConfig{
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		JobTimeout:        cfg.Scheduler.JobTimeout,
		RetryAttempts:     cfg.Scheduler.RetryAttempts,
		RetryDelay:        cfg.Scheduler.RetryDelay,
	}, executor, log)
	if err != nil {
		log.Fatal("Failed to create sync scheduler", zap.Error(err))
	}
	if err := syncScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start sync scheduler", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := syncScheduler.Stop(ctx); err != nil {
			log.Error("Error stopping sync scheduler", zap.Error(err))
		}
	}()

	// Periodic trigger (if enabled)
	if cfg.Scheduler.Enabled {
		cronTrigger := scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
			SyncInterval:      cfg.Scheduler.SyncInterval,
			StockSnapshotHour: cfg.Scheduler.StockSnapshotHour,
			OrderLookback:     cfg.Sync.OrderLookback,
			Providers:         []catalog.ProviderCode{catalog.ProviderBaselinker, catalog.ProviderApilo},
		}, syncScheduler, log)
		if err := cronTrigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync cron trigger", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := cronTrigger.Stop(ctx); err != nil {
				log.Error("Error stopping sync cron trigger", zap.Error(err))
			}
		}()
		log.Info("Sync cron trigger started",
			zap.Duration("sync_interval", cfg.Scheduler.SyncInterval),
			zap.Int("stock_snapshot_hour", cfg.Scheduler.StockSnapshotHour),
		)
	}

	// Reporting
	reportService := reportapp.NewService(orderReader, ignoreStatuses, log)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.RequestLogger(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig()))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Register API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewSystemHandler()).
		Register(handler.NewSyncHandler(syncScheduler, cfg.Sync.OrderLookback)).
		Register(handler.NewCredentialHandler(credentialService)).
		Register(handler.NewReportHandler(reportService))
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			log.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
