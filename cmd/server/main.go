package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	billingapp "github.com/coliving/backend/internal/application/billing"
	reportapp "github.com/coliving/backend/internal/application/report"
	domainbilling "github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/infrastructure/billing"
	"github.com/coliving/backend/internal/infrastructure/cache"
	"github.com/coliving/backend/internal/infrastructure/config"
	"github.com/coliving/backend/internal/infrastructure/event"
	"github.com/coliving/backend/internal/infrastructure/export"
	"github.com/coliving/backend/internal/infrastructure/logger"
	"github.com/coliving/backend/internal/infrastructure/persistence"
	"github.com/coliving/backend/internal/infrastructure/printing"
	"github.com/coliving/backend/internal/infrastructure/scheduler"
	"github.com/coliving/backend/internal/infrastructure/storage"
	"github.com/coliving/backend/internal/infrastructure/telemetry"
	"github.com/coliving/backend/internal/interfaces/http/handler"
	"github.com/coliving/backend/internal/interfaces/http/middleware"
	"github.com/coliving/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		TimeFormat:  "2006-01-02T15:04:05.000Z07:00",
		Service:     cfg.App.Name,
		Environment: cfg.App.Env,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Starting coliving billing backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", Version),
	)

	ctx := context.Background()

	// Telemetry: traces and metrics go to the same collector
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    Version,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    Version,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))

	// Initialize database connection with custom logger
	db, err := persistence.Open(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DBMetricsConfig{
		Enabled:            cfg.Telemetry.MetricsEnabled,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}

	billingMetrics, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
		Meter:  meterProvider.Meter("coliving.billing"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to initialize billing metrics", zap.Error(err))
	}

	// Redis backs the bill lock, idempotency keys and event forwarding when available
	redisFactory := cache.NewFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithLockOptions(lockOptions(cfg.Billing)),
	)
	redisClient, err := redisFactory.Client()
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	locker, err := redisFactory.CreateBillLocker()
	if err != nil {
		log.Fatal("Failed to create bill locker", zap.Error(err))
	}
	idempotencyStore, err := redisFactory.CreateIdempotencyStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Event bus: with Redis, events are forwarded to the notifier process;
	// otherwise notifications are logged in-process.
	eventBus := event.NewInMemoryEventBus(log)
	if redisClient != nil {
		eventBus.Subscribe(event.NewRedisForwarder(redisClient, cfg.Billing.NotificationChannel, event.NewBillingSerializer(), log))
	} else {
		eventBus.Subscribe(event.NewNotificationHandler(log))
	}
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Payment gateway
	var gateway domainbilling.PaymentGateway
	if cfg.Stripe.Enabled() {
		stripeCfg := billing.DefaultStripeConfig()
		stripeCfg.SecretKey = cfg.Stripe.SecretKey
		stripeCfg.Currency = cfg.Stripe.Currency
		stripeCfg.MaxNetworkRetries = cfg.Stripe.MaxNetworkRetries
		adapter, err := billing.NewStripeAdapter(stripeCfg, nil, log)
		if err != nil {
			log.Fatal("Failed to initialize Stripe", zap.Error(err))
		}
		gateway = adapter
		log.Info("Card charges enabled", zap.String("currency", stripeCfg.Currency))
	} else {
		log.Warn("Stripe secret key not set, card charges are disabled")
	}

	// Application services
	txScope := persistence.NewGormTransactionScope(db.DB)
	opts := billingapp.Options{
		LockPaidBills: cfg.Billing.LockPaidBills,
		Locker:        locker,
		Notifier:      billingapp.NewEventNotifier(eventBus, log),
		Metrics:       billingMetrics,
	}
	generationService := billingapp.NewBillGenerationService(txScope, log, opts)
	lineItemService := billingapp.NewLineItemService(txScope, log, opts)
	paymentService := billingapp.NewPaymentService(txScope, gateway, log, opts)
	subscriptionService := billingapp.NewSubscriptionService(txScope, log, opts)

	subscriptionRepo := persistence.NewGormSubscriptionRepository(db.DB)
	reportService := reportapp.NewOccupancyReportService(
		persistence.NewGormBillRepository(db.DB),
		persistence.NewGormBookingRepository(db.DB),
		subscriptionRepo,
		persistence.NewGormLocationRepository(db.DB),
		export.NewExcelExporter(),
		log,
	)

	// Daily subscription billing
	schedulerCfg := scheduler.DefaultBillingSchedulerConfig()
	schedulerCfg.Enabled = cfg.Billing.AutoBill
	schedulerCfg.Schedule = cfg.Billing.AutoBillSchedule
	billingScheduler, err := scheduler.NewBillingScheduler(schedulerCfg, subscriptionRepo, subscriptionService, log)
	if err != nil {
		log.Fatal("Invalid billing schedule", zap.Error(err))
	}
	if err := billingScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start billing scheduler", zap.Error(err))
	}

	// Invoice PDFs
	var invoicePrinter handler.InvoicePrinter
	var pdfRenderer printing.PDFRenderer
	if cfg.Printing.Enabled {
		pdfRenderer = printing.NewChromeRenderer(printing.ChromeConfig{
			RemoteURL: cfg.Printing.ChromeURL,
			NoSandbox: cfg.Printing.NoSandbox,
			Timeout:   cfg.Printing.Timeout,
		}, log)
		invoicePrinter = printing.NewInvoicePrinter(pdfRenderer, printing.InvoiceOptions{
			Currency: cfg.Stripe.Currency,
		}, log)
		log.Info("Invoice printing enabled", zap.Bool("remote_chrome", cfg.Printing.ChromeURL != ""))
	}

	// Invoice archive
	var invoiceArchive handler.DocumentArchive
	if cfg.Storage.Enabled {
		store, err := storage.NewS3DocumentStore(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create document store", zap.Error(err))
		}
		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare invoice bucket", zap.Error(err))
		}
		invoiceArchive = store
		log.Info("Invoice archive enabled", zap.String("bucket", store.Bucket()))
	}

	// HTTP
	healthChecks := map[string]handler.HealthCheck{
		"database": db.Ping,
	}
	if redisClient != nil {
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	engine, err := router.NewEngine(router.EngineConfig{
		HTTP: cfg.HTTP,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
			SkipPaths:   []string{"/health"},
		},
		Metrics: middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			Enabled:       meterProvider.IsEnabled(),
		},
		Logger: log,
	}, router.Handlers{
		Billing:  handler.NewBillingHandler(generationService, lineItemService, paymentService, subscriptionService, idempotencyStore),
		Invoices: handler.NewInvoiceHandler(lineItemService, invoicePrinter, invoiceArchive),
		Reports:  handler.NewReportHandler(reportService),
		System:   handler.NewSystemHandler(cfg.App.Name, Version, healthChecks),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}
	log.Info("Routes registered", zap.Int("count", len(engine.Routes)))

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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	engine.Close()
	if pdfRenderer != nil {
		_ = pdfRenderer.Close()
	}
	if err := billingScheduler.Stop(shutdownCtx); err != nil {
		log.Warn("Billing scheduler did not stop in time", zap.Error(err))
	}

	// Flush queued notifications before the forwarder's client goes away
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not drain", zap.Error(err))
	}
	_ = idempotencyStore.Close()
	if closer, ok := locker.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if err := redisFactory.Close(); err != nil {
		log.Warn("Error closing Redis", zap.Error(err))
	}

	if dbMetrics != nil {
		dbMetrics.Stop()
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// lockOptions applies the configured lock TTL to the default retry schedule
func lockOptions(cfg config.BillingConfig) cache.LockOptions {
	opts := cache.DefaultLockOptions()
	if cfg.LockTTL > 0 {
		opts.TTL = cfg.LockTTL
	}
	return opts
}
