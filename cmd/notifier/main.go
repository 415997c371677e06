// Command notifier consumes billing events forwarded over Redis by the API
// servers and turns them into notifications. Events delivered twice are
// handled once.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coliving/backend/internal/infrastructure/cache"
	"github.com/coliving/backend/internal/infrastructure/config"
	"github.com/coliving/backend/internal/infrastructure/event"
	"github.com/coliving/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		TimeFormat:  "2006-01-02T15:04:05.000Z07:00",
		Service:     cfg.App.Name + "-notifier",
		Environment: cfg.App.Env,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	if !cfg.Redis.Enabled {
		log.Fatal("Notifier requires Redis, set COLIVING_REDIS_ENABLED=true")
	}

	// No fallback: without Redis there is nothing to consume
	redisFactory := cache.NewFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(false),
	)
	defer func() {
		_ = redisFactory.Close()
	}()
	client, err := redisFactory.Client()
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	store, err := redisFactory.CreateIdempotencyStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	counts := &event.DeliveryCounts{}
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewIdempotentHandler(
		event.NewNotificationHandler(log),
		store,
		log,
		event.WithDeliveryCounts(counts),
	))

	subscriber := event.NewRedisSubscriber(client, cfg.Billing.NotificationChannel, event.NewBillingSerializer(), bus, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Notifier started", zap.String("channel", cfg.Billing.NotificationChannel))
	if err := subscriber.Run(ctx); err != nil {
		log.Error("Notification channel closed", zap.Error(err))
	}

	stats := counts.Snapshot()
	log.Info("Notifier stopped",
		zap.Int64("handled", stats.Handled),
		zap.Int64("duplicates", stats.Duplicates),
		zap.Int64("failed", stats.Failed),
	)
}
