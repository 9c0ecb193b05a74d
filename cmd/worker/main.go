package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/khoahotran/openforge/adapters/event"
	"github.com/khoahotran/openforge/adapters/persistence"
	"github.com/khoahotran/openforge/adapters/pinning"
	"github.com/khoahotran/openforge/internal/application/service"
	cleanupUC "github.com/khoahotran/openforge/internal/application/usecase/cleanup"
	"github.com/khoahotran/openforge/internal/config"
	"github.com/khoahotran/openforge/pkg/logger"
	"github.com/khoahotran/openforge/pkg/tracing"
)

func main() {
	fmt.Println("Starting OpenForge Pin Worker...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: cannot load config: %v", err)
	}

	appLogger := logger.NewZapLogger(cfg.App.Env, "openforge-worker")
	defer appLogger.Sync()

	tp, err := tracing.NewTracerProvider(cfg, appLogger, "openforge-worker")
	if err != nil {
		log.Fatalf("FATAL: cannot init tracer: %v", err)
	}
	defer tracing.Shutdown(context.Background(), tp)

	dbPool, err := persistence.NewPostgresPool(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: cannot connect Postgres: %v", err)
	}
	defer dbPool.Close()

	pinner, err := pinning.NewPinner(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize pinner: %v", err)
	}

	pinLedger := persistence.NewPostgresPinLedger(dbPool)
	cleanup := cleanupUC.NewCleanupUseCase(pinner, pinLedger, cfg.Cleanup.GracePeriod, appLogger)

	go runSweeper(ctx, cleanup, cfg.Cleanup.SweepInterval, appLogger)

	if len(cfg.Kafka.Brokers) == 0 {
		appLogger.Warn("No Kafka brokers configured, running sweeps only")
		<-ctx.Done()
		return
	}

	consumer := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    event.TopicPinEvents,
		GroupID:  cfg.Kafka.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer consumer.Close()

	appLogger.Info("Worker listening", zap.String("topic", event.TopicPinEvents), zap.String("group_id", cfg.Kafka.GroupID))

	for {
		msg, err := consumer.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				appLogger.Info("Worker stopping")
				return
			}
			appLogger.Error("Failed to read message from Kafka", err)
			continue
		}

		var ev service.PinEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			appLogger.Warn("Skipping malformed pin event", zap.String("key", string(msg.Key)), zap.Error(err))
			commitMessage(consumer, msg, appLogger)
			continue
		}

		// Uncommitted messages are redelivered after a rebalance or restart.
		if err := cleanup.ProcessEvent(ctx, ev); err != nil {
			appLogger.Error("Failed to process pin event", err, zap.String("cid", ev.CID), zap.String("event_type", ev.EventType))
			continue
		}
		commitMessage(consumer, msg, appLogger)
	}
}

func runSweeper(ctx context.Context, uc *cleanupUC.CleanupUseCase, every time.Duration, log logger.Logger) {
	if every <= 0 {
		log.Info("Sweeper disabled")
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := uc.Sweep(ctx)
			if err != nil {
				log.Error("Sweep failed", err)
				continue
			}
			if n > 0 {
				log.Info("Sweep unpinned stale uploads", zap.Int("count", n))
			}
		}
	}
}

func commitMessage(consumer *kafka.Reader, msg kafka.Message, log logger.Logger) {
	if err := consumer.CommitMessages(context.Background(), msg); err != nil {
		log.Error("Failed to commit message", err, zap.Int64("offset", msg.Offset))
	}
}
