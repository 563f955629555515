// Worker consumes redemption events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, TELEMETRY_KAFKA_TOPIC, KAFKA_GROUP_ID, and LOKI_URL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/config"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/logging"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/telemetry/forwarder"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/telemetry/loki"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	brokers := cfg.TelemetryKafkaBrokersList()
	if len(brokers) == 0 {
		logger.Fatal("worker: KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" {
		logger.Fatal("worker: LOKI_URL is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.TelemetryKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker: consuming",
		zap.String("topic", cfg.TelemetryKafkaTopic),
		zap.String("group", cfg.KafkaGroupID),
		zap.String("loki_url", cfg.LokiURL),
	)
	fwd := forwarder.New(reader, loki.NewClient(cfg.LokiURL, nil), logger)
	if err := fwd.Run(ctx); err != nil {
		logger.Error("worker: stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("worker: stopped")
}
