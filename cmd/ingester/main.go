package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ctfradar/radar/configs"
	"github.com/ctfradar/radar/internal/ingester"
	"github.com/ctfradar/radar/internal/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	appConfig := configs.AppLoad()

	fillStorage, err := storage.NewClickHouseStorage(appConfig.DBDSN)
	if err != nil {
		logger.Error("Failed to connect to DB", "error", err)
		os.Exit(1)
	}
	defer fillStorage.Close()

	kafkaReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{appConfig.KafkaFill.Broker},
		Topic:          appConfig.KafkaFill.Topic,
		GroupID:        appConfig.KafkaFill.GroupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // Important: We handle commits manually in Ingester!
	})
	defer kafkaReader.Close()

	svc := ingester.NewIngester(
		kafkaReader,
		fillStorage,
		logger,
		ingester.Config{
			BatchSize:    appConfig.Ingester.BatchSize,
			BatchTimeout: time.Duration(appConfig.Ingester.BatchTimeoutSeconds) * time.Second,
		},
	)

	// Run with Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Ingester started successfully")

	if err := svc.Start(ctx); err != nil {
		logger.Error("Ingester stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Ingester shut down cleanly")
}
