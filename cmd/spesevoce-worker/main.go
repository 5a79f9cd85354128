package main

import (
	"context"
	"errors"
	"os"
	"time"

	"spesevoce/internal/backend"
	"spesevoce/internal/cli"
	"spesevoce/internal/log"
	"spesevoce/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker, nil)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(log.ComponentWorker, cfg)

	logger.Info("Starting spesevoce-worker", "events", cfg.EventsBackend)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	factory := backend.NewFactory(logger)
	sink, err := factory.CreateSink(startCtx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize sheets sink", log.FieldError, err)
		os.Exit(1)
	}
	consumer, err := factory.CreateConsumer(startCtx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize event consumer", log.FieldError, err)
		os.Exit(1)
	}
	defer consumer.Close()

	syncWorker := worker.NewSyncWorker(sink.Sink,
		worker.WithRetry(uint(cfg.SyncRetryAttempts), cfg.SyncRetryDelay),
		worker.WithLogger(logger),
	)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Consuming expense recorded events", "sink", sink.Backend)
	if err := consumer.Consume(ctx, syncWorker.HandleExpenseRecorded); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
