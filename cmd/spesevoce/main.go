package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spesevoce/internal/backend"
	"spesevoce/internal/cli"
	"spesevoce/internal/core"
	"spesevoce/internal/extract"
	apphttp "spesevoce/internal/http"
	"spesevoce/internal/ledger"
	"spesevoce/internal/log"
	"spesevoce/internal/tracker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp, nil)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(log.ComponentApp, cfg)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	factory := backend.NewFactory(logger)
	store, err := factory.CreateBackend(startCtx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize ledger store", log.FieldError, err, log.FieldBackend, bcfg.Type)
		os.Exit(1)
	}
	ann, err := factory.CreateAnnotator(startCtx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize annotator", log.FieldError, err, log.FieldProvider, cfg.AnnotatorProvider)
		os.Exit(1)
	}
	pub, err := factory.CreatePublisher(startCtx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize event publisher", log.FieldError, err)
		os.Exit(1)
	}

	pref := tracker.NewPreference(core.Currency(cfg.DefaultCurrency))
	pipeline := extract.NewPipeline(ann.Annotator, pref,
		extract.WithTimeout(cfg.AnnotatorTimeout),
		extract.WithLogger(logger),
	)
	svc := tracker.NewService(ledger.New(store.Store, bcfg.Location), pipeline, pref,
		tracker.WithPublisher(pub.Publisher),
		tracker.WithLogger(logger),
	)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               cfg.Addr(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies:     cfg.TrustedProxies,
	}, svc,
		apphttp.WithLogger(logger),
		apphttp.WithReadyCheck("store", store.Ping),
		apphttp.WithReadyInfo("backend", bcfg.Type.String()),
		apphttp.WithReadyInfo("annotator", ann.Provider),
		apphttp.WithReadyInfo("annotation_cache", ann.Cache),
		apphttp.WithReadyInfo("events", pub.Backend),
	)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close publisher", log.FieldError, err)
		}
		if ann.Cleanup != nil {
			if err := ann.Cleanup(); err != nil {
				logger.Error("Failed to close annotator", log.FieldError, err)
			}
		}
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close ledger store", log.FieldError, err)
		}
	})

	logger.Info("Starting spesevoce server",
		"port", cfg.Port,
		log.FieldBackend, bcfg.Type,
		log.FieldProvider, ann.Provider,
		"events", pub.Backend,
		log.FieldCurrency, pref.Currency())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
