package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/smart-ledger/internal/api"
	"github.com/dvloznov/smart-ledger/internal/api/handlers"
	"github.com/dvloznov/smart-ledger/internal/app"
	"github.com/dvloznov/smart-ledger/internal/config"
	"github.com/dvloznov/smart-ledger/internal/logger"
	"github.com/dvloznov/smart-ledger/internal/reaper"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("SMART_LEDGER_CONFIG"), "Path to a config file (yaml/json/toml)")
		inProcess  = flag.Bool("workers", true, "Run ingestion workers and the reaper in this process")
	)
	flag.Parse()

	bootLog := logger.New()
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.NewWithLevel(cfg.Server.LogLevel, cfg.Server.LogJSON)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log, true)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer a.Close()

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var scheduler *reaper.Scheduler
	if *inProcess {
		if err := a.StartWorkers(workerCtx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start ingestion workers")
		}
		log.Info().Int("workers", cfg.Jobs.Workers).Str("queue", cfg.Jobs.QueueBackend).Msg("Ingestion workers started")

		scheduler, err = reaper.NewScheduler(a.Reaper, cfg.Reaper.Schedule, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule reaper")
		}
		scheduler.Start()
	}

	handler := api.NewRouter(
		handlers.NewImportsHandler(a.Imports, cfg.Jobs.MaxFileBytes),
		handlers.NewSummaryHandler(a.Summary),
		log,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	// Workers finish their current event before the queue is closed.
	cancelWorkers()
	if err := a.Queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
