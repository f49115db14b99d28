package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/smart-ledger/internal/app"
	"github.com/dvloznov/smart-ledger/internal/config"
	"github.com/dvloznov/smart-ledger/internal/logger"
	"github.com/dvloznov/smart-ledger/internal/reaper"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("SMART_LEDGER_CONFIG"), "Path to a config file (yaml/json/toml)")
		withReaper = flag.Bool("reaper", true, "Run the stale job reaper on its schedule")
	)
	flag.Parse()

	bootLog := logger.New()
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.NewWithLevel(cfg.Server.LogLevel, cfg.Server.LogJSON)

	if cfg.Jobs.QueueBackend == "memory" {
		log.Warn().Msg("In-memory queue selected: this worker only sees events published in its own process")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer a.Close()

	log.Info().Msg("Starting worker service")

	if err := a.StartWorkers(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	var scheduler *reaper.Scheduler
	if *withReaper {
		scheduler, err = reaper.NewScheduler(a.Reaper, cfg.Reaper.Schedule, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule reaper")
		}
		scheduler.Start()
	}

	log.Info().Int("workers", cfg.Jobs.Workers).Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := a.Queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Worker service stopped")
}
