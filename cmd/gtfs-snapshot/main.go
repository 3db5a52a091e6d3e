package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/travelguide-gtfs/internal/common/config"
	"github.com/travelguide-gtfs/internal/common/discord"
	"github.com/travelguide-gtfs/internal/common/logger"
	"github.com/travelguide-gtfs/internal/gtfs-static/pipeline"
)

func main() {
	bootLog := logger.New(logger.DefaultLoggerConfig())

	// Load .env file if it exists
	if err := config.LoadEnvFile(".env"); err != nil {
		bootLog.Fatal("Failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("Failed to load configuration", "error", err)
	}

	fs := flag.NewFlagSet("gtfs-snapshot", flag.ExitOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		bootLog.Fatal("Failed to parse flags", "error", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		bootLog.Fatal("Invalid configuration", "error", err)
	}

	// Initialize logger with configured level and Discord support
	alerts := discord.NewClient(cfg.Logging.DiscordURL)
	loggerConfig := logger.DefaultLoggerConfig()
	loggerConfig.Level = logger.ParseLogLevel(cfg.Logging.Level)
	loggerConfig.FilePath = cfg.Logging.FilePath
	if alerts.Enabled() {
		loggerConfig.Alerts = alerts
	}
	log := logger.New(loggerConfig)

	log.Info("GTFS snapshot service starting",
		"log_level", cfg.Logging.Level,
		"url", cfg.Feed.URL,
		"agency", cfg.Feed.Agency,
		"category", cfg.Feed.Category,
		"max_stops", cfg.Snapshot.MaxStops,
		"output", cfg.Snapshot.OutputFile,
		"interval", cfg.Schedule.Interval)

	p, err := pipeline.New(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialise pipeline", "error", err)
	}

	// Cancel in-flight downloads on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notify := func(summary *pipeline.Summary) {
		if !alerts.Enabled() || summary.Skipped {
			return
		}
		if err := alerts.SendLogMessage("INFO", "GTFS snapshot refreshed", summary.Fields()); err != nil {
			log.Warn("Failed to send Discord summary", "error", err)
		}
	}

	if cfg.Schedule.Interval <= 0 {
		summary, err := p.Run(ctx)
		if err != nil {
			log.Fatal("Failed to process GTFS feed", "error", err)
		}
		notify(summary)
		return
	}

	scheduler := pipeline.NewScheduler(p, cfg.Schedule.Interval, log)
	scheduler.OnSuccess(notify)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal("GTFS snapshot scheduler error", "error", err)
	}

	log.Info("GTFS snapshot service stopped")
}
