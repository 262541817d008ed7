package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"FeedHarvester/internal/app"
	"FeedHarvester/internal/config"
	"FeedHarvester/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger, closeLog := logging.New(cfg.Logging.Level, cfg.Logging.File)
	defer closeLog()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("harvest stopped with progress at risk", "error", err)
		os.Exit(1)
	}
}
