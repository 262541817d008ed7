package app

import (
	"context"
	"fmt"
	"log/slog"

	"FeedHarvester/internal/checkpoint"
	"FeedHarvester/internal/config"
	"FeedHarvester/internal/harvest"
	"FeedHarvester/internal/identity"
	"FeedHarvester/internal/infrastructure/extractor"
	"FeedHarvester/internal/infrastructure/fetch"
	"FeedHarvester/internal/output"
	"FeedHarvester/internal/rate"
)

// Application wires configuration into the harvest loop and its adapters.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	loop   *harvest.Loop
	writer *output.Writer
}

// New builds a runnable application instance. It fails only when durable
// storage cannot be prepared, which is an unrecoverable startup error.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if cfg.Feed.URL == "" {
		return nil, fmt.Errorf("no feed url configured")
	}

	rotator := identity.NewRotator(cfg.Identity.UserAgents, cfg.Identity.Headers, cfg.Identity.MinPool)

	store, err := checkpoint.NewStore(cfg.Output.Dir, baseLogger.With("component", "checkpoint"))
	if err != nil {
		return nil, err
	}
	writer, err := output.NewWriter(cfg.Output.Dir, baseLogger.With("component", "output"))
	if err != nil {
		return nil, err
	}

	fetcher := fetch.NewPagedClient(fetch.Options{
		FeedURL:  cfg.Feed.URL,
		PageSize: cfg.Feed.PageSize,
		Timeout:  cfg.Fetch.Timeout.Duration,
	}, rotator, baseLogger.With("component", "fetch"))

	mediumExtractor := extractor.NewMediumList(cfg.Feed.URL, baseLogger.With("component", "extractor"))

	governor := rate.New(rate.Config{
		HourlyBudget: cfg.Rate.HourlyBudget,
		MinDelay:     cfg.Rate.MinDelay.Duration,
		MaxDelay:     cfg.Rate.MaxDelay.Duration,
		WaitCeiling:  cfg.Rate.WaitCeiling.Duration,
	})

	loop := harvest.New(harvest.Config{
		FeedURL:            cfg.Feed.URL,
		EmptyThreshold:     cfg.Harvest.EmptyThreshold,
		MaxRetries:         cfg.Harvest.MaxRetries,
		RetryBase:          cfg.Harvest.RetryBase.Duration,
		RetryCap:           cfg.Harvest.RetryCap.Duration,
		CheckpointInterval: cfg.Harvest.CheckpointInterval.Duration,
		FlushThreshold:     cfg.Harvest.FlushThreshold,
		ExploratoryWait:    cfg.Harvest.ExploratoryWait.Duration,
		BlockPause:         cfg.Harvest.BlockPause.Duration,
	}, harvest.Deps{
		Fetch:       fetcher,
		Extractor:   mediumExtractor,
		Builder:     mediumExtractor,
		Governor:    governor,
		Identities:  rotator,
		Checkpoints: store,
		Output:      writer,
		Logger:      baseLogger.With("component", "harvest"),
	})

	return &Application{cfg: cfg, logger: baseLogger, loop: loop, writer: writer}, nil
}

// Run drives the session to completion and writes the summary report.
func (a *Application) Run(ctx context.Context) error {
	a.logger.Info("starting harvest",
		"feed", a.cfg.Feed.URL,
		"hourly_budget", a.cfg.Rate.HourlyBudget,
		"output", a.cfg.Output.Dir)

	state, err := a.loop.Run(ctx)
	if err != nil {
		return fmt.Errorf("harvest session: %w", err)
	}

	path, err := a.writer.WriteSummary(state)
	if err != nil {
		a.logger.Warn("cannot write summary report", "error", err)
	} else {
		a.logger.Info("summary report written", "path", path)
	}

	a.logger.Info("harvest finished",
		"phase", string(state.Phase),
		"records", state.RecordCount,
		"actions", state.ActionCount)
	return nil
}
