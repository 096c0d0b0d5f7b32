package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"news_aggregator/internal/app"
	"news_aggregator/internal/config"
	"news_aggregator/internal/ingest"
	"news_aggregator/internal/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	sourceName := fs.String("source", "", "news source to ingest (newsapi, guardian, nytimes)")
	page := fs.Int("page", 1, "page to fetch")
	fromDate := fs.String("from", "", "earliest publication date, YYYY-MM-DD or ISO-8601 (default yesterday)")
	delay := fs.Int("delay", 0, "seconds before the next page (default from config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	log := logger.New("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", zap.Error(err))
		return 1
	}

	log = logger.New(cfg.LogLevel)
	defer log.Sync()

	if !slices.Contains(cfg.AllowedSources(), strings.ToLower(strings.TrimSpace(*sourceName))) {
		err := &ingest.ConfigurationError{Source: *sourceName, Reason: "source is not enabled"}
		log.Error("Invalid ingestion request", zap.Error(err))
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize", zap.Error(err))
		return 1
	}
	defer a.Close()

	runCtx, runCancel := context.WithTimeout(ctx, cfg.Ingest.RunTimeout)
	defer runCancel()

	stats, err := a.Runner.Run(runCtx, ingest.Request{
		Source:   *sourceName,
		Page:     *page,
		FromDate: *fromDate,
		Delay:    time.Duration(*delay) * time.Second,
	})
	switch {
	case errors.Is(err, ingest.ErrWalkInProgress):
		return 0
	case err != nil:
		return 1
	}

	log.Info("ingestion finished",
		zap.String("source", stats.Source),
		zap.Int("page", stats.Page),
		zap.String("outcome", string(stats.Outcome)),
		zap.Duration("duration", stats.Duration),
	)
	return 0
}
