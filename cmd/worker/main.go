package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"news_aggregator/internal/app"
	"news_aggregator/internal/config"
	"news_aggregator/internal/domain"
	"news_aggregator/internal/logger"
	"news_aggregator/internal/scheduler"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize", zap.Error(err))
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("failed to release resources", zap.Error(err))
		}
	}()

	sources := cfg.AllowedSources()
	sched := scheduler.NewScheduler(a.Runner, a.Queue, scheduler.Config{
		Schedule:   cfg.Ingest.Schedule,
		Sources:    sources,
		Timeout:    cfg.Ingest.RunTimeout,
		RetryDelay: cfg.Ingest.LockTTL,
	}, log)

	log.Info("starting ingestion worker",
		zap.Strings("sources", sources),
		zap.String("queue", cfg.Queue.Backend),
		zap.String("schedule", cfg.Ingest.Schedule),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Queue.Consume(gctx, func(ctx context.Context, req domain.ContinuationRequest) error {
			runCtx, runCancel := context.WithTimeout(ctx, cfg.Ingest.RunTimeout)
			defer runCancel()
			return a.Runner.HandleContinuation(runCtx, req)
		})
	})
	g.Go(func() error {
		return sched.Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker stopped", zap.Error(err))
		return 1
	}
	log.Info("worker stopped")
	return 0
}
