// Package app wires configuration into a ready ingestion runner.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"news_aggregator/internal/config"
	"news_aggregator/internal/ingest"
	"news_aggregator/internal/lock"
	"news_aggregator/internal/publisher"
	"news_aggregator/internal/queue"
	"news_aggregator/internal/source/registry"
	"news_aggregator/internal/storage/postgres"
)

type App struct {
	Runner *ingest.Runner
	Queue  queue.Queue

	closers []func() error
	logger  *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	logger.Info("connected to database")

	q, err := queue.New(ctx, cfg.Queue, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open %s queue: %w", cfg.Queue.Backend, err)
	}
	a.Queue = q
	a.closers = append(a.closers, q.Close)

	var locker ingest.Locker = lock.Noop{}
	if cfg.Redis.Enabled() {
		redisLock, err := lock.NewRedis(ctx, lock.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		locker = redisLock
		a.closers = append(a.closers, redisLock.Close)
	} else {
		logger.Warn("redis not configured, walk lock disabled")
	}

	var events ingest.Publisher
	if cfg.Events.Enabled {
		pub, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.Events.URL,
			Exchange:   cfg.Events.Exchange,
			RoutingKey: cfg.Events.RoutingKey,
			QueueName:  cfg.Events.QueueName,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		events = pub
		a.closers = append(a.closers, pub.Close)
	}

	client := registry.NewHTTPClient(cfg.HTTP)

	a.Runner = ingest.NewRunner(
		registry.New(cfg.Sources, client, logger),
		postgres.NewArticleStore(db),
		postgres.NewWalkStateStore(db),
		postgres.NewTransactionManager(db),
		q,
		locker,
		events,
		logger,
		ingest.Config{
			AllowedSources: cfg.AllowedSources(),
			Delay:          cfg.Ingest.Delay,
			LockTTL:        cfg.Ingest.LockTTL,
		},
	)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
