package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"news_aggregator/internal/domain"
	"news_aggregator/internal/ingest"
)

// Runner starts a walk at page 1.
type Runner interface {
	Run(ctx context.Context, req ingest.Request) (*domain.PageStats, error)
}

// Scheduler triggers a fresh walk for every source on a cron schedule.
// Overlapping triggers of the same source are skipped. A trigger that finds
// the walk lock held is queued as a page 1 continuation instead.
type Scheduler struct {
	runner Runner
	queue  ingest.Enqueuer
	config Config
	logger *zap.Logger
	now    func() time.Time
}

type Config struct {
	Schedule string
	Sources  []string
	// Timeout bounds one triggered invocation.
	Timeout time.Duration
	// RetryDelay is the delay of a trigger deferred by a held lock.
	RetryDelay time.Duration
}

// NewScheduler creates a scheduler. queue may be nil, in which case busy
// triggers are dropped.
func NewScheduler(runner Runner, queue ingest.Enqueuer, cfg Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		queue:  queue,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Start blocks until ctx is cancelled, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	c, err := s.build(ctx)
	if err != nil {
		return err
	}

	c.Start()
	s.logger.Info("scheduler started",
		zap.String("schedule", s.config.Schedule),
		zap.Strings("sources", s.config.Sources),
	)

	<-ctx.Done()

	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) build(ctx context.Context) (*cron.Cron, error) {
	log := cronLogger{s.logger}
	c := cron.New(cron.WithChain(cron.Recover(log)), cron.WithLogger(log))

	for _, name := range s.config.Sources {
		job := cron.NewChain(cron.SkipIfStillRunning(log)).Then(cron.FuncJob(func() {
			s.Trigger(ctx, name)
		}))
		if _, err := c.AddJob(s.config.Schedule, job); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", name, err)
		}
	}

	return c, nil
}

// Trigger starts a walk for source at page 1 from yesterday.
func (s *Scheduler) Trigger(ctx context.Context, source string) {
	fromDate := s.now().AddDate(0, 0, -1).Format("2006-01-02")

	runCtx := ctx
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	stats, err := s.runner.Run(runCtx, ingest.Request{Source: source, Page: 1, FromDate: fromDate})
	switch {
	case errors.Is(err, ingest.ErrWalkInProgress):
		s.deferTrigger(ctx, source, fromDate)
	case err != nil:
		s.logger.Warn("scheduled walk failed", zap.String("source", source), zap.Error(err))
	default:
		s.logger.Info("scheduled walk started",
			zap.String("source", source),
			zap.String("outcome", string(stats.Outcome)),
		)
	}
}

// deferTrigger queues the first page of a walk whose lock is held. The continuation
// handler keeps re-queuing it until the lock frees.
func (s *Scheduler) deferTrigger(ctx context.Context, source, fromDate string) {
	if s.queue == nil {
		s.logger.Warn("walk already running, trigger skipped", zap.String("source", source))
		return
	}

	req := domain.ContinuationRequest{
		Source:       source,
		NextPage:     1,
		FromDate:     fromDate,
		DelaySeconds: int(s.config.RetryDelay / time.Second),
	}
	if err := s.queue.Enqueue(ctx, req); err != nil {
		s.logger.Error("failed to defer scheduled walk", zap.String("source", source), zap.Error(err))
		return
	}
	s.logger.Info("walk already running, trigger deferred",
		zap.String("source", source),
		zap.Int("delay_seconds", req.DelaySeconds),
	)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
