// Package ingest drives one page of a pagination walk: fetch, validate,
// persist, then either finish or schedule the next page on the deferred
// work queue.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"news_aggregator/internal/domain"
	"news_aggregator/internal/source"
)

const (
	DefaultDelay   = 12 * time.Second
	DefaultLockTTL = 2 * time.Minute

	dateLayout = "2006-01-02"
)

// Request is one invocation of the runner.
type Request struct {
	Source string
	// Page is 1-based.
	Page int
	// FromDate defaults to yesterday. Any date or date-time the upstream
	// timestamp parser accepts is forwarded unchanged.
	FromDate string
	// Delay before the next page; defaults to Config.Delay.
	Delay time.Duration
}

type Config struct {
	AllowedSources []string
	Delay          time.Duration
	LockTTL        time.Duration
}

type Runner struct {
	adapters  AdapterFactory
	articles  ArticleStore
	walks     WalkStateStore
	txManager TransactionManager
	queue     Enqueuer
	locker    Locker
	publisher Publisher
	validator *Validator
	logger    *zap.Logger
	config    Config
	allowed   map[string]struct{}
	now       func() time.Time
}

// NewRunner wires a runner. publisher may be nil.
func NewRunner(
	adapters AdapterFactory,
	articles ArticleStore,
	walks WalkStateStore,
	txManager TransactionManager,
	queue Enqueuer,
	locker Locker,
	publisher Publisher,
	logger *zap.Logger,
	cfg Config,
) *Runner {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedSources))
	for _, name := range cfg.AllowedSources {
		allowed[normalizeSource(name)] = struct{}{}
	}
	return &Runner{
		adapters:  adapters,
		articles:  articles,
		walks:     walks,
		txManager: txManager,
		queue:     queue,
		locker:    locker,
		publisher: publisher,
		validator: NewValidator(),
		logger:    logger,
		config:    cfg,
		allowed:   allowed,
		now:       time.Now,
	}
}

// LockKey is the single-flight lock key of a source's walk.
func LockKey(source string) string {
	return "ingest:walk:" + normalizeSource(source)
}

// Run processes one page. It returns ErrWalkInProgress when another
// invocation holds the source lock, and a *ConfigurationError before any
// network call when the request is invalid.
func (r *Runner) Run(ctx context.Context, req Request) (*domain.PageStats, error) {
	startTime := r.now()

	req, err := r.prepare(req)
	if err != nil {
		r.logger.Error("Invalid ingestion request", zap.String("source", req.Source), zap.Error(err))
		return nil, err
	}

	logger := r.logger.With(
		zap.String("source", req.Source),
		zap.Int("page", req.Page),
		zap.String("from_date", req.FromDate),
	)

	key := LockKey(req.Source)
	token, ok, err := r.locker.Acquire(ctx, key, r.config.LockTTL)
	if err != nil {
		logger.Error("Failed to acquire walk lock", zap.Error(err))
		return nil, fmt.Errorf("acquire walk lock: %w", err)
	}
	if !ok {
		logger.Info("Walk already in progress, skipping")
		return nil, ErrWalkInProgress
	}
	defer func() {
		if err := r.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			logger.Warn("Failed to release walk lock", zap.Error(err))
		}
	}()

	stats := &domain.PageStats{Source: req.Source, Page: req.Page, FromDate: req.FromDate}
	defer func() { stats.Duration = r.now().Sub(startTime) }()

	adapter, err := r.adapters.Create(req.Source)
	if err != nil {
		err = &ConfigurationError{Source: req.Source, Reason: "no adapter available", Err: err}
		logger.Error("Invalid ingestion request", zap.Error(err))
		return nil, err
	}

	logger.Info(fmt.Sprintf("Fetching articles from %s...", req.Source))

	result, err := adapter.FetchPage(ctx, req.Page, req.FromDate)
	if err != nil {
		r.fail(ctx, logger, req, err)
		return stats, err
	}

	stats.Fetched = len(result.Records)

	if len(result.Records) == 0 {
		logger.Info(fmt.Sprintf("No articles found on page %d. Fetching completed.", req.Page))
		if err := r.recordProgress(ctx, req, result, 0, domain.WalkCompleted); err != nil {
			r.fail(ctx, logger, req, err)
			return stats, err
		}
		stats.Outcome = domain.OutcomeCompleted
		return stats, nil
	}

	logger.Info("Processing articles...")

	valid, rejected := r.validator.FilterBatch(result.Records)
	for _, rej := range rejected {
		logger.Error("Validation failed for article",
			zap.Any("article", rej.Article),
			zap.Error(rej.Err),
		)
	}
	stats.Rejected = len(rejected)

	status := domain.WalkRunning
	if result.IsLast() {
		status = domain.WalkCompleted
	}

	saved, inserted := r.saveArticles(ctx, logger, valid)
	stats.Failed = len(valid) - len(saved)

	if err := r.recordProgress(ctx, req, result, len(saved), status); err != nil {
		r.fail(ctx, logger, req, err)
		return stats, err
	}

	for i := range saved {
		if inserted[i] {
			stats.Inserted++
		} else {
			stats.Updated++
		}
	}

	stats.Published = r.publish(ctx, logger, saved, inserted)

	logger.Info("Page stats",
		zap.Int("fetched", stats.Fetched),
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
		zap.Int("rejected", stats.Rejected),
		zap.Int("failed", stats.Failed),
		zap.Int("published", stats.Published),
	)

	logger.Info(fmt.Sprintf("Page %d has been processed. Articles have been saved successfully.", req.Page))

	if result.IsLast() {
		logger.Info(fmt.Sprintf("All done for today! Fetching completed for %s.", req.Source))
		stats.Outcome = domain.OutcomeCompleted
		return stats, nil
	}

	next := domain.ContinuationRequest{
		Source:       req.Source,
		NextPage:     req.Page + 1,
		FromDate:     req.FromDate,
		DelaySeconds: int(req.Delay / time.Second),
	}

	logger.Info("Fetching next page...")

	if err := r.queue.Enqueue(ctx, next); err != nil {
		logger.Error("Failed to dispatch next page", zap.Int("next_page", next.NextPage), zap.Error(err))
		return stats, fmt.Errorf("enqueue page %d: %w", next.NextPage, err)
	}

	logger.Info(fmt.Sprintf("Next page:%d is dispatched and will be executed in %d seconds.", next.NextPage, next.DelaySeconds))

	stats.Outcome = domain.OutcomeContinuing
	stats.Next = &next

	return stats, nil
}

// HandleContinuation runs a dequeued continuation. A held lock re-enqueues
// the request. Upstream and configuration failures end the walk and are not
// returned; they have already been logged.
func (r *Runner) HandleContinuation(ctx context.Context, req domain.ContinuationRequest) error {
	_, err := r.Run(ctx, Request{
		Source:   req.Source,
		Page:     req.NextPage,
		FromDate: req.FromDate,
		Delay:    req.Delay(),
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrWalkInProgress):
		r.logger.Info("Walk busy, deferring continuation",
			zap.String("source", req.Source),
			zap.Int("page", req.NextPage),
		)
		if err := r.queue.Enqueue(ctx, req); err != nil {
			return fmt.Errorf("re-enqueue page %d: %w", req.NextPage, err)
		}
		return nil
	case IsConfigurationError(err), IsUpstreamError(err):
		return nil
	default:
		return err
	}
}

func (r *Runner) prepare(req Request) (Request, error) {
	req.Source = normalizeSource(req.Source)

	if req.Source == "" {
		return req, &ConfigurationError{Reason: "source is required"}
	}
	if _, ok := r.allowed[req.Source]; !ok {
		return req, &ConfigurationError{Source: req.Source, Reason: "source is not enabled"}
	}
	if req.Page < 1 {
		return req, &ConfigurationError{Source: req.Source, Reason: fmt.Sprintf("page must be at least 1, got %d", req.Page)}
	}

	if req.FromDate == "" {
		req.FromDate = r.now().AddDate(0, 0, -1).Format(dateLayout)
	} else if _, ok := source.ParseTimestamp(req.FromDate); !ok {
		return req, &ConfigurationError{Source: req.Source, Reason: fmt.Sprintf("unparseable from date %q", req.FromDate)}
	}

	switch {
	case req.Delay == 0:
		req.Delay = r.config.Delay
	case req.Delay < 0:
		return req, &ConfigurationError{Source: req.Source, Reason: "delay must not be negative"}
	}

	return req, nil
}

// saveArticles upserts valid in order, one statement per record. A record the
// store rejects is logged and skipped; its siblings are still saved. It
// returns the saved records and, per saved record, whether a row was inserted.
func (r *Runner) saveArticles(ctx context.Context, logger *zap.Logger, valid []domain.Article) ([]domain.Article, []bool) {
	saved := make([]domain.Article, 0, len(valid))
	inserted := make([]bool, 0, len(valid))

	for i := range valid {
		isNew, err := r.articles.Upsert(ctx, &valid[i])
		if err != nil {
			logger.Error("Failed to save article",
				zap.Any("article", valid[i]),
				zap.Error(err),
			)
			continue
		}
		saved = append(saved, valid[i])
		inserted = append(inserted, isNew)
	}

	return saved, inserted
}

// recordProgress updates the walk state of req in one transaction.
func (r *Runner) recordProgress(
	ctx context.Context,
	req Request,
	result *domain.PageResult,
	saved int,
	status domain.WalkStatus,
) error {
	return r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		state, err := r.walks.Get(txCtx, req.Source, req.FromDate)
		if err != nil {
			return fmt.Errorf("get walk state: %w", err)
		}

		state.Source = req.Source
		state.FromDate = req.FromDate
		state.LastPage = req.Page
		state.TotalPages = result.TotalPages
		state.ArticlesSaved += int64(saved)
		state.Status = status
		state.LastError = ""

		if err := r.walks.Update(txCtx, state); err != nil {
			return fmt.Errorf("update walk state: %w", err)
		}
		return nil
	})
}

func (r *Runner) publish(ctx context.Context, logger *zap.Logger, articles []domain.Article, inserted []bool) int {
	if r.publisher == nil {
		return 0
	}

	published := 0
	for i := range articles {
		if err := r.publisher.Publish(ctx, &articles[i], inserted[i]); err != nil {
			logger.Warn("Failed to publish article event",
				zap.String("article_url", articles[i].ArticleURL),
				zap.Error(err),
			)
			continue
		}
		published++
	}
	return published
}

func (r *Runner) fail(ctx context.Context, logger *zap.Logger, req Request, cause error) {
	logger.Error(fmt.Sprintf("Error fetching articles: %v", cause))

	state, err := r.walks.Get(ctx, req.Source, req.FromDate)
	if err != nil {
		logger.Warn("Failed to load walk state", zap.Error(err))
		return
	}
	state.Source = req.Source
	state.FromDate = req.FromDate
	state.Status = domain.WalkFailed
	state.LastError = cause.Error()

	if err := r.walks.Update(ctx, state); err != nil {
		logger.Warn("Failed to mark walk as failed", zap.Error(err))
	}
}

func normalizeSource(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
