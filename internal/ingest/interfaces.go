package ingest

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"news_aggregator/internal/domain"
	"news_aggregator/internal/source"
)

type AdapterFactory interface {
	Create(name string) (source.Adapter, error)
}

type ArticleStore interface {
	// Upsert inserts or overwrites the article keyed by ArticleURL and
	// reports whether a new row was inserted.
	Upsert(ctx context.Context, article *domain.Article) (bool, error)
}

type WalkStateStore interface {
	Get(ctx context.Context, source, fromDate string) (*domain.WalkState, error)
	Update(ctx context.Context, state *domain.WalkState) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, req domain.ContinuationRequest) error
}

type Locker interface {
	// Acquire returns a token and true when the lock was taken.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Publisher interface {
	Publish(ctx context.Context, article *domain.Article, isNew bool) error
}
