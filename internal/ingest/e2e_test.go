package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"news_aggregator/internal/config"
	"news_aggregator/internal/domain"
	"news_aggregator/internal/source/registry"
	"news_aggregator/internal/source/sourcetest"
)

type memArticles struct {
	mu   sync.Mutex
	rows map[string]domain.Article
}

func (m *memArticles) Upsert(_ context.Context, a *domain.Article) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Postgres text columns reject NUL.
	for _, f := range []string{a.Title, a.Description, a.Content, a.Author, a.Source} {
		if strings.IndexByte(f, 0) >= 0 {
			return false, errors.New(`pq: invalid byte sequence for encoding "UTF8": 0x00`)
		}
	}
	if m.rows == nil {
		m.rows = map[string]domain.Article{}
	}
	_, exists := m.rows[a.ArticleURL]
	m.rows[a.ArticleURL] = *a
	return !exists, nil
}

type memWalks struct {
	mu     sync.Mutex
	states map[string]domain.WalkState
}

func (m *memWalks) Get(_ context.Context, source, fromDate string) (*domain.WalkState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.states[source+"|"+fromDate]
	return &st, nil
}

func (m *memWalks) Update(_ context.Context, state *domain.WalkState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states == nil {
		m.states = map[string]domain.WalkState{}
	}
	m.states[state.Source+"|"+state.FromDate] = *state
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type recordingQueue struct {
	mu       sync.Mutex
	requests []domain.ContinuationRequest
}

func (q *recordingQueue) Enqueue(_ context.Context, req domain.ContinuationRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requests = append(q.requests, req)
	return nil
}

type freeLocker struct{}

func (freeLocker) Acquire(context.Context, string, time.Duration) (string, bool, error) {
	return "t", true, nil
}

func (freeLocker) Release(context.Context, string, string) error { return nil }

const newsapiPage = `{
	"status": "ok",
	"totalResults": 60,
	"articles": [{
		"source": {"id": "bbc-news", "name": "BBC News"},
		"author": "Jane Doe",
		"title": "Markets rally",
		"description": "Stocks rose.",
		"url": "https://www.bbc.co.uk/news/markets-1",
		"urlToImage": "https://ichef.bbci.co.uk/1.jpg",
		"publishedAt": "2024-11-20T08:30:00Z",
		"content": "Full text"
	}]
}`

type e2eFixture struct {
	client   *sourcetest.Client
	articles *memArticles
	walks    *memWalks
	queue    *recordingQueue
	logs     *observer.ObservedLogs
	runner   *Runner
}

func newE2E(t *testing.T, body string) *e2eFixture {
	t.Helper()

	sources := map[string]config.SourceConfig{"newsapi": {APIKey: "key"}}
	client := sourcetest.JSON(body)
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	f := &e2eFixture{
		client:   client,
		articles: &memArticles{},
		walks:    &memWalks{},
		queue:    &recordingQueue{},
		logs:     logs,
	}
	f.runner = NewRunner(
		registry.New(sources, client, logger),
		f.articles,
		f.walks,
		passthroughTx{},
		f.queue,
		freeLocker{},
		nil,
		logger,
		Config{AllowedSources: []string{"newsapi"}},
	)
	return f
}

func TestEndToEndNewsAPIFirstPage(t *testing.T) {
	f := newE2E(t, newsapiPage)

	stats, err := f.runner.Run(context.Background(), Request{Source: "newsapi", Page: 1, FromDate: "2024-11-20"})
	require.NoError(t, err)

	require.Len(t, f.articles.rows, 1)
	row := f.articles.rows["https://www.bbc.co.uk/news/markets-1"]
	assert.Equal(t, "Markets rally", row.Title)
	assert.Equal(t, "BBC News", row.Source)
	assert.Equal(t, "2024-11-20 08:30:00", row.PublishedAt)
	assert.Equal(t, "newsapi", row.APISource)

	require.Len(t, f.queue.requests, 1)
	assert.Equal(t, domain.ContinuationRequest{
		Source:       "newsapi",
		NextPage:     2,
		FromDate:     "2024-11-20",
		DelaySeconds: 12,
	}, f.queue.requests[0])
	assert.Equal(t, domain.OutcomeContinuing, stats.Outcome)

	state := f.walks.states["newsapi|2024-11-20"]
	assert.Equal(t, domain.WalkRunning, state.Status)
	assert.Equal(t, 2, state.TotalPages)
	assert.EqualValues(t, 1, state.ArticlesSaved)
}

func TestEndToEndUnknownSource(t *testing.T) {
	f := newE2E(t, newsapiPage)

	_, err := f.runner.Run(context.Background(), Request{Source: "bogus", Page: 1})

	assert.True(t, IsConfigurationError(err))
	assert.Empty(t, f.client.Requests())
	assert.Empty(t, f.articles.rows)
	assert.Empty(t, f.queue.requests)
	assert.Equal(t, 1, f.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestEndToEndSamePageTwiceIsIdempotent(t *testing.T) {
	f := newE2E(t, newsapiPage)
	req := Request{Source: "newsapi", Page: 1, FromDate: "2024-11-20"}

	first, err := f.runner.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := f.runner.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, f.articles.rows, 1)
	assert.Equal(t, 1, first.Inserted)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.Updated)
	assert.Len(t, f.queue.requests, 2)
}

func TestEndToEndUpstreamFailure(t *testing.T) {
	sources := map[string]config.SourceConfig{"newsapi": {APIKey: "key"}}
	client := sourcetest.NewClient(sourcetest.Response{Status: 401, Body: `{"status":"error","code":"apiKeyInvalid"}`})
	articles := &memArticles{}
	walks := &memWalks{}
	queue := &recordingQueue{}
	logger := zap.NewNop()

	runner := NewRunner(registry.New(sources, client, logger), articles, walks, passthroughTx{}, queue, freeLocker{}, nil, logger,
		Config{AllowedSources: []string{"newsapi"}})

	_, err := runner.Run(context.Background(), Request{Source: "newsapi", Page: 1, FromDate: "2024-11-20"})

	assert.True(t, IsUpstreamError(err))
	assert.Empty(t, articles.rows)
	assert.Empty(t, queue.requests)
	assert.Equal(t, domain.WalkFailed, walks.states["newsapi|2024-11-20"].Status)
}

func TestEndToEndNULInOneArticleKeepsPageAndWalk(t *testing.T) {
	f := newE2E(t, `{
		"status": "ok",
		"totalResults": 120,
		"articles": [
			{"title": "One", "url": "https://e.com/1", "publishedAt": "2024-11-20T08:00:00Z", "content": "a"},
			{"title": "Two", "url": "https://e.com/2", "publishedAt": "2024-11-20T08:05:00Z", "content": "bad\u0000byte"},
			{"title": "Three", "url": "https://e.com/3", "publishedAt": "2024-11-20T08:10:00Z", "content": "c"}
		]
	}`)

	stats, err := f.runner.Run(context.Background(), Request{Source: "newsapi", Page: 1, FromDate: "2024-11-20"})
	require.NoError(t, err)

	assert.Len(t, f.articles.rows, 3)
	assert.Equal(t, "badbyte", f.articles.rows["https://e.com/2"].Content)
	assert.Equal(t, 3, stats.Inserted)
	require.Len(t, f.queue.requests, 1)
	assert.Equal(t, 2, f.queue.requests[0].NextPage)
}
