package queue

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"news_aggregator/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func openTestBolt(t *testing.T) (*Bolt, *fakeClock) {
	t.Helper()

	q, err := OpenBolt(filepath.Join(t.TempDir(), "nested", "queue.db"), 10*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })

	clock := &fakeClock{now: time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC)}
	q.now = clock.Now
	return q, clock
}

func collect(t *testing.T, q *Bolt) []domain.ContinuationRequest {
	t.Helper()

	var got []domain.ContinuationRequest
	err := q.drain(context.Background(), func(_ context.Context, req domain.ContinuationRequest) error {
		got = append(got, req)
		return nil
	})
	require.NoError(t, err)
	return got
}

func TestBoltHoldsItemsUntilDue(t *testing.T) {
	q, clock := openTestBolt(t)
	ctx := context.Background()

	req := domain.ContinuationRequest{Source: "newsapi", NextPage: 2, FromDate: "2024-11-19", DelaySeconds: 12}
	require.NoError(t, q.Enqueue(ctx, req))

	assert.Empty(t, collect(t, q))

	clock.Advance(11 * time.Second)
	assert.Empty(t, collect(t, q))

	clock.Advance(time.Second)
	assert.Equal(t, []domain.ContinuationRequest{req}, collect(t, q))

	pending, err := q.Pending()
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestBoltDeliversInDueOrder(t *testing.T) {
	q, clock := openTestBolt(t)
	ctx := context.Background()

	late := domain.ContinuationRequest{Source: "guardian", NextPage: 3, DelaySeconds: 30}
	early := domain.ContinuationRequest{Source: "nytimes", NextPage: 2, DelaySeconds: 5}
	sameA := domain.ContinuationRequest{Source: "newsapi", NextPage: 2, DelaySeconds: 10}
	sameB := domain.ContinuationRequest{Source: "newsapi", NextPage: 3, DelaySeconds: 10}

	for _, r := range []domain.ContinuationRequest{late, early, sameA, sameB} {
		require.NoError(t, q.Enqueue(ctx, r))
	}

	pending, err := q.Pending()
	require.NoError(t, err)
	assert.Equal(t, 4, pending)

	clock.Advance(time.Minute)
	assert.Equal(t, []domain.ContinuationRequest{early, sameA, sameB, late}, collect(t, q))
}

func TestBoltDropsFailedItems(t *testing.T) {
	q, _ := openTestBolt(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, domain.ContinuationRequest{Source: "newsapi", NextPage: 2}))

	calls := 0
	err := q.drain(ctx, func(context.Context, domain.ContinuationRequest) error {
		calls++
		return errors.New("boom")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	pending, err := q.Pending()
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestBoltConsumeStopsOnCancel(t *testing.T) {
	q, _ := openTestBolt(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, q.Enqueue(ctx, domain.ContinuationRequest{Source: "newsapi", NextPage: 2}))

	delivered := make(chan domain.ContinuationRequest, 1)
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, func(_ context.Context, req domain.ContinuationRequest) error {
			delivered <- req
			return nil
		})
	}()

	select {
	case req := <-delivered:
		assert.Equal(t, 2, req.NextPage)
	case <-time.After(2 * time.Second):
		t.Fatal("continuation not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not stop")
	}
}

func TestBoltSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")

	q, err := OpenBolt(path, time.Second, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), domain.ContinuationRequest{Source: "guardian", NextPage: 4}))
	require.NoError(t, q.Close())

	q, err = OpenBolt(path, time.Second, zap.NewNop())
	require.NoError(t, err)
	defer q.Close()

	pending, err := q.Pending()
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := decode([]byte(`{"source":"","page":2}`))
	assert.Error(t, err)

	_, err = decode([]byte(`not json`))
	assert.Error(t, err)

	req, err := decode([]byte(`{"source":"newsapi","page":2,"from_date":"2024-11-20","delay_seconds":12}`))
	require.NoError(t, err)
	assert.Equal(t, domain.ContinuationRequest{Source: "newsapi", NextPage: 2, FromDate: "2024-11-20", DelaySeconds: 12}, req)
}

func TestBoltSharedByTwoOpeners(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	worker, err := OpenBolt(path, time.Second, zap.NewNop())
	require.NoError(t, err)
	defer worker.Close()

	cli, err := OpenBolt(path, time.Second, zap.NewNop())
	require.NoError(t, err)
	defer cli.Close()

	first := domain.ContinuationRequest{Source: "newsapi", NextPage: 2}
	second := domain.ContinuationRequest{Source: "guardian", NextPage: 2}
	require.NoError(t, cli.Enqueue(ctx, first))

	var got []domain.ContinuationRequest
	err = worker.drain(ctx, func(_ context.Context, req domain.ContinuationRequest) error {
		got = append(got, req)
		if req == first {
			return cli.Enqueue(ctx, second)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.ContinuationRequest{first, second}, got)
}

func TestBoltWaitsForExternalHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")

	q, err := OpenBolt(path, time.Second, zap.NewNop())
	require.NoError(t, err)
	q.lockTimeout = 50 * time.Millisecond

	holder, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)

	err = q.Enqueue(context.Background(), domain.ContinuationRequest{Source: "newsapi", NextPage: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open bbolt db")

	require.NoError(t, holder.Close())
	require.NoError(t, q.Enqueue(context.Background(), domain.ContinuationRequest{Source: "newsapi", NextPage: 2}))
}
