package queue

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"news_aggregator/internal/domain"
)

const (
	continuationBucket = "continuations"
	boltKeyBytes       = 16
)

// DefaultBoltLockTimeout bounds how long an operation waits for another
// process holding the file.
const DefaultBoltLockTimeout = 5 * time.Second

// Bolt is a queue on a local bbolt file. Keys are the big-endian due time
// followed by a sequence number, so a cursor walk yields the earliest due item
// first. Items are removed before their handler runs.
//
// The file is opened only for the duration of each transaction, so several
// processes on one host (the worker and ingest CLI runs) can share it.
type Bolt struct {
	path         string
	lockTimeout  time.Duration
	pollInterval time.Duration
	now          func() time.Time
	logger       *zap.Logger

	// mu serializes opens within this process; bbolt file locks are per
	// open file description.
	mu sync.Mutex
}

func OpenBolt(path string, pollInterval time.Duration, logger *zap.Logger) (*Bolt, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create queue directory: %w", err)
		}
	}

	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	b := &Bolt{
		path:         path,
		lockTimeout:  DefaultBoltLockTimeout,
		pollInterval: pollInterval,
		now:          time.Now,
		logger:       logger,
	}

	if err := b.update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(continuationBucket))
		return err
	}); err != nil {
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return b, nil
}

func (b *Bolt) open() (*bolt.DB, error) {
	db, err := bolt.Open(b.path, 0o600, &bolt.Options{Timeout: b.lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	return db, nil
}

func (b *Bolt) update(fn func(tx *bolt.Tx) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	db, err := b.open()
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(fn)
}

func (b *Bolt) view(fn func(tx *bolt.Tx) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	db, err := b.open()
	if err != nil {
		return err
	}
	defer db.Close()

	return db.View(fn)
}

func (b *Bolt) Enqueue(_ context.Context, req domain.ContinuationRequest) error {
	body, err := encode(req)
	if err != nil {
		return err
	}

	due := b.now().Add(req.Delay())

	err = b.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(continuationBucket))
		if bucket == nil {
			return fmt.Errorf("continuation bucket missing")
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		return bucket.Put(encodeKey(due, seq), body)
	})
	if err != nil {
		return fmt.Errorf("store continuation: %w", err)
	}

	b.logger.Debug("enqueued continuation", append(requestFields(req), zap.Time("due", due))...)
	return nil
}

func (b *Bolt) Consume(ctx context.Context, handler Handler) error {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		if err := b.drain(ctx, handler); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// drain runs handler for every item due now.
func (b *Bolt) drain(ctx context.Context, handler Handler) error {
	for ctx.Err() == nil {
		body, ok, err := b.popDue(b.now())
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		req, err := decode(body)
		if err != nil {
			b.logger.Error("dropping undecodable continuation", zap.Error(err))
			continue
		}

		if err := handler(ctx, req); err != nil {
			b.logger.Error("continuation failed", append(requestFields(req), zap.Error(err))...)
		}
	}
	return nil
}

func (b *Bolt) popDue(now time.Time) ([]byte, bool, error) {
	var body []byte

	err := b.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(continuationBucket))
		if bucket == nil {
			return fmt.Errorf("continuation bucket missing")
		}

		c := bucket.Cursor()
		k, v := c.First()
		if k == nil {
			return nil
		}
		due, ok := decodeDue(k)
		if ok && due.After(now) {
			return nil
		}

		body = append([]byte(nil), v...)
		return c.Delete()
	})
	if err != nil {
		return nil, false, fmt.Errorf("pop continuation: %w", err)
	}

	return body, body != nil, nil
}

// Pending returns the number of stored continuations, due or not.
func (b *Bolt) Pending() (int, error) {
	var n int
	err := b.view(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(continuationBucket))
		if bucket == nil {
			return fmt.Errorf("continuation bucket missing")
		}
		n = bucket.Stats().KeyN
		return nil
	})
	return n, err
}

// Close is a no-op; the file is not held between operations.
func (b *Bolt) Close() error {
	return nil
}

func encodeKey(due time.Time, seq uint64) []byte {
	key := make([]byte, boltKeyBytes)
	binary.BigEndian.PutUint64(key[:8], uint64(due.UnixNano()))
	binary.BigEndian.PutUint64(key[8:], seq)
	return key
}

func decodeDue(key []byte) (time.Time, bool) {
	if len(key) != boltKeyBytes {
		return time.Time{}, false
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(key[:8]))), true
}
