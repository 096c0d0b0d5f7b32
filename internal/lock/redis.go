// Package lock provides the per-source single-flight lock that keeps two
// invocations of the same walk from running at once.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired elsewhere is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis implements a TTL-bounded lock with SET NX PX.
type Redis struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedis(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisWithClient(client, logger), nil
}

func NewRedisWithClient(client *redis.Client, logger *zap.Logger) *Redis {
	return &Redis{client: client, logger: logger}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("set %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}

	r.logger.Debug("lock acquired", zap.String("key", key), zap.Duration("ttl", ttl))
	return token, true, nil
}

func (r *Redis) Release(ctx context.Context, key, token string) error {
	err := releaseScript.Run(ctx, r.client, []string{key}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
