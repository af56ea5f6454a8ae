package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures from the Redis backend.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisBackend stores blobs under "<prefix>:<key>" with the cache MaxAge as
// the key TTL.
type RedisBackend struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "cred"
	}
	return &RedisBackend{redis: client, prefix: prefix}
}

func (r *RedisBackend) key(key string) string {
	return r.prefix + ":" + key
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.redis.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return data, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.redis.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
