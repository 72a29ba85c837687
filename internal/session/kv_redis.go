package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV implements KV on a Redis string key with an optional TTL.
// Session snapshots are small JSON blobs; a single GET/SET/DEL slot is all
// the persistence this subsystem needs.
type RedisKV struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisKV wraps a Redis client. ttl of zero means no expiry.
func NewRedisKV(rdb *redis.Client, ttl time.Duration) *RedisKV {
	return &RedisKV{rdb: rdb, ttl: ttl}
}

func (r *RedisKV) GetItem(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *RedisKV) SetItem(ctx context.Context, key, value string) error {
	return r.rdb.Set(ctx, key, value, r.ttl).Err()
}

func (r *RedisKV) RemoveItem(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}
