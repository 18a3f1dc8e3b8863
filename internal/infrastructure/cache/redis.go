package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ersonp/pivot/internal/domain/ports"
)

// Redis is a shared cache backed by Redis strings holding JSON arrays.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

var _ ports.AssociationCache = (*Redis)(nil)

// NewRedis creates a Redis-backed cache. A zero ttl keeps entries until invalidated.
func NewRedis(rdb *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Get returns the cached IDs and whether the key was present.
func (r *Redis) Get(ctx context.Context, key string) ([]string, bool, error) {
	data, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	ids, err := decodeIDs(data)
	if err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

// Set stores the IDs under key.
func (r *Redis) Set(ctx context.Context, key string, ids []string) error {
	data, err := encodeIDs(ids)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate drops the given keys.
func (r *Redis) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = r.prefix + key
	}
	if err := r.rdb.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
