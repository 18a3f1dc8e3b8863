// Package cache provides AssociationCache backends.
package cache

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"

	"github.com/ersonp/pivot/internal/domain/ports"
	"github.com/ersonp/pivot/internal/infrastructure/config"
)

// NewRedisClient creates a Redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewMemcachedClient creates a memcached client. Addr may list several
// servers separated by commas.
func NewMemcachedClient(cfg config.MemcachedConfig) *memcache.Client {
	var servers []string
	for _, s := range strings.Split(cfg.Addr, ",") {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, s)
		}
	}
	return memcache.New(servers...)
}

// New builds the cache selected by cfg.Cache.Driver. The "none" driver
// returns a nil cache, which the services treat as disabled. A non-nil
// rdb is reused for the redis driver.
func New(cfg *config.Config, rdb *redis.Client) (ports.AssociationCache, error) {
	switch cfg.Cache.Driver {
	case config.CacheNone, "":
		return nil, nil
	case config.CacheMemory:
		return NewMemory(cfg.Cache.TTL), nil
	case config.CacheRedis:
		if rdb == nil {
			rdb = NewRedisClient(cfg.Redis)
		}
		return NewRedis(rdb, cfg.Cache.Prefix, cfg.Cache.TTL), nil
	case config.CacheMemcached:
		return NewMemcached(NewMemcachedClient(cfg.Memcached), cfg.Cache.Prefix, cfg.Cache.TTL), nil
	default:
		return nil, fmt.Errorf("unknown cache driver: %s", cfg.Cache.Driver)
	}
}

func encodeIDs(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

func decodeIDs(data []byte) ([]string, error) {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decoding cached ids: %w", err)
	}
	return ids, nil
}
