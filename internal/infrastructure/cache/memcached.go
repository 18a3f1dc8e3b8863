package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/zeebo/xxh3"

	"github.com/ersonp/pivot/internal/domain/ports"
)

// memcached keys are limited to 250 bytes without spaces or control characters.
const maxMemcachedKey = 250

// Memcached is a shared cache backed by memcached.
type Memcached struct {
	mc     *memcache.Client
	prefix string
	ttl    time.Duration
}

var _ ports.AssociationCache = (*Memcached)(nil)

// NewMemcached creates a memcached-backed cache.
func NewMemcached(mc *memcache.Client, prefix string, ttl time.Duration) *Memcached {
	return &Memcached{mc: mc, prefix: prefix, ttl: ttl}
}

// itemKey maps a cache key onto a valid memcached key, hashing keys that
// are too long or contain bytes memcached refuses.
func (m *Memcached) itemKey(key string) string {
	k := m.prefix + key
	if len(k) <= maxMemcachedKey && !strings.ContainsFunc(k, func(r rune) bool { return r <= ' ' || r == 0x7f }) {
		return k
	}
	return fmt.Sprintf("%sh:%016x", m.prefix, xxh3.HashString(key))
}

// Get returns the cached IDs and whether the key was present.
func (m *Memcached) Get(_ context.Context, key string) ([]string, bool, error) {
	item, err := m.mc.Get(m.itemKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("memcached get: %w", err)
	}
	ids, err := decodeIDs(item.Value)
	if err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

// Set stores the IDs under key.
func (m *Memcached) Set(_ context.Context, key string, ids []string) error {
	data, err := encodeIDs(ids)
	if err != nil {
		return err
	}
	if err := m.mc.Set(&memcache.Item{
		Key:        m.itemKey(key),
		Value:      data,
		Expiration: expiration(m.ttl, time.Now()),
	}); err != nil {
		return fmt.Errorf("memcached set: %w", err)
	}
	return nil
}

// maxRelativeExpiration is the longest expiration memcached reads as
// seconds from now. Larger values are read as a Unix timestamp.
const maxRelativeExpiration = 30 * 24 * time.Hour

// expiration converts ttl to a memcached expiration. Zero means no expiry.
func expiration(ttl time.Duration, now time.Time) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl > maxRelativeExpiration {
		return int32(now.Add(ttl).Unix())
	}
	secs := int32(ttl / time.Second)
	if secs == 0 {
		secs = 1
	}
	return secs
}

// Invalidate drops the given keys.
func (m *Memcached) Invalidate(_ context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := m.mc.Delete(m.itemKey(key)); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
			errs = append(errs, fmt.Errorf("memcached delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
