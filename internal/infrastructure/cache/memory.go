package cache

import (
	"context"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ersonp/pivot/internal/domain/ports"
)

// Memory is an in-process cache backed by go-cache.
type Memory struct {
	cache *gocache.Cache
}

var _ ports.AssociationCache = (*Memory)(nil)

// NewMemory creates an in-process cache whose entries expire after ttl.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &Memory{cache: gocache.New(ttl, 15*time.Minute)}
}

// Get returns the cached IDs and whether the key was present.
func (m *Memory) Get(_ context.Context, key string) ([]string, bool, error) {
	x, found := m.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	ids, _ := x.([]string)
	return slices.Clone(ids), true, nil
}

// Set stores the IDs under key.
func (m *Memory) Set(_ context.Context, key string, ids []string) error {
	m.cache.Set(key, slices.Clone(ids), gocache.DefaultExpiration)
	return nil
}

// Invalidate drops the given keys.
func (m *Memory) Invalidate(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.cache.Delete(key)
	}
	return nil
}
