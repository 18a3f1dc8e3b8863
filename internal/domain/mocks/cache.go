package mocks

import (
	"context"
	"slices"
	"sync"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/ports"
)

// Cache is a map-backed AssociationCache that records invalidations.
type Cache struct {
	mu          sync.Mutex
	entries     map[string][]string
	Invalidated []string
	Err         error
}

var _ ports.AssociationCache = (*Cache)(nil)

// NewCache creates a new mock Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string][]string)}
}

// Get returns the cached IDs and whether the key was present.
func (c *Cache) Get(_ context.Context, key string) ([]string, bool, error) {
	if c.Err != nil {
		return nil, false, c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ids, ok := c.entries[key]
	return slices.Clone(ids), ok, nil
}

// Set stores the IDs under key.
func (c *Cache) Set(_ context.Context, key string, ids []string) error {
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = slices.Clone(ids)
	return nil
}

// Invalidate drops the given keys.
func (c *Cache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Invalidated = append(c.Invalidated, keys...)
	if c.Err != nil {
		return c.Err
	}
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

// Has reports whether key is cached.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Publisher records published change events.
type Publisher struct {
	mu     sync.Mutex
	Events []entities.ChangeEvent
	Err    error
}

var _ ports.EventPublisher = (*Publisher)(nil)

// Publish records the event.
func (p *Publisher) Publish(_ context.Context, event entities.ChangeEvent) error {
	if p.Err != nil {
		return p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, event)
	return nil
}

// Published returns a copy of the recorded events.
func (p *Publisher) Published() []entities.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.Events)
}
