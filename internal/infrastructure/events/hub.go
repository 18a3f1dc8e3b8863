// Package events delivers committed change events to in-process
// subscribers and external brokers.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/ports"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Filter selects the events a subscriber receives. Empty fields match anything.
// Events about a whole pivot carry no left ID and reach every subscriber of
// that pivot.
type Filter struct {
	Pivot  string
	LeftID string
}

func (f Filter) match(e entities.ChangeEvent) bool {
	if f.Pivot != "" && f.Pivot != e.Pivot {
		return false
	}
	if f.LeftID != "" && e.LeftID != "" && f.LeftID != e.LeftID {
		return false
	}
	if f.LeftID != "" && e.LeftID == "" && e.Pivot == "" {
		return false
	}
	return true
}

type subscriber struct {
	ch     chan entities.ChangeEvent
	filter Filter
}

// Hub fans events out to in-process subscribers. A subscriber that falls
// behind drops events rather than blocking the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	logger *slog.Logger
}

var _ ports.EventPublisher = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		logger: logger.With(slog.String("module", "events")),
	}
}

// Subscribe registers a listener. The returned cancel func unregisters it
// and closes the channel.
func (h *Hub) Subscribe(filter Filter) (<-chan entities.ChangeEvent, func()) {
	sub := &subscriber{ch: make(chan entities.ChangeEvent, DefaultBuffer), filter: filter}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Subscribers returns the number of registered listeners.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers the event to every matching subscriber without blocking.
func (h *Hub) Publish(ctx context.Context, event entities.ChangeEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if !sub.filter.match(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			h.logger.WarnContext(ctx, "subscriber buffer full, dropping event",
				slog.String("type", string(event.Type)),
				slog.String("pivot", event.Pivot))
		}
	}
	return nil
}
