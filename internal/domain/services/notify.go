package services

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/ports"
)

var tracer = otel.Tracer("services")

// validNameRegex allows lowercase alphanumerics and underscores, starting with a letter.
var validNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Option configures the optional collaborators of a service.
type Option func(*notifier)

// WithCache sets the association cache. Services built from the same
// option share one fill guard, so a read racing a commit in any of them
// never repopulates the cache with the pre-commit set.
func WithCache(cache ports.AssociationCache) Option {
	guard := &fillGuard{}
	return func(n *notifier) {
		n.cache = cache
		n.guard = guard
	}
}

// WithPublisher sets the change event publisher.
func WithPublisher(publisher ports.EventPublisher) Option {
	return func(n *notifier) { n.publisher = publisher }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *notifier) { n.logger = logger }
}

// notifier runs the post-commit side effects shared by the services.
// Failures are logged and never returned: the change is already committed.
type notifier struct {
	cache     ports.AssociationCache
	guard     *fillGuard
	publisher ports.EventPublisher
	logger    *slog.Logger
}

// fillGuard orders cache fills against invalidations. Every invalidation
// bumps the epoch; a fill is written only if no invalidation happened since
// the store was read. The check and the write happen under one lock, and
// invalidations bump the epoch before dropping keys.
type fillGuard struct {
	mu    sync.Mutex
	epoch uint64
}

func (g *fillGuard) current() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.epoch
}

func (g *fillGuard) bump() {
	g.mu.Lock()
	g.epoch++
	g.mu.Unlock()
}

// fillIf runs set while holding the lock if the epoch is still start.
func (g *fillGuard) fillIf(start uint64, set func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.epoch != start {
		return false
	}
	set()
	return true
}

func newNotifier(module string, opts []Option) notifier {
	n := notifier{}
	for _, opt := range opts {
		opt(&n)
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	if n.guard == nil {
		n.guard = &fillGuard{}
	}
	n.logger = n.logger.With("module", module)
	return n
}

// CacheKey is the cache key for the right-ID set of a left entity.
func CacheKey(pivot, leftID string) string {
	return pivot + ":" + leftID
}

func (n *notifier) invalidate(ctx context.Context, keys ...string) {
	if n.cache == nil || len(keys) == 0 {
		return
	}
	n.guard.bump()
	if err := n.cache.Invalidate(ctx, keys...); err != nil {
		n.logger.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}

// fillStart marks the start of a cache fill; pass it to fill after the
// store has been read.
func (n *notifier) fillStart() uint64 {
	return n.guard.current()
}

// fill caches ids under key unless the key may have been invalidated since
// start.
func (n *notifier) fill(ctx context.Context, start uint64, key string, ids []string) {
	if n.cache == nil {
		return
	}
	var err error
	if !n.guard.fillIf(start, func() { err = n.cache.Set(ctx, key, ids) }) {
		n.logger.Debug("cache fill skipped after concurrent change", "key", key)
		return
	}
	if err != nil {
		n.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// publishRemovals announces, per left entity, the right IDs a cascade
// removed from a pivot.
func (n *notifier) publishRemovals(ctx context.Context, pivot string, removed map[string][]string, at time.Time) {
	leftIDs := make([]string, 0, len(removed))
	for leftID := range removed {
		leftIDs = append(leftIDs, leftID)
	}
	sort.Strings(leftIDs)
	for _, leftID := range leftIDs {
		n.publish(ctx, entities.ChangeEvent{
			Type:    entities.ChangeUnlinked,
			Pivot:   pivot,
			LeftID:  leftID,
			Removed: entities.UniqueSorted(removed[leftID]),
			At:      at,
		})
	}
}

func (n *notifier) publish(ctx context.Context, event entities.ChangeEvent) {
	if n.publisher == nil {
		return
	}
	if err := n.publisher.Publish(ctx, event); err != nil {
		n.logger.Warn("publishing change event failed", "type", event.Type, "pivot", event.Pivot, "error", err)
	}
}

// CacheInvalidator drops cached right-ID sets named by change events. It
// keeps a process cache coherent with changes committed elsewhere, when
// those changes arrive through a shared event channel.
type CacheInvalidator struct {
	notifier
}

var _ ports.EventPublisher = (*CacheInvalidator)(nil)

// NewCacheInvalidator builds an invalidator over the cache set by opts.
// Pass the same options as the services so fills and invalidations share
// one guard.
func NewCacheInvalidator(opts ...Option) *CacheInvalidator {
	return &CacheInvalidator{notifier: newNotifier("invalidator", opts)}
}

// Publish invalidates the key of the event's pivot and left entity.
// Events not tied to one left entity carry no key and are ignored.
func (c *CacheInvalidator) Publish(ctx context.Context, event entities.ChangeEvent) error {
	if c.cache == nil || event.Pivot == "" || event.LeftID == "" {
		return nil
	}
	c.guard.bump()
	return c.cache.Invalidate(ctx, CacheKey(event.Pivot, event.LeftID))
}

// requirePivot loads a pivot or fails with a NotFoundError.
func requirePivot(ctx context.Context, db ports.RelationalDB, name string) (*entities.Pivot, error) {
	p, err := db.FindPivot(ctx, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, entities.NotFoundError{Resource: "pivot", IDs: []string{name}}
	}
	return p, nil
}
