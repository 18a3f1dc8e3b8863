package ports

import "context"

// AssociationCache caches the right-ID set of a left entity within a pivot.
// Implementations are best effort: a failed Get is a miss and a failed
// write is logged by the caller, never surfaced.
type AssociationCache interface {
	// Get returns the cached IDs and whether the key was present.
	Get(ctx context.Context, key string) ([]string, bool, error)

	// Set stores the IDs under key.
	Set(ctx context.Context, key string, ids []string) error

	// Invalidate drops the given keys.
	Invalidate(ctx context.Context, keys ...string) error
}
