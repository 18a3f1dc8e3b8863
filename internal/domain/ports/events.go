package ports

import (
	"context"

	"github.com/ersonp/pivot/internal/domain/entities"
)

// EventPublisher delivers committed change events to listeners.
type EventPublisher interface {
	Publish(ctx context.Context, event entities.ChangeEvent) error
}
