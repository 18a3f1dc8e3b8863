package events

import (
	"context"
	"errors"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/ports"
)

// Multi publishes to every wrapped publisher and joins their errors.
type Multi []ports.EventPublisher

var _ ports.EventPublisher = Multi(nil)

// Publish delivers the event to each publisher in order.
func (m Multi) Publish(ctx context.Context, event entities.ChangeEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
