package events

import (
	"context"
	"log/slog"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/ports"
)

// LogPublisher writes change events to a structured logger.
type LogPublisher struct {
	logger *slog.Logger
}

var _ ports.EventPublisher = (*LogPublisher)(nil)

// NewLogPublisher creates a publisher logging through logger.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger.With(slog.String("module", "events"))}
}

// Publish logs the event at Info. It never fails.
func (p *LogPublisher) Publish(ctx context.Context, event entities.ChangeEvent) error {
	attrs := []slog.Attr{slog.String("type", string(event.Type))}
	if event.Pivot != "" {
		attrs = append(attrs, slog.String("pivot", event.Pivot))
	}
	if event.LeftID != "" {
		attrs = append(attrs, slog.String("left_id", event.LeftID))
	}
	if event.Collection != "" {
		attrs = append(attrs, slog.String("collection", event.Collection), slog.String("entity_id", event.EntityID))
	}
	if len(event.Added) > 0 {
		attrs = append(attrs, slog.Any("added", event.Added))
	}
	if len(event.Removed) > 0 {
		attrs = append(attrs, slog.Any("removed", event.Removed))
	}
	p.logger.LogAttrs(ctx, slog.LevelInfo, "change", attrs...)
	return nil
}
