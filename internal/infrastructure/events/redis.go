package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/ports"
)

// RedisPublisher publishes events as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

var _ ports.EventPublisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher for the given channel.
func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{
		rdb:     rdb,
		channel: channel,
		logger:  slog.Default().With("module", "events"),
	}
}

// Publish sends the event to the channel.
func (p *RedisPublisher) Publish(ctx context.Context, event entities.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.channel, err)
	}
	return nil
}

// Subscribe relays events published on the channel into sink until ctx is
// done. Messages that fail to decode are logged and skipped.
func (p *RedisPublisher) Subscribe(ctx context.Context, sink ports.EventPublisher) error {
	pubsub := p.rdb.Subscribe(ctx, p.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", p.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event entities.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				p.logger.WarnContext(ctx, "invalid event payload", slog.String("error", err.Error()))
				continue
			}
			if err := sink.Publish(ctx, event); err != nil {
				p.logger.WarnContext(ctx, "relaying event failed",
					slog.String("type", string(event.Type)),
					slog.String("error", err.Error()))
			}
		}
	}
}
