package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/shopmate/shopmate/internal/logging"
)

const relayChannel = "shopmate:realtime"

// RedisRelay publishes events to every instance; each delivers to its local hub.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	logger *slog.Logger
}

func NewRedisRelay(client *redis.Client, hub *Hub, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{client: client, hub: hub, logger: logger}
}

func (r *RedisRelay) Emit(ctx context.Context, room, event string, payload any) error {
	msg, err := newMessage(room, event, payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode relay message: %w", err)
	}
	if err := r.client.Publish(ctx, relayChannel, encoded).Err(); err != nil {
		return fmt.Errorf("failed to publish realtime event: %w", err)
	}
	return nil
}

// Run forwards relayed messages to the local hub until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, relayChannel)
	defer func() {
		_ = sub.Close() //nolint:errcheck
	}()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to realtime relay: %w", err)
	}

	logger := logging.FromContext(ctx, r.logger)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case received, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(received.Payload), &msg); err != nil {
				logger.Warn("discarding malformed relay message", "error", err)
				continue
			}
			r.hub.Deliver(ctx, msg)
		}
	}
}
