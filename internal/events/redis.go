package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisTransport appends events to a Redis stream consumed by the delivery service.
type RedisTransport struct {
	client *redis.Client
	stream string
}

// NewRedisTransport creates the transport.
func NewRedisTransport(client *redis.Client, stream string) *RedisTransport {
	return &RedisTransport{client: client, stream: stream}
}

// Send adds the event to the stream.
func (t *RedisTransport) Send(ctx context.Context, event Event) error {
	if t.client == nil {
		return ErrTransportUnavailable
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return t.client.XAdd(ctx, &redis.XAddArgs{
		Stream: t.stream,
		Values: map[string]any{
			"id":           event.ID,
			"kind":         string(event.Kind),
			"recipient_id": event.RecipientID,
			"payload":      string(payload),
		},
	}).Err()
}
