package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Bus publishes pipeline events onto Redis Streams. Each topic is one stream;
// consumer groups provide at-least-once delivery to stage consumers.
type Bus struct {
	client *redis.Client
}

// NewBus wraps a Redis client as an event publisher.
func NewBus(client *redis.Client) *Bus {
	return &Bus{client: client}
}

// Publish appends the JSON-encoded payload to the topic stream.
func (b *Bus) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	if err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{"payload": data},
	}).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// EnsureGroup creates the consumer group for the topic if it does not exist.
func (b *Bus) EnsureGroup(ctx context.Context, topic, group string) error {
	err := b.client.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", group, topic, err)
	}
	return nil
}

// Ack acknowledges a delivered message for the group.
func (b *Bus) Ack(ctx context.Context, topic, group, messageID string) error {
	return b.client.XAck(ctx, topic, group, messageID).Err()
}

// DecodePayload extracts the JSON payload from a stream entry into dst.
func DecodePayload(values map[string]interface{}, dst interface{}) error {
	raw, ok := values["payload"]
	if !ok {
		return fmt.Errorf("event missing payload field")
	}
	str, ok := raw.(string)
	if !ok {
		return fmt.Errorf("event payload has unexpected type %T", raw)
	}
	if err := json.Unmarshal([]byte(str), dst); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}
	return nil
}
