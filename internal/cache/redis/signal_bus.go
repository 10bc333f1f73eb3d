package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// defaultStreamLen caps auction streams when the caller passes zero.
const defaultStreamLen int64 = 10_000

// SignalBus implements domain.SignalBus using Redis Pub/Sub for live fan-out
// of auction events and a capped Redis Stream as a durable copy.
type SignalBus struct {
	rdb       *redis.Client
	streamLen int64
}

// NewSignalBus creates a SignalBus backed by the given Client. Streams are
// trimmed to roughly streamLen entries.
func NewSignalBus(c *Client, streamLen int64) *SignalBus {
	if streamLen <= 0 {
		streamLen = defaultStreamLen
	}
	return &SignalBus{rdb: c.Underlying(), streamLen: streamLen}
}

// Publish sends a raw byte payload to a Redis Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// StreamAppend appends a payload to a Redis stream using XADD with an
// approximate MAXLEN for automatic trimming.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: sb.streamLen,
		Approx: true,
		Values: map[string]any{
			"payload": payload,
		},
	}
	if err := sb.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
