package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes events as JSON on a pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher returns a publisher for channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Name implements Emitter.
func (p *RedisPublisher) Name() string { return "redis" }

// Emit implements Emitter.
func (p *RedisPublisher) Emit(ctx context.Context, e Event) error {
	if p.client == nil {
		return errors.New("audit redis publisher has no client")
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}
