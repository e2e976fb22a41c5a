package broadcast

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/nertverse/conduct/pkg/api"
)

// RedisPublisher publishes events as JSON on a Redis pub/sub channel.
// Publish errors are dropped: event delivery is best-effort and must
// never feed back into an execution.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher for the given channel. An empty
// channel name defaults to "conduct:events".
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = "conduct:events"
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event api.ExecutionEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		return
	}
	p.client.Publish(ctx, p.channel, body)
}
