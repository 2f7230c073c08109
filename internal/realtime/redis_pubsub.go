package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	statusChannel = "tracker:status"
	publishTTL    = 5 * time.Second
)

// RedisPubSub bridges status updates across instances via Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for status updates.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

// PublishStatusUpdate publishes a status payload to the shared channel.
func (r *RedisPubSub) PublishStatusUpdate(payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTTL)
	defer cancel()
	return r.client.Publish(ctx, statusChannel, payload).Err()
}

// Subscribe listens on the shared status channel and calls handler for each
// payload until ctx is done.
func (r *RedisPubSub) Subscribe(ctx context.Context, handler func(payload []byte)) error {
	pubsub := r.client.Subscribe(ctx, statusChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()
	return nil
}
