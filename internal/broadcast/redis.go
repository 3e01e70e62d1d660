package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const subscribeTimeout = 2 * time.Second

// RedisTransport carries channels over Redis pub/sub so that separate
// processes sharing a Redis server see each other's messages.
type RedisTransport struct {
	client    redis.UniversalClient
	keyPrefix string
	logger    *slog.Logger
}

func NewRedisTransport(client redis.UniversalClient, keyPrefix string, logger *slog.Logger) *RedisTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisTransport{client: client, keyPrefix: keyPrefix, logger: logger}
}

func (r *RedisTransport) channel(name string) string {
	return r.keyPrefix + name
}

func (r *RedisTransport) Subscribe(name string, deliver func([]byte)) (Subscription, error) {
	ps := r.client.Subscribe(context.Background(), r.channel(name))

	// Wait for the subscribe confirmation so no message published after
	// Subscribe returns is missed.
	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", name, err)
	}

	// One reader per subscription keeps delivery in publish order
	ch := ps.Channel()
	go func() {
		for msg := range ch {
			deliver([]byte(msg.Payload))
		}
		r.logger.Debug("redis subscription reader stopped", "channel", name)
	}()

	return ps, nil
}

func (r *RedisTransport) Publish(ctx context.Context, name string, data []byte) error {
	return r.client.Publish(ctx, r.channel(name), data).Err()
}
