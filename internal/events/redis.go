package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"ytarchiver/internal/config"
)

const publishTimeout = 2 * time.Second

// RedisPublisher publishes events on a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher returns a RedisPublisher when events.redis_addr is set and Nop
// otherwise.
func NewPublisher(cfg *config.Config) Publisher {
	if cfg == nil || strings.TrimSpace(cfg.Events.RedisAddr) == "" {
		return Nop{}
	}
	return NewRedisPublisher(&redis.Options{
		Addr:        cfg.Events.RedisAddr,
		Password:    cfg.Events.RedisPassword,
		DB:          cfg.Events.RedisDB,
		DialTimeout: publishTimeout,
	}, cfg.Events.Channel)
}

// NewRedisPublisher builds a publisher from explicit client options.
func NewRedisPublisher(opts *redis.Options, channel string) *RedisPublisher {
	return &RedisPublisher{
		client:  redis.NewClient(opts),
		channel: channel,
	}
}

// Ping checks connectivity.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	data, err := event.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
