package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

// DefaultRedisChannel is the pub/sub channel events are published on.
const DefaultRedisChannel = "pingmonitor.alerts"

// Redis publishes every event as JSON so other services can subscribe.
type Redis struct {
	Client  *redis.Client
	Channel string
}

func NewRedis(addr, password, channel string) *Redis {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &Redis{
		Client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       0,
		}),
		Channel: channel,
	}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Send(ctx context.Context, ev domain.AlertEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return r.Client.Publish(ctx, r.Channel, payload).Err()
}

// Ping checks connectivity; used at startup and by preflight.
func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) Close() error { return r.Client.Close() }
