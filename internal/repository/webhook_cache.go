package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// WebhookEventCache remembers processed gateway event ids so replays can be
// acknowledged without touching the database.
type WebhookEventCache interface {
	// Claim returns true the first time an event id is seen.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Release forgets an id whose processing failed so a redelivery is handled.
	Release(ctx context.Context, eventID string) error
}

type RedisWebhookCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisWebhookCache(client *redis.Client, ttl time.Duration) *RedisWebhookCache {
	return &RedisWebhookCache{client: client, ttl: ttl}
}

func webhookKey(eventID string) string { return "skillmint:webhook:" + eventID }

func (c *RedisWebhookCache) Claim(ctx context.Context, eventID string) (bool, error) {
	return c.client.SetNX(ctx, webhookKey(eventID), time.Now().UTC().Unix(), c.ttl).Result()
}

func (c *RedisWebhookCache) Release(ctx context.Context, eventID string) error {
	return c.client.Del(ctx, webhookKey(eventID)).Err()
}

// NopWebhookCache claims every event; the database guards still make replays no-ops.
type NopWebhookCache struct{}

func (NopWebhookCache) Claim(context.Context, string) (bool, error) { return true, nil }
func (NopWebhookCache) Release(context.Context, string) error       { return nil }
