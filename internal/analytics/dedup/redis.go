package dedup

import (
	"context"
	"fmt"
	"time"

	"careflow/internal/platform/redis"
)

const keyPrefix = "careflow:analytics:event:"

// DefaultTTL bounds how long processed ids are remembered. Redeliveries
// arrive within the consumer group's retry horizon, so a week is ample.
const DefaultTTL = 7 * 24 * time.Hour

// Redis tracks processed event ids in Redis so deduplication survives
// consumer restarts and works across instances.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// MarkProcessed claims the event id with SETNX. The first claimer gets true;
// everyone after gets false until the key expires.
func (r *Redis) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	first, err := r.client.SetNX(ctx, keyPrefix+eventID, "1", r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event id: %w", err)
	}
	return first, nil
}
