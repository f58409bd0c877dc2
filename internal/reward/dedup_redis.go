package reward

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDedup is a DedupStore backed by Redis. The TTL-indexed keys are
// shared across server instances, so a retried contribution is
// rejected no matter which instance it lands on.
type RedisDedup struct {
	client *redis.Client
}

// NewRedisDedup creates a Redis-backed dedup store
func NewRedisDedup(client *redis.Client) *RedisDedup {
	return &RedisDedup{client: client}
}

// Reserve claims the pair with SET NX; an existing live key means the
// contribution was already rewarded within the window
func (d *RedisDedup) Reserve(ctx context.Context, sessionID, contributionID string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, DedupKey(sessionID, contributionID), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve dedup key: %w", err)
	}
	return ok, nil
}

// Release deletes the claim so the pair can be reserved again
func (d *RedisDedup) Release(ctx context.Context, sessionID, contributionID string) error {
	if err := d.client.Del(ctx, DedupKey(sessionID, contributionID)).Err(); err != nil {
		return fmt.Errorf("failed to release dedup key: %w", err)
	}
	return nil
}
