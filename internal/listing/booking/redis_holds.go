package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultHoldPrefix = "hold:listing:"

// RedisHoldStore coordinates per-listing capacity holds across service
// instances by relying on Redis SETNX semantics. Every hold carries a TTL
// to avoid stale locks when a worker dies mid-booking.
type RedisHoldStore struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisHoldStore constructs the hold helper.
func NewRedisHoldStore(client redis.Cmdable, prefix string) *RedisHoldStore {
	if prefix == "" {
		prefix = defaultHoldPrefix
	}
	return &RedisHoldStore{client: client, keyPrefix: prefix}
}

// TryHold attempts to acquire the listing hold using SET NX EX.
func (r *RedisHoldStore) TryHold(ctx context.Context, listingID uuid.UUID, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	key := r.keyPrefix + listingID.String()
	ok, err := r.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Release removes the hold key.
func (r *RedisHoldStore) Release(ctx context.Context, listingID uuid.UUID) error {
	key := r.keyPrefix + listingID.String()
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
