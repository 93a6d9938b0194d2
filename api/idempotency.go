package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper stores processed interaction event ids in Redis so all
// instances can avoid replaying the same widget event (clients retry action
// posts on flaky connections).
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(userID, eventID string) string {
	return fmt.Sprintf("event:%s:%s", userID, eventID)
}

// Add records the event id if it does not already exist. It returns true when
// the id was newly added.
func (r *RedisDeduper) Add(ctx context.Context, userID, eventID string) (bool, error) {
	return r.client.SetNX(ctx, r.key(userID, eventID), 1, r.ttl).Result()
}

// Remove deletes a previously recorded id. It is used when processing fails
// so the client may retry the event.
func (r *RedisDeduper) Remove(ctx context.Context, userID, eventID string) error {
	return r.client.Del(ctx, r.key(userID, eventID)).Err()
}
