package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"todokit/domain"
)

type backend interface {
	Add(ctx context.Context, text string) (domain.Todo, error)
	List(ctx context.Context) ([]domain.Todo, error)
	Complete(ctx context.Context, id string) (domain.Todo, error)
	Delete(ctx context.Context, id string) error
}

const todosCacheKey = "todos:all"

// Cache wraps a store with Redis-backed caching for List. Every mutation
// evicts the cached list after the underlying write succeeds, so readers see
// the mutation on the next rebuild regardless of which path performed it.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching store wrapper using the provided Redis client
// and TTL. A nil client disables caching.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) Add(ctx context.Context, text string) (domain.Todo, error) {
	t, err := c.base.Add(ctx, text)
	if err != nil {
		return domain.Todo{}, err
	}
	c.evict(ctx)
	return t, nil
}

func (c *Cache) List(ctx context.Context) ([]domain.Todo, error) {
	if todos, ok := c.loadFromCache(ctx); ok {
		return todos, nil
	}
	todos, err := c.base.List(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, todos)
	return todos, nil
}

func (c *Cache) Complete(ctx context.Context, id string) (domain.Todo, error) {
	t, err := c.base.Complete(ctx, id)
	if err != nil {
		return domain.Todo{}, err
	}
	c.evict(ctx)
	return t, nil
}

func (c *Cache) Delete(ctx context.Context, id string) error {
	if err := c.base.Delete(ctx, id); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context) ([]domain.Todo, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, todosCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing store without failing.
			_ = c.redis.Del(ctx, todosCacheKey).Err()
		}
		return nil, false
	}
	var todos []domain.Todo
	if err := sonic.Unmarshal(data, &todos); err != nil {
		_ = c.redis.Del(ctx, todosCacheKey).Err()
		return nil, false
	}
	return todos, true
}

func (c *Cache) store(ctx context.Context, todos []domain.Todo) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(todos)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, todosCacheKey, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, todosCacheKey).Err()
}
