package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"todokit/domain"
)

type stubBackend struct {
	addFn      func(ctx context.Context, text string) (domain.Todo, error)
	listFn     func(ctx context.Context) ([]domain.Todo, error)
	completeFn func(ctx context.Context, id string) (domain.Todo, error)
	deleteFn   func(ctx context.Context, id string) error
}

func (s *stubBackend) Add(ctx context.Context, text string) (domain.Todo, error) {
	if s.addFn == nil {
		return domain.Todo{}, errors.New("unexpected Add call")
	}
	return s.addFn(ctx, text)
}

func (s *stubBackend) List(ctx context.Context) ([]domain.Todo, error) {
	if s.listFn == nil {
		return nil, errors.New("unexpected List call")
	}
	return s.listFn(ctx)
}

func (s *stubBackend) Complete(ctx context.Context, id string) (domain.Todo, error) {
	if s.completeFn == nil {
		return domain.Todo{}, errors.New("unexpected Complete call")
	}
	return s.completeFn(ctx, id)
}

func (s *stubBackend) Delete(ctx context.Context, id string) error {
	if s.deleteFn == nil {
		return errors.New("unexpected Delete call")
	}
	return s.deleteFn(ctx, id)
}

func newCacheFixture(t *testing.T, base backend) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(base, client, time.Minute), mr
}

func TestCacheListMissThenHit(t *testing.T) {
	ctx := context.Background()
	expected := []domain.Todo{{ID: "todo_1", Text: "write code", CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}}

	var calls int
	cache, mr := newCacheFixture(t, &stubBackend{
		listFn: func(context.Context) ([]domain.Todo, error) {
			calls++
			return append([]domain.Todo(nil), expected...), nil
		},
	})

	todos, err := cache.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(todos, expected) {
		t.Fatalf("unexpected todos: %#v", todos)
	}
	if calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", calls)
	}
	if ttl := mr.TTL(todosCacheKey); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	todos, err = cache.List(ctx)
	if err != nil {
		t.Fatalf("cached list: %v", err)
	}
	if !reflect.DeepEqual(todos, expected) {
		t.Fatalf("unexpected cached todos: %#v", todos)
	}
	if calls != 1 {
		t.Fatalf("expected cache hit, backend called %d times", calls)
	}
}

func TestCacheMutationsEvict(t *testing.T) {
	ctx := context.Background()
	base := NewMemory()
	cache, mr := newCacheFixture(t, base)

	added, err := cache.Add(ctx, "task one")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := cache.List(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !mr.Exists(todosCacheKey) {
		t.Fatal("expected list cached after read")
	}

	if _, err := cache.Complete(ctx, added.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if mr.Exists(todosCacheKey) {
		t.Fatal("expected cache evicted after complete")
	}

	todos, err := cache.List(ctx)
	if err != nil {
		t.Fatalf("list after complete: %v", err)
	}
	if len(todos) != 1 || !todos[0].Completed {
		t.Fatalf("expected read-after-write visibility, got %#v", todos)
	}

	if err := cache.Delete(ctx, added.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists(todosCacheKey) {
		t.Fatal("expected cache evicted after delete")
	}
}

func TestCacheMutationErrorDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("write failed")
	cache, mr := newCacheFixture(t, &stubBackend{
		listFn:   func(context.Context) ([]domain.Todo, error) { return []domain.Todo{}, nil },
		deleteFn: func(context.Context, string) error { return boom },
	})

	if _, err := cache.List(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !mr.Exists(todosCacheKey) {
		t.Fatal("expected cached list")
	}
	if err := cache.Delete(ctx, "todo_x"); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if !mr.Exists(todosCacheKey) {
		t.Fatal("failed mutation must not evict the cache")
	}
}

func TestCacheNilRedisPassthrough(t *testing.T) {
	ctx := context.Background()
	var calls int
	cache := NewCache(&stubBackend{
		listFn: func(context.Context) ([]domain.Todo, error) {
			calls++
			return nil, nil
		},
	}, nil, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.List(ctx); err != nil {
			t.Fatalf("list: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected passthrough on nil client, got %d calls", calls)
	}
}
