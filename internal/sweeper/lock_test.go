package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	return true, nil
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func TestRedisLockAcquireAndRelease(t *testing.T) {
	store := newFakeRedis()
	lock, err := NewRedisLock(store, "sc:sweeper:lock:test", time.Minute)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	ctx := context.Background()

	ok, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatalf("expected first acquire to succeed")
	}

	second, err := NewRedisLock(store, "sc:sweeper:lock:test", time.Minute)
	if err != nil {
		t.Fatalf("construct second lock: %v", err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatalf("expected second acquire to be blocked while held")
	}

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if !ok {
		t.Fatalf("expected acquire to succeed after release")
	}
}

func TestRedisLockReleaseSkipsForeignOwner(t *testing.T) {
	store := newFakeRedis()
	first, err := NewRedisLock(store, "sc:sweeper:lock:test", time.Minute)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	ctx := context.Background()
	if _, err := first.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Simulate TTL expiry followed by a takeover from another instance.
	if err := store.Del(ctx, "sc:sweeper:lock:test"); err != nil {
		t.Fatalf("del: %v", err)
	}
	second, err := NewRedisLock(store, "sc:sweeper:lock:test", time.Minute)
	if err != nil {
		t.Fatalf("construct second lock: %v", err)
	}
	if _, err := second.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	value, err := store.Get(ctx, "sc:sweeper:lock:test")
	if err != nil {
		t.Fatalf("lock should still be held by the new owner: %v", err)
	}
	if value == "" {
		t.Fatalf("expected new owner value to survive stale release")
	}
}

func TestRedisLockReleaseToleratesMissingKey(t *testing.T) {
	store := newFakeRedis()
	lock, err := NewRedisLock(store, "sc:sweeper:lock:test", time.Minute)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	ctx := context.Background()
	if _, err := lock.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := store.Del(ctx, "sc:sweeper:lock:test"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release after expiry should be a no-op, got %v", err)
	}
}

func TestNewRedisLockValidatesArgs(t *testing.T) {
	if _, err := NewRedisLock(nil, "key", time.Minute); err == nil {
		t.Fatalf("expected nil client to be rejected")
	}
	if _, err := NewRedisLock(newFakeRedis(), "", time.Minute); err == nil {
		t.Fatalf("expected empty key to be rejected")
	}
}
