package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestLRUCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[string](2, time.Minute)

	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	c.Set(ctx, "a", "1")
	c.Set(ctx, "b", "2")
	if v, ok := c.Get(ctx, "a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}

	// a was touched last, so b is evicted.
	c.Set(ctx, "c", "3")
	if _, ok := c.Get(ctx, "b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if c.Size() != 2 {
		t.Fatalf("Size = %d, want 2", c.Size())
	}

	c.Set(ctx, "a", "updated")
	if v, _ := c.Get(ctx, "a"); v != "updated" {
		t.Fatalf("overwrite failed, got %q", v)
	}

	c.Delete(ctx, "a")
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set(ctx, "x", 1)
	c.Set(ctx, "y", 2)
	now = now.Add(30 * time.Second)
	c.Set(ctx, "z", 3)

	now = now.Add(45 * time.Second)
	if _, ok := c.Get(ctx, "x"); ok {
		t.Fatalf("expected x to be expired")
	}
	if removed := c.CleanExpired(); removed != 1 {
		t.Fatalf("CleanExpired removed %d, want 1 (y)", removed)
	}
	if v, ok := c.Get(ctx, "z"); !ok || v != 3 {
		t.Fatalf("z should still be cached")
	}
}

func TestManager_StopIsIdempotent(t *testing.T) {
	m := NewManager()
	m.Register(NewLRUCache[int](1, time.Millisecond))
	m.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
	m.Stop()
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping Redis test")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	defer client.Close()

	type payload struct{ Name string }
	c := NewRedisCache[payload](client, "spesevoce:test:", time.Minute)
	c.Set(ctx, "k", payload{Name: "food"})
	got, ok := c.Get(ctx, "k")
	if !ok || got.Name != "food" {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	c.Delete(ctx, "k")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisClient(ctx, "127.0.0.1:1"); err == nil {
		t.Fatalf("expected error for unreachable redis")
	}
}
