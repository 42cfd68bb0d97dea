package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryProvider_GetExpires(t *testing.T) {
	t.Parallel()

	provider, err := NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider() error = %v", err)
	}
	ctx := context.Background()

	if err := provider.Set(ctx, ShopKey("a"), "value", time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := provider.Get(ctx, ShopKey("a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestMemoryProvider_SetNX(t *testing.T) {
	t.Parallel()

	provider, err := NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider() error = %v", err)
	}
	ctx := context.Background()
	key := IdempotencyKey("customer", "abc")

	stored, err := provider.SetNX(ctx, key, "first", time.Minute)
	if err != nil || !stored {
		t.Fatalf("first SetNX() = %v, %v; want true, nil", stored, err)
	}
	stored, err = provider.SetNX(ctx, key, "second", time.Minute)
	if err != nil || stored {
		t.Fatalf("second SetNX() = %v, %v; want false, nil", stored, err)
	}

	got, err := provider.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "first" {
		t.Fatalf("Get() = %q, want %q", got, "first")
	}
}

func TestNewProvider_RejectsUnknown(t *testing.T) {
	t.Parallel()

	if _, err := NewProvider(Config{Provider: "memcached"}); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestMemoryProvider_SetNXReclaimsExpiredClaim(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)}
	provider, err := newMemoryProvider(8, clock.now)
	if err != nil {
		t.Fatalf("newMemoryProvider() error = %v", err)
	}
	ctx := context.Background()
	key := IdempotencyKey("customer", "retry")

	if stored, _ := provider.SetNX(ctx, key, "pending", time.Minute); !stored {
		t.Fatal("first claim was not stored")
	}
	clock.t = clock.t.Add(30 * time.Second)
	if stored, _ := provider.SetNX(ctx, key, "pending", time.Minute); stored {
		t.Fatal("live claim was overwritten")
	}
	clock.t = clock.t.Add(time.Minute)
	if stored, _ := provider.SetNX(ctx, key, "order-2", time.Minute); !stored {
		t.Fatal("expired claim was not reclaimed")
	}
	if got, _ := provider.Get(ctx, key); got != "order-2" {
		t.Fatalf("Get() = %q, want order-2", got)
	}
}

func TestMemoryProvider_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	provider, err := newMemoryProvider(2, time.Now)
	if err != nil {
		t.Fatalf("newMemoryProvider() error = %v", err)
	}
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := provider.Set(ctx, ShopKey(id), id, time.Hour); err != nil {
			t.Fatalf("Set(%s) error = %v", id, err)
		}
	}
	if _, err := provider.Get(ctx, ShopKey("a")); err != nil {
		t.Fatalf("Get(a) error = %v", err)
	}
	if err := provider.Set(ctx, ShopKey("c"), "c", time.Hour); err != nil {
		t.Fatalf("Set(c) error = %v", err)
	}

	if _, err := provider.Get(ctx, ShopKey("b")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(b) error = %v, want ErrNotFound", err)
	}
	for _, id := range []string{"a", "c"} {
		if _, err := provider.Get(ctx, ShopKey(id)); err != nil {
			t.Fatalf("Get(%s) error = %v", id, err)
		}
	}
}

func TestMemoryProvider_DeleteAndClose(t *testing.T) {
	t.Parallel()

	provider, err := NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider() error = %v", err)
	}
	ctx := context.Background()

	_ = provider.Set(ctx, ShopKey("a"), "1", time.Hour)
	_ = provider.Set(ctx, ShopKey("b"), "2", time.Hour)
	if err := provider.Delete(ctx, ShopKey("a")); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := provider.Get(ctx, ShopKey("a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(a) after Delete error = %v, want ErrNotFound", err)
	}
	if err := provider.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := provider.Get(ctx, ShopKey("b")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(b) after Close error = %v, want ErrNotFound", err)
	}
}
