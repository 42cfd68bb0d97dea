// Package cache holds short-lived values: shop snapshots for pricing and
// placement claims for idempotent order creation.
package cache

import (
	"context"
	"fmt"
	"time"
)

type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	// Provider is "memory" or "redis"; empty means memory.
	Provider              string
	RedisConnectionString string
	// MemoryEntries bounds the in-process cache. Zero uses the default.
	MemoryEntries int
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "memory":
		return newMemoryProvider(cfg.MemoryEntries, time.Now)
	case "redis":
		return NewRedisProvider(cfg.RedisConnectionString)
	}
	return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
}

// ShopKey addresses the cached pricing snapshot of a shop.
func ShopKey(shopID string) string {
	return "shop:" + shopID
}

// IdempotencyKey scopes a client supplied key to the customer that sent it,
// so two customers reusing the same key never collide.
func IdempotencyKey(customerID, key string) string {
	return "idempotency:" + customerID + ":" + key
}
