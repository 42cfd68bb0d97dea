package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/shopmate/shopmate/internal/cache"
	"github.com/shopmate/shopmate/internal/db"
	"github.com/shopmate/shopmate/internal/logging"
	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/observability"
)

type shopLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Shop, error)
}

// CachedShopSource reads shops through a cache and trips a breaker when the store keeps failing,
// so pricing fails fast instead of queueing behind a sick database.
type CachedShopSource struct {
	loader  shopLoader
	cache   cache.Provider
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

func NewCachedShopSource(loader shopLoader, cacheProvider cache.Provider, ttl time.Duration, logger *slog.Logger) *CachedShopSource {
	s := &CachedShopSource{
		loader: loader,
		cache:  cacheProvider,
		ttl:    ttl,
		logger: logger,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "shop_lookup",
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, db.ErrNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			observability.SetBreakerState(name, stateValue(to))
			logging.FromContext(context.Background(), logger).Warn("circuit breaker state changed",
				"circuit", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return s
}

func (s *CachedShopSource) GetShop(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	logger := logging.FromContext(ctx, s.logger)
	key := cache.ShopKey(id.String())

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			var shop models.Shop
			if jsonErr := json.Unmarshal([]byte(cached), &shop); jsonErr == nil {
				return &shop, nil
			}
			logger.Warn("discarding undecodable cached shop", "shop_id", id)
		} else if !errors.Is(err, cache.ErrNotFound) {
			logger.Warn("shop cache read failed", "error", err, "shop_id", id)
		}
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.loader.GetByID(ctx, id)
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: shop lookup circuit open: %w", ErrPricingUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrPricingUnavailable, err)
	}

	shop, _ := result.(*models.Shop)
	if shop == nil {
		return nil, fmt.Errorf("%w: shop %s", db.ErrNotFound, id)
	}

	if s.cache != nil && s.ttl > 0 {
		if encoded, jsonErr := json.Marshal(shop); jsonErr == nil {
			if setErr := s.cache.Set(ctx, key, string(encoded), s.ttl); setErr != nil {
				logger.Warn("shop cache write failed", "error", setErr, "shop_id", id)
			}
		}
	}

	return shop, nil
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
