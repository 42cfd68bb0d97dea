// Package pricing computes order value breakdowns and delivery-fee discounts.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/models"
)

const (
	TaxRate       = 0.05
	SegmentMeters = 500.0
)

var ErrPricingUnavailable = errors.New("pricing unavailable")

type PricedItem struct {
	Price    float64
	Quantity int
}

type Quote struct {
	models.ValueBreakdown
	DistanceMeters float64
	ShopperEarning float64
}

// Compute prices items for delivery from shop to destination. It has no side effects.
func Compute(items []PricedItem, shop *models.Shop, destination *models.LatLng) (Quote, error) {
	if !shop.HasCoordinates() {
		return Quote{}, fmt.Errorf("%w: shop has no coordinates", ErrPricingUnavailable)
	}

	subtotal := 0.0
	for _, item := range items {
		subtotal += item.Price * float64(item.Quantity)
	}
	subtotal = math.Round(subtotal*100) / 100

	distance := 0.0
	if destination != nil {
		distance = DistanceMeters(*shop.Location, *destination)
	}

	var deliveryFee float64
	switch shop.DeliveryFeeMode {
	case models.DeliveryFeeDistance:
		if destination == nil {
			return Quote{}, fmt.Errorf("%w: delivery address has no coordinates", ErrPricingUnavailable)
		}
		deliveryFee = DistanceFee(distance, shop.FeePerSegment)
	default:
		deliveryFee = shop.DeliveryFee
	}

	taxes := math.Round(subtotal * TaxRate)

	return Quote{
		ValueBreakdown: models.ValueBreakdown{
			Subtotal:    subtotal,
			DeliveryFee: deliveryFee,
			ServiceFee:  0,
			Taxes:       taxes,
			Discount:    0,
			Total:       subtotal + taxes + deliveryFee,
		},
		DistanceMeters: distance,
		ShopperEarning: deliveryFee,
	}, nil
}

// DistanceFee charges feePerSegment for every started 500m segment.
func DistanceFee(distanceMeters, feePerSegment float64) float64 {
	if distanceMeters <= 0 {
		return 0
	}
	return math.Ceil(distanceMeters/SegmentMeters) * feePerSegment
}

type ShopSource interface {
	GetShop(ctx context.Context, id uuid.UUID) (*models.Shop, error)
}

type Engine struct {
	shops         ShopSource
	lookupTimeout time.Duration
}

func NewEngine(shops ShopSource, lookupTimeout time.Duration) *Engine {
	if lookupTimeout <= 0 {
		lookupTimeout = 3 * time.Second
	}
	return &Engine{shops: shops, lookupTimeout: lookupTimeout}
}

// Quote looks the shop up and prices items against it.
func (e *Engine) Quote(ctx context.Context, items []PricedItem, shopID uuid.UUID, destination *models.LatLng) (Quote, error) {
	shop, err := e.Shop(ctx, shopID)
	if err != nil {
		return Quote{}, err
	}
	return Compute(items, shop, destination)
}

// Shop fetches the shop within the lookup timeout. Any failure is a pricing failure.
func (e *Engine) Shop(ctx context.Context, shopID uuid.UUID) (*models.Shop, error) {
	if e == nil || e.shops == nil {
		return nil, fmt.Errorf("%w: no shop source configured", ErrPricingUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
	defer cancel()

	shop, err := e.shops.GetShop(ctx, shopID)
	if err != nil {
		if errors.Is(err, ErrPricingUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrPricingUnavailable, err)
	}
	if shop == nil {
		return nil, fmt.Errorf("%w: shop %s not found", ErrPricingUnavailable, shopID)
	}
	return shop, nil
}
