package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/db"
	"github.com/shopmate/shopmate/internal/logging"
	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/pricing"
)

type discountStore interface {
	ListActive(ctx context.Context, now time.Time) ([]models.Discount, error)
}

// DiscountService quotes delivery-fee discounts. Order pricing does not apply them.
type DiscountService struct {
	discounts discountStore
	pricer    *pricing.Engine
	now       func() time.Time
	logger    *slog.Logger
}

func NewDiscountService(discounts discountStore, pricer *pricing.Engine, logger *slog.Logger) *DiscountService {
	return &DiscountService{
		discounts: discounts,
		pricer:    pricer,
		now:       time.Now,
		logger:    logger,
	}
}

// FindBestDiscount picks the single largest valid reduction of originalFee.
// A nil shopID considers only discounts valid for all shops.
func (s *DiscountService) FindBestDiscount(ctx context.Context, originalFee, subtotal float64, shopID *uuid.UUID) (pricing.DiscountResult, error) {
	if originalFee < 0 || subtotal < 0 {
		return pricing.DiscountResult{}, validationError("fee and subtotal must not be negative")
	}

	now := s.now()
	discounts, err := s.discounts.ListActive(ctx, now)
	if err != nil {
		return pricing.DiscountResult{}, persistenceError("list discounts", err)
	}

	result := pricing.BestDiscount(discounts, originalFee, subtotal, shopID, now)
	if result.Applied != nil {
		logging.FromContext(ctx, s.logger).Debug("discount selected",
			"code", result.Applied.Code,
			"discount_amount", result.DiscountAmount,
		)
	}
	return result, nil
}

// QuoteForShop prices a prospective basket at shopID and applies the best discount
// to its delivery fee.
func (s *DiscountService) QuoteForShop(ctx context.Context, shopID uuid.UUID, items []pricing.PricedItem, destination *models.LatLng) (pricing.Quote, pricing.DiscountResult, error) {
	quote, err := s.pricer.Quote(ctx, items, shopID, destination)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return pricing.Quote{}, pricing.DiscountResult{}, fmt.Errorf("%w: shop %s does not exist", ErrShopUnavailable, shopID)
		}
		return pricing.Quote{}, pricing.DiscountResult{}, err
	}
	result, err := s.FindBestDiscount(ctx, quote.DeliveryFee, quote.Subtotal, &shopID)
	if err != nil {
		return pricing.Quote{}, pricing.DiscountResult{}, err
	}
	return quote, result, nil
}
