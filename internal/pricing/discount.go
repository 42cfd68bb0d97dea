package pricing

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/models"
)

type DiscountResult struct {
	FinalFee       float64          `json:"final_fee"`
	OriginalFee    float64          `json:"original_fee"`
	DiscountAmount float64          `json:"discount_amount"`
	Applied        *models.Discount `json:"discount_applied"`
}

// BestDiscount picks the valid discount with the largest fee reduction.
// No qualifying discount yields a zero reduction.
func BestDiscount(discounts []models.Discount, originalFee, subtotal float64, shopID *uuid.UUID, now time.Time) DiscountResult {
	result := DiscountResult{
		FinalFee:    originalFee,
		OriginalFee: originalFee,
	}
	if originalFee <= 0 {
		return result
	}

	for i := range discounts {
		discount := discounts[i]
		if !discountApplies(discount, subtotal, shopID, now) {
			continue
		}
		reduction := discountReduction(discount, originalFee)
		if reduction > result.DiscountAmount {
			result.DiscountAmount = reduction
			result.Applied = &discount
		}
	}

	result.FinalFee = originalFee - result.DiscountAmount
	return result
}

func discountApplies(d models.Discount, subtotal float64, shopID *uuid.UUID, now time.Time) bool {
	if !d.IsActive {
		return false
	}
	if now.Before(d.StartDate) || now.After(d.EndDate) {
		return false
	}
	if subtotal < d.MinOrderValue {
		return false
	}
	if d.ShopID == nil {
		return true
	}
	return shopID != nil && *d.ShopID == *shopID
}

func discountReduction(d models.Discount, fee float64) float64 {
	var reduction float64
	switch d.Type {
	case models.DiscountPercentage:
		reduction = math.Round(fee*d.Value) / 100
	case models.DiscountFixed:
		reduction = d.Value
	case models.DiscountFreeDelivery:
		reduction = fee
	}
	if reduction < 0 {
		return 0
	}
	return math.Min(reduction, fee)
}
