package models

import (
	"time"

	"github.com/google/uuid"
)

type DiscountType string

const (
	DiscountPercentage   DiscountType = "percentage"
	DiscountFixed        DiscountType = "fixed"
	DiscountFreeDelivery DiscountType = "free_delivery"
)

// Discount reduces the delivery fee. A nil ShopID applies to all shops.
type Discount struct {
	ID            uuid.UUID    `json:"id"`
	Code          string       `json:"code"`
	Type          DiscountType `json:"type"`
	Value         float64      `json:"value"`
	MinOrderValue float64      `json:"min_order_value"`
	ShopID        *uuid.UUID   `json:"shop_id,omitempty"`
	IsActive      bool         `json:"is_active"`
	StartDate     time.Time    `json:"start_date"`
	EndDate       time.Time    `json:"end_date"`
}
