package models

import (
	"time"

	"github.com/google/uuid"
)

type DeliveryFeeMode string

const (
	DeliveryFeeFixed    DeliveryFeeMode = "fixed"
	DeliveryFeeDistance DeliveryFeeMode = "distance"
)

type Shop struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Location        *LatLng         `json:"location,omitempty"`
	DeliveryFeeMode DeliveryFeeMode `json:"delivery_fee_mode"`
	DeliveryFee     float64         `json:"delivery_fee"`
	FeePerSegment   float64         `json:"fee_per_segment"`
	MinOrderValue   float64         `json:"min_order_value"`
	IsActive        bool            `json:"is_active"`
	// HasTax and TaxRate are display-only; order pricing uses the flat rate.
	HasTax    bool      `json:"has_tax"`
	TaxRate   float64   `json:"tax_rate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Shop) HasCoordinates() bool {
	return s != nil && s.Location != nil
}
