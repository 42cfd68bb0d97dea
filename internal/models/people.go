package models

import (
	"math"

	"github.com/google/uuid"
)

type Customer struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	OrderCount    int       `json:"order_count"`
	LifetimeSpend float64   `json:"lifetime_spend"`
}

type Shopper struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone"`
	IsOnline        bool      `json:"is_online"`
	UPIID           string    `json:"upi_id,omitempty"`
	CompletedOrders int       `json:"completed_orders"`
	TotalEarnings   float64   `json:"total_earnings"`
	RatingAverage   float64   `json:"rating_average"`
	RatingCount     int       `json:"rating_count"`
}

// NextRatingAverage folds one more rating into a running average, rounded to one decimal.
func NextRatingAverage(average float64, count int, rating int) float64 {
	if count < 0 {
		count = 0
	}
	next := (average*float64(count) + float64(rating)) / float64(count+1)
	return math.Round(next*10) / 10
}
