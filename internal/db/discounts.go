package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopmate/shopmate/internal/models"
)

type DiscountStore struct {
	pool *pgxpool.Pool
}

func NewDiscountStore(pool *pgxpool.Pool) *DiscountStore {
	return &DiscountStore{pool: pool}
}

// ListActive returns discounts that are switched on and whose window contains now.
func (s *DiscountStore) ListActive(ctx context.Context, now time.Time) ([]models.Discount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, type, value, min_order_value, shop_id, is_active, start_date, end_date
		FROM discounts
		WHERE is_active AND start_date <= $1 AND end_date >= $1`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list discounts: %w", err)
	}
	defer rows.Close()

	var discounts []models.Discount
	for rows.Next() {
		var (
			d            models.Discount
			discountType string
		)
		if err := rows.Scan(&d.ID, &d.Code, &discountType, &d.Value, &d.MinOrderValue, &d.ShopID, &d.IsActive, &d.StartDate, &d.EndDate); err != nil {
			return nil, fmt.Errorf("failed to scan discount: %w", err)
		}
		d.Type = models.DiscountType(discountType)
		discounts = append(discounts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read discounts: %w", err)
	}
	return discounts, nil
}
