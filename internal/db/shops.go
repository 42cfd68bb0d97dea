package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopmate/shopmate/internal/models"
)

type ShopStore struct {
	pool *pgxpool.Pool
}

func NewShopStore(pool *pgxpool.Pool) *ShopStore {
	return &ShopStore{pool: pool}
}

func (s *ShopStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var (
		shop     models.Shop
		lat, lng *float64
		mode     string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, lat, lng, delivery_fee_mode, delivery_fee, fee_per_segment,
		       min_order_value, is_active, has_tax, tax_rate, created_at, updated_at
		FROM shops WHERE id = $1`, id).Scan(
		&shop.ID,
		&shop.Name,
		&lat,
		&lng,
		&mode,
		&shop.DeliveryFee,
		&shop.FeePerSegment,
		&shop.MinOrderValue,
		&shop.IsActive,
		&shop.HasTax,
		&shop.TaxRate,
		&shop.CreatedAt,
		&shop.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load shop: %w", err)
	}

	shop.DeliveryFeeMode = models.DeliveryFeeMode(mode)
	if lat != nil && lng != nil {
		shop.Location = &models.LatLng{Lat: *lat, Lng: *lng}
	}
	return &shop, nil
}
