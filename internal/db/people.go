package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopmate/shopmate/internal/crypto"
	"github.com/shopmate/shopmate/internal/models"
)

type CustomerStore struct {
	pool *pgxpool.Pool
}

func NewCustomerStore(pool *pgxpool.Pool) *CustomerStore {
	return &CustomerStore{pool: pool}
}

func (s *CustomerStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, phone, order_count, lifetime_spend FROM customers WHERE id = $1`, id).Scan(
		&customer.ID,
		&customer.Name,
		&customer.Phone,
		&customer.OrderCount,
		&customer.LifetimeSpend,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	return &customer, nil
}

func (s *CustomerStore) IncrementOrderCount(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, s.pool, `UPDATE customers SET order_count = order_count + 1 WHERE id = $1`, id)
}

func (s *CustomerStore) AddLifetimeSpend(ctx context.Context, id uuid.UUID, amount float64) error {
	return execOne(ctx, s.pool, `UPDATE customers SET lifetime_spend = lifetime_spend + $2 WHERE id = $1`, id, amount)
}

// ShopperStore keeps payout UPI ids sealed to the owning shopper.
type ShopperStore struct {
	pool   *pgxpool.Pool
	sealer crypto.Sealer
}

func NewShopperStore(pool *pgxpool.Pool, sealer crypto.Sealer) (*ShopperStore, error) {
	if sealer == nil {
		return nil, fmt.Errorf("sealer is required")
	}
	return &ShopperStore{pool: pool, sealer: sealer}, nil
}

func (s *ShopperStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Shopper, error) {
	var (
		shopper models.Shopper
		sealed  *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, phone, is_online, upi_id_sealed, completed_orders, total_earnings, rating_average, rating_count
		FROM shoppers WHERE id = $1`, id).Scan(
		&shopper.ID,
		&shopper.Name,
		&shopper.Phone,
		&shopper.IsOnline,
		&sealed,
		&shopper.CompletedOrders,
		&shopper.TotalEarnings,
		&shopper.RatingAverage,
		&shopper.RatingCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load shopper: %w", err)
	}

	if sealed != nil && *sealed != "" {
		upiID, err := s.sealer.Open(*sealed, shopper.ID.String())
		if err != nil {
			return nil, fmt.Errorf("failed to open shopper upi id: %w", err)
		}
		shopper.UPIID = upiID
	}
	return &shopper, nil
}

func (s *ShopperStore) SetUPIID(ctx context.Context, id uuid.UUID, upiID string) error {
	sealed, err := s.sealer.Seal(upiID, id.String())
	if err != nil {
		return err
	}
	return execOne(ctx, s.pool, `UPDATE shoppers SET upi_id_sealed = $2 WHERE id = $1`, id, sealed)
}

func (s *ShopperStore) SetOnline(ctx context.Context, id uuid.UUID, online bool) error {
	return execOne(ctx, s.pool, `UPDATE shoppers SET is_online = $2 WHERE id = $1`, id, online)
}

// RecordDelivery credits a completed order and its commission.
func (s *ShopperStore) RecordDelivery(ctx context.Context, id uuid.UUID, earnings float64) error {
	return execOne(ctx, s.pool, `
		UPDATE shoppers
		SET completed_orders = completed_orders + 1, total_earnings = total_earnings + $2
		WHERE id = $1`, id, earnings)
}

// RecordRating folds rating into the running average under a row lock and
// returns the new average and count.
func (s *ShopperStore) RecordRating(ctx context.Context, id uuid.UUID, rating int) (float64, int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck
	}()

	var (
		average float64
		count   int
	)
	err = tx.QueryRow(ctx, `SELECT rating_average, rating_count FROM shoppers WHERE id = $1 FOR UPDATE`, id).Scan(&average, &count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, fmt.Errorf("failed to lock shopper: %w", err)
	}

	average = models.NextRatingAverage(average, count, rating)
	count++
	if _, err := tx.Exec(ctx, `UPDATE shoppers SET rating_average = $2, rating_count = $3 WHERE id = $1`, id, average, count); err != nil {
		return 0, 0, fmt.Errorf("failed to update shopper rating: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit shopper rating: %w", err)
	}
	return average, count, nil
}

func execOne(ctx context.Context, pool *pgxpool.Pool, sql string, args ...any) error {
	tag, err := pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
