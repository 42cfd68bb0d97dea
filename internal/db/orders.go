package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopmate/shopmate/internal/models"
)

// OrderStore persists orders as a JSONB document alongside the columns used
// for lookups. Every write is conditional on the version read by the caller.
type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `document, version`

func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	order.Version = 1
	document, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO orders (id, order_number, customer_id, shop_id, shopper_id, status, version, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		order.ID,
		order.OrderNumber,
		order.CustomerID,
		order.ShopID,
		order.ShopperID,
		string(order.Status),
		order.Version,
		document,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *OrderStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

// Update writes order if the stored row still has expectedStatus and
// expectedVersion. On success order.Version holds the new version.
func (s *OrderStore) Update(ctx context.Context, order *models.Order, expectedStatus models.OrderStatus, expectedVersion int) error {
	next := expectedVersion + 1
	order.Version = next
	document, err := json.Marshal(order)
	if err != nil {
		order.Version = expectedVersion
		return fmt.Errorf("failed to encode order: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $4, shopper_id = $5, version = $6, document = $7, updated_at = $8
		WHERE id = $1 AND status = $2 AND version = $3`,
		order.ID,
		string(expectedStatus),
		expectedVersion,
		string(order.Status),
		order.ShopperID,
		next,
		document,
		order.UpdatedAt,
	)
	if err != nil {
		order.Version = expectedVersion
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		order.Version = expectedVersion
		return ErrConflict
	}
	return nil
}

// Claim assigns the order to its shopper. Only one claim can win for an
// order still waiting for a shopper.
func (s *OrderStore) Claim(ctx context.Context, order *models.Order, expectedVersion int) error {
	if order.ShopperID == nil {
		return fmt.Errorf("claim requires a shopper")
	}
	next := expectedVersion + 1
	order.Version = next
	document, err := json.Marshal(order)
	if err != nil {
		order.Version = expectedVersion
		return fmt.Errorf("failed to encode order: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $3, shopper_id = $4, version = $5, document = $6, updated_at = $7
		WHERE id = $1 AND status = $2 AND shopper_id IS NULL`,
		order.ID,
		string(models.StatusPendingShopper),
		string(order.Status),
		*order.ShopperID,
		next,
		document,
		order.UpdatedAt,
	)
	if err != nil {
		order.Version = expectedVersion
		return fmt.Errorf("failed to claim order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		order.Version = expectedVersion
		return ErrConflict
	}
	return nil
}

func (s *OrderStore) ListByStatus(ctx context.Context, status models.OrderStatus, limit int) ([]*models.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders by status: %w", err)
	}
	return collectOrders(rows)
}

// ListByCustomer returns the customer's newest orders. A non-empty status
// is applied before the limit.
func (s *OrderStore) ListByCustomer(ctx context.Context, customerID uuid.UUID, status models.OrderStatus, limit int) ([]*models.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE customer_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3`, customerID, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list customer orders: %w", err)
	}
	return collectOrders(rows)
}

// ListByShopper is ListByCustomer for the assigned shopper.
func (s *OrderStore) ListByShopper(ctx context.Context, shopperID uuid.UUID, status models.OrderStatus, limit int) ([]*models.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE shopper_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3`, shopperID, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list shopper orders: %w", err)
	}
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]*models.Order, error) {
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		document []byte
		version  int
	)
	if err := row.Scan(&document, &version); err != nil {
		return nil, err
	}

	var order models.Order
	if err := json.Unmarshal(document, &order); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}
	// The column is authoritative.
	order.Version = version
	return &order, nil
}
