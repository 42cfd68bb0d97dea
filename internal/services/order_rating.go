package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/db"
	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/observability"
)

// Rate records the customer's rating of a delivered order and folds it into
// the shopper's average. An order is rated at most once.
func (s *OrderService) Rate(ctx context.Context, orderID uuid.UUID, actor Actor, value int, review string) error {
	if value < 1 || value > 5 {
		return validationError("rating must be between 1 and 5")
	}
	customer, ok := actor.(CustomerActor)
	if !ok {
		return accessDenied("only the customer can rate an order")
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}
	if order.CustomerID != customer.ID {
		return accessDenied("order belongs to another customer")
	}
	if order.Status != models.StatusDelivered {
		return fmt.Errorf("%w: order is %s", ErrNotDelivered, order.Status)
	}
	if order.Rating != nil {
		return ErrAlreadyRated
	}

	updated := order.Clone()
	updated.Rating = &models.Rating{
		Value:   value,
		Review:  review,
		RatedAt: s.now().UTC(),
	}
	updated.UpdatedAt = updated.Rating.RatedAt

	if err := s.orders.Update(ctx, updated, order.Status, order.Version); err != nil {
		if errors.Is(err, db.ErrConflict) {
			// Another request changed the order first; only a rating can change a delivered order.
			return ErrAlreadyRated
		}
		return persistenceError("rate order", err)
	}

	logger := s.loggerFromContext(ctx)
	observability.Count(ctx, "order.rated")

	if updated.ShopperID == nil {
		return nil
	}
	average, count, err := s.shoppers.RecordRating(ctx, *updated.ShopperID, value)
	if err != nil {
		logger.Error("failed to update shopper rating", "error", err, "order_id", updated.ID, "shopper_id", *updated.ShopperID)
		return nil
	}
	logger.Info("order rated", "order_id", updated.ID, "rating", value, "shopper_rating_average", average)

	s.dispatcher.send(ctx, planRatedNotifications(updated, average, count))
	return nil
}
