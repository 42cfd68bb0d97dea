package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/storage"
)

// UploadBill stores the bill image and moves the order to bill_uploaded.
// The image is written before the transition; an orphaned image is harmless.
func (s *OrderService) UploadBill(ctx context.Context, orderID uuid.UUID, actor Actor, amount float64, contentType string, image io.Reader) (*models.Order, error) {
	if amount <= 0 {
		return nil, validationError("bill_amount must be positive")
	}
	if image == nil {
		return nil, validationError("bill image is required")
	}
	if s.bills == nil {
		return nil, fmt.Errorf("%w: bill storage is not configured", ErrPersistence)
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(order, actor, order.Status, models.StatusBillUploaded); err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, models.StatusBillUploaded) {
		return nil, &TransitionError{From: order.Status, To: models.StatusBillUploaded}
	}

	url, err := s.bills.PutBill(ctx, orderID, contentType, image)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedContentType) {
			return nil, validationError("%v", err)
		}
		return nil, fmt.Errorf("%w: store bill image: %w", ErrPersistence, err)
	}

	return s.execute(ctx, "UploadBill", orderID, actor, nil, step{
		to:      models.StatusBillUploaded,
		payload: TransitionPayload{BillAmount: amount, billImageURL: url},
	})
}

func (s *OrderService) ApproveBill(ctx context.Context, orderID uuid.UUID, actor Actor, note string) (*models.Order, error) {
	return s.execute(ctx, "ApproveBill", orderID, actor, nil, step{
		to:      models.StatusBillApproved,
		payload: TransitionPayload{Note: note},
	})
}

func (s *OrderService) RejectBill(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*models.Order, error) {
	if reason == "" {
		return nil, validationError("reason is required to reject a bill")
	}
	return s.execute(ctx, "RejectBill", orderID, actor, nil, step{
		to:      models.StatusBillRejected,
		payload: TransitionPayload{Reason: reason},
	})
}

func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*models.Order, error) {
	return s.execute(ctx, "CancelOrder", orderID, actor, nil, step{
		to:      models.StatusCancelled,
		payload: TransitionPayload{Reason: reason},
	})
}
