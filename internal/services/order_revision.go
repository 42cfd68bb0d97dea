package services

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/pricing"
)

// RevisedItem is the shopper's verdict on one original line item.
type RevisedItem struct {
	ProductID string   `json:"product_id" validate:"required"`
	Available bool     `json:"available"`
	Quantity  int      `json:"quantity" validate:"gte=0"`
	Price     *float64 `json:"price" validate:"omitempty,gt=0"`
}

// ReviseItems records the shopper's availability and quantity changes, reprices
// the order and hands it to the customer for review.
func (s *OrderService) ReviseItems(ctx context.Context, orderID uuid.UUID, actor Actor, revised []RevisedItem, notes string) (*models.Order, error) {
	if len(revised) == 0 {
		return nil, invalidRevision("at least one item is required")
	}
	for i := range revised {
		if err := s.validate.Struct(revised[i]); err != nil {
			return nil, invalidRevision("item %d: %v", i, err)
		}
		if revised[i].Available && revised[i].Quantity < 1 {
			return nil, invalidRevision("item %s is available but has quantity %d; mark it unavailable instead", revised[i].ProductID, revised[i].Quantity)
		}
	}

	prepare := func(order *models.Order) (*models.ValueBreakdown, error) {
		return s.applyRevision(ctx, order, revised)
	}

	return s.execute(ctx, "ReviseItems", orderID, actor, prepare,
		step{to: models.StatusShopperRevisedOrder, payload: TransitionPayload{Note: notes}},
		step{to: models.StatusCustomerReviewingRevision, payload: TransitionPayload{Note: notes}},
	)
}

// applyRevision overlays revised onto the order items and stores the new
// breakdown. Original prices and quantities stay untouched.
func (s *OrderService) applyRevision(ctx context.Context, order *models.Order, revised []RevisedItem) (*models.ValueBreakdown, error) {
	byProduct := make(map[string]RevisedItem, len(revised))
	for _, item := range revised {
		if _, dup := byProduct[item.ProductID]; dup {
			return nil, invalidRevision("item %s is listed twice", item.ProductID)
		}
		byProduct[item.ProductID] = item
	}

	priced := make([]pricing.PricedItem, 0, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		verdict, ok := byProduct[item.ProductID]
		if !ok {
			return nil, invalidRevision("item %s is missing from the revision", item.ProductID)
		}
		delete(byProduct, item.ProductID)

		overlay := &models.ItemRevision{Available: verdict.Available}
		if verdict.Available {
			overlay.Quantity = verdict.Quantity
			overlay.Price = item.Price
			if verdict.Price != nil {
				overlay.Price = *verdict.Price
			}
			priced = append(priced, pricing.PricedItem{Price: overlay.Price, Quantity: overlay.Quantity})
		}
		item.Revision = overlay
	}
	if len(byProduct) > 0 {
		extra := slices.Sorted(maps.Keys(byProduct))
		return nil, invalidRevision("items not part of this order: %s", strings.Join(extra, ", "))
	}

	quote, err := s.pricer.Quote(ctx, priced, order.ShopID, order.DeliveryAddress.Location)
	if err != nil {
		return nil, err
	}

	breakdown := quote.ValueBreakdown
	order.RevisedOrderValue = &breakdown
	order.ShopperCommission = quote.ShopperEarning
	recorded := breakdown
	return &recorded, nil
}

// ApproveRevision accepts the revised order and resumes shopping.
func (s *OrderService) ApproveRevision(ctx context.Context, orderID uuid.UUID, actor Actor, note string) (*models.Order, error) {
	return s.execute(ctx, "ApproveRevision", orderID, actor, nil,
		step{to: models.StatusCustomerApprovedRevision, payload: TransitionPayload{Note: note}},
		step{to: models.StatusFinalShopping},
	)
}

// RejectRevision sends the order back to the shopper, who may shop again and re-revise.
func (s *OrderService) RejectRevision(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*models.Order, error) {
	return s.execute(ctx, "RejectRevision", orderID, actor, nil,
		step{to: models.StatusRevisionRejected, payload: TransitionPayload{Reason: reason}},
	)
}

func invalidRevision(format string, args ...any) error {
	return wrapf(ErrInvalidRevision, format, args...)
}
