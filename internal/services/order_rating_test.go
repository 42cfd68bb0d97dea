package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/realtime"
)

func TestRateDeliveredOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.shoppers.shoppers[f.shopper.ID].RatingAverage = 4
	f.shoppers.shoppers[f.shopper.ID].RatingCount = 1
	order := f.seedOrder(models.StatusDelivered)

	if err := f.service.Rate(context.Background(), order.ID, f.customerActor(), 5, "quick and friendly"); err != nil {
		t.Fatalf("Rate() error = %v", err)
	}

	stored := f.orders.get(order.ID)
	if stored.Rating == nil || stored.Rating.Value != 5 || stored.Rating.Review != "quick and friendly" {
		t.Fatalf("unexpected rating %+v", stored.Rating)
	}
	shopper, _ := f.shoppers.GetByID(context.Background(), f.shopper.ID)
	if shopper.RatingAverage != 4.5 || shopper.RatingCount != 2 {
		t.Fatalf("expected average 4.5 over 2, got %v over %d", shopper.RatingAverage, shopper.RatingCount)
	}

	f.service.WaitForNotifications()
	event, ok := f.notifier.find(realtime.ShopperRoom(f.shopper.ID), EventOrderRated)
	if !ok {
		t.Fatalf("expected order_rated for shopper, got %+v", f.notifier.events)
	}
	if payload := event.payload.(ratedPayload); payload.Rating != 5 || payload.RatingCount != 2 {
		t.Fatalf("unexpected rated payload %+v", payload)
	}

	err := f.service.Rate(context.Background(), order.ID, f.customerActor(), 3, "")
	requireErrorIs(t, err, ErrAlreadyRated)
	if shopper, _ := f.shoppers.GetByID(context.Background(), f.shopper.ID); shopper.RatingCount != 2 {
		t.Fatalf("second rating must not count, got %d", shopper.RatingCount)
	}
}

func TestRateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  models.OrderStatus
		actor   func(f *fixture) Actor
		value   int
		wantErr error
	}{
		{name: "not delivered", status: models.StatusOutForDelivery, actor: (*fixture).customerActor, value: 4, wantErr: ErrNotDelivered},
		{name: "cancelled", status: models.StatusCancelled, actor: (*fixture).customerActor, value: 4, wantErr: ErrNotDelivered},
		{name: "shopper cannot rate", status: models.StatusDelivered, actor: (*fixture).shopperActor, value: 4, wantErr: ErrAccessDenied},
		{name: "other customer", status: models.StatusDelivered, actor: func(*fixture) Actor { return CustomerActor{ID: uuid.New()} }, value: 4, wantErr: ErrAccessDenied},
		{name: "out of range", status: models.StatusDelivered, actor: (*fixture).customerActor, value: 6, wantErr: ErrValidation},
		{name: "zero", status: models.StatusDelivered, actor: (*fixture).customerActor, value: 0, wantErr: ErrValidation},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			order := f.seedOrder(tc.status)

			err := f.service.Rate(context.Background(), order.ID, tc.actor(f), tc.value, "")
			requireErrorIs(t, err, tc.wantErr)
			if f.orders.get(order.ID).Rating != nil {
				t.Fatal("rating must not be stored")
			}
		})
	}
}
