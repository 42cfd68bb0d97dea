package services

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/realtime"
)

type addressed struct {
	Room  string
	Event string
}

func addressesOf(batch []notification) []addressed {
	out := make([]addressed, len(batch))
	for i, n := range batch {
		out[i] = addressed{Room: n.room, Event: n.event}
	}
	return out
}

func TestPlanTransitionNotifications(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	shopperID := uuid.New()
	customerRoom := realtime.CustomerRoom(customerID)
	shopperRoom := realtime.ShopperRoom(shopperID)

	order := func(status models.OrderStatus, assigned bool) *models.Order {
		o := &models.Order{
			ID:         uuid.New(),
			CustomerID: customerID,
			Status:     status,
			Timeline:   []models.TimelineEntry{{Status: status, Timestamp: time.Unix(0, 0)}},
		}
		if assigned {
			id := shopperID
			o.ShopperID = &id
		}
		return o
	}

	tests := []struct {
		name   string
		before *models.Order
		after  *models.Order
		fx     transitionEffects
		want   []addressed
	}{
		{
			name:   "accepted",
			before: order(models.StatusPendingShopper, false),
			after:  order(models.StatusAcceptedByShopper, true),
			want: []addressed{
				{customerRoom, EventOrderStatusUpdated},
				{shopperRoom, EventOrderStatusUpdated},
				{customerRoom, EventOrderAccepted},
			},
		},
		{
			name:   "revision approved",
			before: order(models.StatusCustomerReviewingRevision, true),
			after:  order(models.StatusFinalShopping, true),
			want: []addressed{
				{customerRoom, EventOrderStatusUpdated},
				{shopperRoom, EventOrderStatusUpdated},
				{shopperRoom, EventRevisionApproved},
			},
		},
		{
			name:   "final shopping without revision",
			before: order(models.StatusShoppingInProgress, true),
			after:  order(models.StatusFinalShopping, true),
			want: []addressed{
				{customerRoom, EventOrderStatusUpdated},
				{shopperRoom, EventOrderStatusUpdated},
			},
		},
		{
			name:   "out for delivery with new otp",
			before: order(models.StatusFinalShopping, true),
			after:  order(models.StatusOutForDelivery, true),
			fx:     transitionEffects{otpGenerated: true},
			want: []addressed{
				{customerRoom, EventOrderStatusUpdated},
				{shopperRoom, EventOrderStatusUpdated},
				{customerRoom, EventDeliveryOTP},
			},
		},
		{
			name:   "cancelled before assignment",
			before: order(models.StatusPendingShopper, false),
			after:  order(models.StatusCancelled, false),
			want: []addressed{
				{customerRoom, EventOrderStatusUpdated},
				{customerRoom, EventOrderCancelled},
			},
		},
		{
			name:   "delivered",
			before: order(models.StatusOutForDelivery, true),
			after:  order(models.StatusDelivered, true),
			want: []addressed{
				{customerRoom, EventOrderStatusUpdated},
				{shopperRoom, EventOrderStatusUpdated},
				{customerRoom, EventOrderDelivered},
				{shopperRoom, EventOrderDelivered},
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := planTransitionNotifications(tc.before, tc.after, tc.fx)
			if diff := cmp.Diff(tc.want, addressesOf(got)); diff != "" {
				t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestShopperStatusUpdateOmitsTimeline(t *testing.T) {
	t.Parallel()

	shopperID := uuid.New()
	before := &models.Order{ID: uuid.New(), CustomerID: uuid.New(), ShopperID: &shopperID, Status: models.StatusShopperAtShop}
	after := before.Clone()
	after.Status = models.StatusShoppingInProgress
	after.Timeline = []models.TimelineEntry{{Status: models.StatusShoppingInProgress}}

	batch := planTransitionNotifications(before, after, transitionEffects{})
	for _, n := range batch {
		update, ok := n.payload.(statusUpdatePayload)
		if !ok {
			continue
		}
		if n.room == realtime.ShopperRoom(shopperID) && update.Timeline != nil {
			t.Fatal("shopper status update must not carry the timeline")
		}
		if n.room == realtime.CustomerRoom(after.CustomerID) && len(update.Timeline) != 1 {
			t.Fatal("customer status update must carry the timeline")
		}
	}
}

func TestNoteForSkipsDefaultMessage(t *testing.T) {
	t.Parallel()

	order := &models.Order{Timeline: []models.TimelineEntry{
		{Status: models.StatusRevisionRejected, Note: "first"},
		{Status: models.StatusRevisionRejected, Note: statusMessage(models.StatusRevisionRejected)},
	}}
	if got := noteFor(order, models.StatusRevisionRejected); got != "" {
		t.Fatalf("expected default message to be skipped, got %q", got)
	}
	order.Timeline = order.Timeline[:1]
	if got := noteFor(order, models.StatusRevisionRejected); got != "first" {
		t.Fatalf("expected caller note, got %q", got)
	}
}
