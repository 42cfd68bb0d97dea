package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/realtime"
)

const (
	EventNewOrderAvailable  = "new_order_available"
	EventOrderAccepted      = "order_accepted"
	EventOrderStatusUpdated = "order_status_updated"
	EventOrderRevised       = "order_revised"
	EventRevisionApproved   = "revision_approved"
	EventRevisionRejected   = "revision_rejected"
	EventBillUploaded       = "bill_uploaded"
	EventBillApproved       = "bill_approved"
	EventBillRejected       = "bill_rejected"
	EventDeliveryOTP        = "delivery_otp"
	EventOrderCancelled     = "order_cancelled"
	EventOrderDelivered     = "order_delivered"
	EventOrderRated         = "order_rated"
	EventShopperLocation    = "shopper_location"
)

type notification struct {
	room    string
	event   string
	payload any
}

type statusUpdatePayload struct {
	OrderID     uuid.UUID              `json:"order_id"`
	OrderNumber string                 `json:"order_number"`
	Status      models.OrderStatus     `json:"status"`
	Message     string                 `json:"message"`
	Timeline    []models.TimelineEntry `json:"timeline"`
}

type orderEventPayload struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Message     string    `json:"message"`
}

type newOrderPayload struct {
	OrderID     uuid.UUID             `json:"order_id"`
	OrderNumber string                `json:"order_number"`
	ShopID      uuid.UUID             `json:"shop_id"`
	ItemCount   int                   `json:"item_count"`
	OrderValue  models.ValueBreakdown `json:"order_value"`
	Earning     float64               `json:"earning"`
	City        string                `json:"city"`
}

type acceptedPayload struct {
	orderEventPayload
	ShopperID uuid.UUID `json:"shopper_id"`
}

type revisedPayload struct {
	orderEventPayload
	Items             []models.OrderItem     `json:"items"`
	RevisedOrderValue *models.ValueBreakdown `json:"revised_order_value"`
	Notes             string                 `json:"notes,omitempty"`
}

type reasonPayload struct {
	orderEventPayload
	Reason string `json:"reason,omitempty"`
}

type billPayload struct {
	orderEventPayload
	Bill    *models.Bill   `json:"bill"`
	Payment models.Payment `json:"payment"`
}

type otpPayload struct {
	orderEventPayload
	OTP string `json:"otp"`
}

type cancelledPayload struct {
	orderEventPayload
	Reason      string      `json:"reason"`
	CancelledBy models.Role `json:"cancelled_by"`
}

type deliveredPayload struct {
	orderEventPayload
	DeliveredAt *time.Time `json:"delivered_at"`
	Commission  float64    `json:"commission"`
	Total       float64    `json:"total"`
}

type ratedPayload struct {
	orderEventPayload
	Rating        int     `json:"rating"`
	Review        string  `json:"review,omitempty"`
	RatingAverage float64 `json:"rating_average"`
	RatingCount   int     `json:"rating_count"`
}

type locationPayload struct {
	OrderID   uuid.UUID     `json:"order_id"`
	ShopperID uuid.UUID     `json:"shopper_id"`
	Location  models.LatLng `json:"location"`
	At        time.Time     `json:"at"`
}

func eventBase(order *models.Order, message string) orderEventPayload {
	return orderEventPayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Message:     message,
	}
}

// planPlacedNotifications broadcasts a new order to every online shopper.
func planPlacedNotifications(order *models.Order) []notification {
	return []notification{
		{
			room:  realtime.PersonalShoppersRoom,
			event: EventNewOrderAvailable,
			payload: newOrderPayload{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				ShopID:      order.ShopID,
				ItemCount:   len(order.Items),
				OrderValue:  order.OrderValue,
				Earning:     order.ShopperCommission,
				City:        order.DeliveryAddress.City,
			},
		},
		{
			room:    realtime.CustomerRoom(order.CustomerID),
			event:   EventOrderStatusUpdated,
			payload: statusUpdate(order),
		},
	}
}

func statusUpdate(order *models.Order) statusUpdatePayload {
	return statusUpdatePayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Message:     statusMessage(order.Status),
		Timeline:    order.Timeline,
	}
}

// planTransitionNotifications addresses the messages for a committed status
// change from before to after. Every party gets the generic status update;
// edge-specific events follow.
func planTransitionNotifications(before, after *models.Order, fx transitionEffects) []notification {
	customerRoom := realtime.CustomerRoom(after.CustomerID)
	var shopperRoom string
	if after.ShopperID != nil {
		shopperRoom = realtime.ShopperRoom(*after.ShopperID)
	}

	update := statusUpdate(after)
	toShopper := update
	toShopper.Timeline = nil
	batch := []notification{{room: customerRoom, event: EventOrderStatusUpdated, payload: update}}
	if shopperRoom != "" {
		batch = append(batch, notification{room: shopperRoom, event: EventOrderStatusUpdated, payload: toShopper})
	}

	message := statusMessage(after.Status)
	switch after.Status {
	case models.StatusAcceptedByShopper:
		batch = append(batch, notification{
			room:    customerRoom,
			event:   EventOrderAccepted,
			payload: acceptedPayload{orderEventPayload: eventBase(after, message), ShopperID: *after.ShopperID},
		})

	case models.StatusCustomerReviewingRevision:
		batch = append(batch, notification{
			room:  customerRoom,
			event: EventOrderRevised,
			payload: revisedPayload{
				orderEventPayload: eventBase(after, message),
				Items:             after.Items,
				RevisedOrderValue: after.RevisedOrderValue,
				Notes:             noteFor(after, models.StatusShopperRevisedOrder),
			},
		})

	case models.StatusFinalShopping:
		if before.Status == models.StatusCustomerReviewingRevision || before.Status == models.StatusCustomerApprovedRevision {
			if shopperRoom != "" {
				batch = append(batch, notification{
					room:    shopperRoom,
					event:   EventRevisionApproved,
					payload: eventBase(after, statusMessage(models.StatusCustomerApprovedRevision)),
				})
			}
		}

	case models.StatusRevisionRejected:
		if shopperRoom != "" {
			batch = append(batch, notification{
				room:    shopperRoom,
				event:   EventRevisionRejected,
				payload: reasonPayload{orderEventPayload: eventBase(after, message), Reason: noteFor(after, models.StatusRevisionRejected)},
			})
		}

	case models.StatusBillUploaded:
		batch = append(batch, notification{
			room:    customerRoom,
			event:   EventBillUploaded,
			payload: billPayload{orderEventPayload: eventBase(after, message), Bill: after.Bill, Payment: after.Payment},
		})

	case models.StatusBillApproved:
		if shopperRoom != "" {
			batch = append(batch, notification{
				room:    shopperRoom,
				event:   EventBillApproved,
				payload: billPayload{orderEventPayload: eventBase(after, message), Bill: after.Bill, Payment: after.Payment},
			})
		}

	case models.StatusBillRejected:
		if shopperRoom != "" {
			reason := ""
			if after.Bill != nil {
				reason = after.Bill.RejectionReason
			}
			batch = append(batch, notification{
				room:    shopperRoom,
				event:   EventBillRejected,
				payload: reasonPayload{orderEventPayload: eventBase(after, message), Reason: reason},
			})
		}

	case models.StatusOutForDelivery:
		if fx.otpGenerated {
			batch = append(batch, notification{
				room:    customerRoom,
				event:   EventDeliveryOTP,
				payload: otpPayload{orderEventPayload: eventBase(after, "Share this code with your shopper at delivery"), OTP: after.DeliveryOTP},
			})
		}

	case models.StatusDelivered:
		delivered := deliveredPayload{
			orderEventPayload: eventBase(after, message),
			DeliveredAt:       after.ActualDeliveryAt,
			Commission:        after.ShopperCommission,
			Total:             after.AuthoritativeValue().Total,
		}
		batch = append(batch, notification{room: customerRoom, event: EventOrderDelivered, payload: delivered})
		if shopperRoom != "" {
			batch = append(batch, notification{room: shopperRoom, event: EventOrderDelivered, payload: delivered})
		}

	case models.StatusCancelled:
		cancelled := cancelledPayload{orderEventPayload: eventBase(after, message)}
		if after.Cancellation != nil {
			cancelled.Reason = after.Cancellation.Reason
			cancelled.CancelledBy = after.Cancellation.CancelledBy
		}
		batch = append(batch, notification{room: customerRoom, event: EventOrderCancelled, payload: cancelled})
		if shopperRoom != "" {
			batch = append(batch, notification{room: shopperRoom, event: EventOrderCancelled, payload: cancelled})
		}
	}

	return batch
}

func planRatedNotifications(order *models.Order, average float64, count int) []notification {
	if order.ShopperID == nil || order.Rating == nil {
		return nil
	}
	return []notification{{
		room:  realtime.ShopperRoom(*order.ShopperID),
		event: EventOrderRated,
		payload: ratedPayload{
			orderEventPayload: eventBase(order, "Your customer rated this order"),
			Rating:            order.Rating.Value,
			Review:            order.Rating.Review,
			RatingAverage:     average,
			RatingCount:       count,
		},
	}}
}

// noteFor returns the caller-supplied note on the latest entry for status, or
// "" when that entry only carries the default message.
func noteFor(order *models.Order, status models.OrderStatus) string {
	for i := len(order.Timeline) - 1; i >= 0; i-- {
		entry := order.Timeline[i]
		if entry.Status != status {
			continue
		}
		if entry.Note == statusMessage(status) {
			return ""
		}
		return entry.Note
	}
	return ""
}
