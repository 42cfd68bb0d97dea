package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPendingShopper            OrderStatus = "pending_shopper"
	StatusAcceptedByShopper         OrderStatus = "accepted_by_shopper"
	StatusShopperAtShop             OrderStatus = "shopper_at_shop"
	StatusShoppingInProgress        OrderStatus = "shopping_in_progress"
	StatusShopperRevisedOrder       OrderStatus = "shopper_revised_order"
	StatusCustomerReviewingRevision OrderStatus = "customer_reviewing_revision"
	StatusRevisionRejected          OrderStatus = "revision_rejected"
	StatusCustomerApprovedRevision  OrderStatus = "customer_approved_revision"
	StatusFinalShopping             OrderStatus = "final_shopping"
	StatusBillUploaded              OrderStatus = "bill_uploaded"
	StatusBillApproved              OrderStatus = "bill_approved"
	StatusBillRejected              OrderStatus = "bill_rejected"
	StatusOutForDelivery            OrderStatus = "out_for_delivery"
	StatusDelivered                 OrderStatus = "delivered"
	StatusCancelled                 OrderStatus = "cancelled"
	StatusRefunded                  OrderStatus = "refunded"
)

// AllStatuses lists every order status in lifecycle order.
var AllStatuses = []OrderStatus{
	StatusPendingShopper,
	StatusAcceptedByShopper,
	StatusShopperAtShop,
	StatusShoppingInProgress,
	StatusShopperRevisedOrder,
	StatusCustomerReviewingRevision,
	StatusRevisionRejected,
	StatusCustomerApprovedRevision,
	StatusFinalShopping,
	StatusBillUploaded,
	StatusBillApproved,
	StatusBillRejected,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
	StatusRefunded,
}

func (s OrderStatus) IsValid() bool {
	for _, status := range AllStatuses {
		if status == s {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleShopper  Role = "shopper"
	RoleAdmin    Role = "admin"
)

type PaymentMethod string

const (
	PaymentMethodCOD PaymentMethod = "cod"
	PaymentMethodUPI PaymentMethod = "upi"
)

type PaymentStatus string

const (
	PaymentStatusPending         PaymentStatus = "pending"
	PaymentStatusAwaitingPayment PaymentStatus = "awaiting_payment"
	PaymentStatusPaid            PaymentStatus = "paid"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type DeliveryAddress struct {
	Street       string  `json:"street"`
	City         string  `json:"city"`
	Location     *LatLng `json:"location,omitempty"`
	ContactName  string  `json:"contact_name"`
	ContactPhone string  `json:"contact_phone"`
}

// ItemRevision overlays a shopper's adjustment on an order item.
type ItemRevision struct {
	Available bool    `json:"available"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type OrderItem struct {
	ProductID string        `json:"product_id"`
	Name      string        `json:"name"`
	Price     float64       `json:"price"`
	Quantity  int           `json:"quantity"`
	Notes     string        `json:"notes,omitempty"`
	Revision  *ItemRevision `json:"revision,omitempty"`
}

// ValueBreakdown is shared by the original and revised order values.
// ServiceFee is retired and always zero.
type ValueBreakdown struct {
	Subtotal    float64 `json:"subtotal"`
	DeliveryFee float64 `json:"delivery_fee"`
	ServiceFee  float64 `json:"service_fee"`
	Taxes       float64 `json:"taxes"`
	Discount    float64 `json:"discount"`
	Total       float64 `json:"total"`
}

// Balanced reports whether Total equals Subtotal + DeliveryFee + Taxes - Discount,
// to the paisa.
func (v ValueBreakdown) Balanced() bool {
	return math.Abs(v.Total-(v.Subtotal+v.DeliveryFee+v.Taxes-v.Discount)) < 0.005
}

type TimelineEntry struct {
	Status    OrderStatus     `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Note      string          `json:"note,omitempty"`
	UpdatedBy Role            `json:"updated_by"`
	Pricing   *ValueBreakdown `json:"pricing,omitempty"`
}

type Bill struct {
	ImageURL        string     `json:"image_url,omitempty"`
	Amount          float64    `json:"amount"`
	UploadedAt      *time.Time `json:"uploaded_at,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

type Cancellation struct {
	Reason      string    `json:"reason"`
	CancelledBy Role      `json:"cancelled_by"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type Rating struct {
	Value   int       `json:"value"`
	Review  string    `json:"review,omitempty"`
	RatedAt time.Time `json:"rated_at"`
}

type Payment struct {
	Method       PaymentMethod `json:"method"`
	Status       PaymentStatus `json:"status"`
	ShopperUPIID string        `json:"shopper_upi_id,omitempty"`
	AmountDue    float64       `json:"amount_due,omitempty"`
	PaidAt       *time.Time    `json:"paid_at,omitempty"`
}

type Order struct {
	ID                  uuid.UUID       `json:"id"`
	OrderNumber         string          `json:"order_number"`
	CustomerID          uuid.UUID       `json:"customer_id"`
	ShopperID           *uuid.UUID      `json:"shopper_id,omitempty"`
	ShopID              uuid.UUID       `json:"shop_id"`
	Items               []OrderItem     `json:"items"`
	OrderValue          ValueBreakdown  `json:"order_value"`
	RevisedOrderValue   *ValueBreakdown `json:"revised_order_value,omitempty"`
	ShopperCommission   float64         `json:"shopper_commission"`
	Status              OrderStatus     `json:"status"`
	Timeline            []TimelineEntry `json:"timeline"`
	DeliveryAddress     DeliveryAddress `json:"delivery_address"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	DeliveryOTP         string          `json:"delivery_otp,omitempty"`
	ActualDeliveryAt    *time.Time      `json:"actual_delivery_at,omitempty"`
	Bill                *Bill           `json:"bill,omitempty"`
	Cancellation        *Cancellation   `json:"cancellation,omitempty"`
	Rating              *Rating         `json:"rating,omitempty"`
	Payment             Payment         `json:"payment"`
	Version             int             `json:"version"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// AuthoritativeValue returns the revised breakdown when a revision exists.
func (o *Order) AuthoritativeValue() ValueBreakdown {
	if o.RevisedOrderValue != nil {
		return *o.RevisedOrderValue
	}
	return o.OrderValue
}

func (o *Order) IsAssignedTo(shopperID uuid.UUID) bool {
	return o != nil && o.ShopperID != nil && *o.ShopperID == shopperID
}

// CanBeCancelled reports whether the order may still be cancelled by the
// given role. Table membership is checked separately.
func (o *Order) CanBeCancelled(by Role) bool {
	if o == nil || o.Status.IsTerminal() {
		return false
	}
	switch o.Status {
	case StatusOutForDelivery, StatusBillUploaded:
		return false
	case StatusBillApproved:
		return by == RoleAdmin
	default:
		return true
	}
}

// AppendTimeline records a status change. Entries are never rewritten.
func (o *Order) AppendTimeline(entry TimelineEntry) {
	o.Timeline = append(o.Timeline, entry)
}

// Clone returns a deep copy so callers can mutate without touching the original.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.ShopperID != nil {
		id := *o.ShopperID
		c.ShopperID = &id
	}
	c.Items = make([]OrderItem, len(o.Items))
	for i, item := range o.Items {
		c.Items[i] = item
		if item.Revision != nil {
			rev := *item.Revision
			c.Items[i].Revision = &rev
		}
	}
	if o.RevisedOrderValue != nil {
		v := *o.RevisedOrderValue
		c.RevisedOrderValue = &v
	}
	c.Timeline = make([]TimelineEntry, len(o.Timeline))
	for i, entry := range o.Timeline {
		c.Timeline[i] = entry
		if entry.Pricing != nil {
			p := *entry.Pricing
			c.Timeline[i].Pricing = &p
		}
	}
	if o.DeliveryAddress.Location != nil {
		loc := *o.DeliveryAddress.Location
		c.DeliveryAddress.Location = &loc
	}
	if o.Bill != nil {
		b := *o.Bill
		c.Bill = &b
	}
	if o.Cancellation != nil {
		cancel := *o.Cancellation
		c.Cancellation = &cancel
	}
	if o.Rating != nil {
		r := *o.Rating
		c.Rating = &r
	}
	return &c
}
