package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/cache"
	"github.com/shopmate/shopmate/internal/db"
	"github.com/shopmate/shopmate/internal/logging"
	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/observability"
	"github.com/shopmate/shopmate/internal/pricing"
	"github.com/shopmate/shopmate/internal/realtime"
	"github.com/shopmate/shopmate/internal/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type orderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, order *models.Order, expectedStatus models.OrderStatus, expectedVersion int) error
	Claim(ctx context.Context, order *models.Order, expectedVersion int) error
	ListByStatus(ctx context.Context, status models.OrderStatus, limit int) ([]*models.Order, error)
	// ListByCustomer and ListByShopper filter on status before limiting; an
	// empty status matches every order.
	ListByCustomer(ctx context.Context, customerID uuid.UUID, status models.OrderStatus, limit int) ([]*models.Order, error)
	ListByShopper(ctx context.Context, shopperID uuid.UUID, status models.OrderStatus, limit int) ([]*models.Order, error)
}

type customerStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	IncrementOrderCount(ctx context.Context, id uuid.UUID) error
	AddLifetimeSpend(ctx context.Context, id uuid.UUID, amount float64) error
}

type shopperStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Shopper, error)
	RecordDelivery(ctx context.Context, id uuid.UUID, earnings float64) error
	RecordRating(ctx context.Context, id uuid.UUID, rating int) (float64, int, error)
}

type OrderService struct {
	orders         orderStore
	customers      customerStore
	shoppers       shopperStore
	pricer         *pricing.Engine
	dispatcher     *dispatcher
	bills          storage.BillStore
	idempotency    cache.Provider
	idempotencyTTL time.Duration
	validate       *validator.Validate
	now            func() time.Time
	logger         *slog.Logger
}

type OrderServiceOptions struct {
	Bills storage.BillStore
	// Idempotency enables PlaceOrder replay protection when set.
	Idempotency    cache.Provider
	IdempotencyTTL time.Duration
}

func NewOrderService(orders orderStore, customers customerStore, shoppers shopperStore, pricer *pricing.Engine, notifier realtime.Notifier, opts OrderServiceOptions, logger *slog.Logger) *OrderService {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}

	return &OrderService{
		orders:         orders,
		customers:      customers,
		shoppers:       shoppers,
		pricer:         pricer,
		dispatcher:     newDispatcher(notifier, logger),
		bills:          opts.Bills,
		idempotency:    opts.Idempotency,
		idempotencyTTL: opts.IdempotencyTTL,
		validate:       validator.New(),
		now:            time.Now,
		logger:         logger,
	}
}

func (s *OrderService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// WaitForNotifications blocks until queued fan-out has been handed to the notifier.
func (s *OrderService) WaitForNotifications() {
	s.dispatcher.wait()
}

type PlaceOrderItem struct {
	ProductID string  `json:"product_id" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	Price     float64 `json:"price" validate:"gt=0"`
	Quantity  int     `json:"quantity" validate:"gte=1"`
	Notes     string  `json:"notes" validate:"max=280"`
}

type AddressInput struct {
	Street       string         `json:"street" validate:"required"`
	City         string         `json:"city" validate:"required"`
	Location     *models.LatLng `json:"location" validate:"required"`
	ContactName  string         `json:"contact_name"`
	ContactPhone string         `json:"contact_phone"`
}

type PlaceOrderInput struct {
	CustomerID          uuid.UUID            `json:"-" validate:"required"`
	ShopID              uuid.UUID            `json:"shop_id" validate:"required"`
	Items               []PlaceOrderItem     `json:"items" validate:"required,min=1,unique=ProductID,dive"`
	DeliveryAddress     AddressInput         `json:"delivery_address"`
	SpecialInstructions string               `json:"special_instructions" validate:"max=500"`
	PaymentMethod       models.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=cod upi"`
	IdempotencyKey      string               `json:"-" validate:"omitempty,max=128"`
}

// PlaceOrder prices and stores a new order waiting for a shopper.
func (s *OrderService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.place",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("PlaceOrder"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	recordFailure := func(reason string) {
		observability.Count(ctx, "order.place.failed", "reason", reason)
	}

	if err := s.validate.Struct(input); err != nil {
		recordFailure("validation")
		return nil, describeValidation(err)
	}
	loc := input.DeliveryAddress.Location
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
		recordFailure("validation")
		return nil, validationError("delivery_address.location is out of range")
	}

	if input.IdempotencyKey != "" && s.idempotency != nil {
		existing, release, err := s.reserveIdempotencyKey(ctx, input.CustomerID, input.IdempotencyKey)
		if err != nil || existing != nil {
			return existing, err
		}
		defer release()
	}

	customer, err := s.customers.GetByID(ctx, input.CustomerID)
	if err != nil {
		recordFailure("customer_lookup")
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer %s", ErrNotFound, input.CustomerID)
		}
		return nil, persistenceError("load customer", err)
	}

	shop, err := s.pricer.Shop(ctx, input.ShopID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			recordFailure("shop_missing")
			return nil, fmt.Errorf("%w: shop %s does not exist", ErrShopUnavailable, input.ShopID)
		}
		recordFailure("pricing_unavailable")
		return nil, err
	}
	if !shop.IsActive {
		recordFailure("shop_inactive")
		return nil, fmt.Errorf("%w: shop %s is not accepting orders", ErrShopUnavailable, shop.ID)
	}

	items := make([]models.OrderItem, len(input.Items))
	priced := make([]pricing.PricedItem, len(input.Items))
	for i, item := range input.Items {
		items[i] = models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Notes:     item.Notes,
		}
		priced[i] = pricing.PricedItem{Price: item.Price, Quantity: item.Quantity}
	}

	quote, err := pricing.Compute(priced, shop, input.DeliveryAddress.Location)
	if err != nil {
		recordFailure("pricing_unavailable")
		return nil, err
	}
	if quote.Subtotal < shop.MinOrderValue {
		recordFailure("below_minimum")
		return nil, fmt.Errorf("%w: subtotal %.2f is below the shop minimum of %.2f", ErrBelowMinimum, quote.Subtotal, shop.MinOrderValue)
	}

	address := models.DeliveryAddress{
		Street:       input.DeliveryAddress.Street,
		City:         input.DeliveryAddress.City,
		Location:     input.DeliveryAddress.Location,
		ContactName:  input.DeliveryAddress.ContactName,
		ContactPhone: input.DeliveryAddress.ContactPhone,
	}
	if address.ContactName == "" {
		address.ContactName = customer.Name
	}
	if address.ContactPhone == "" {
		address.ContactPhone = customer.Phone
	}

	method := input.PaymentMethod
	if method == "" {
		method = models.PaymentMethodCOD
	}

	now := s.now().UTC()
	orderNumber, err := newOrderNumber(now)
	if err != nil {
		recordFailure("order_number")
		return nil, err
	}
	breakdown := quote.ValueBreakdown
	order := &models.Order{
		ID:                  uuid.New(),
		OrderNumber:         orderNumber,
		CustomerID:          customer.ID,
		ShopID:              shop.ID,
		Items:               items,
		OrderValue:          breakdown,
		ShopperCommission:   quote.ShopperEarning,
		Status:              models.StatusPendingShopper,
		DeliveryAddress:     address,
		SpecialInstructions: input.SpecialInstructions,
		Payment: models.Payment{
			Method: method,
			Status: models.PaymentStatusPending,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	order.AppendTimeline(models.TimelineEntry{
		Status:    models.StatusPendingShopper,
		Timestamp: now,
		Note:      statusMessage(models.StatusPendingShopper),
		UpdatedBy: models.RoleCustomer,
		Pricing:   &breakdown,
	})

	if err := s.orders.Create(ctx, order); err != nil {
		recordFailure("persistence")
		return nil, persistenceError("create order", err)
	}

	if input.IdempotencyKey != "" && s.idempotency != nil {
		key := cache.IdempotencyKey(input.CustomerID.String(), input.IdempotencyKey)
		if err := s.idempotency.Set(ctx, key, order.ID.String(), s.idempotencyTTL); err != nil {
			logger.Warn("failed to record idempotency key", "error", err, "order_id", order.ID)
		}
	}

	if err := s.customers.IncrementOrderCount(ctx, customer.ID); err != nil {
		logger.Error("failed to increment customer order count", "error", err, "customer_id", customer.ID)
	}

	observability.Count(ctx, "order.placed", "shop_id", order.ShopID.String())
	logger.Info("order placed",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"shop_id", shop.ID,
		"total", order.OrderValue.Total,
	)

	s.dispatcher.send(ctx, planPlacedNotifications(order))
	return order, nil
}

const idempotencyPending = "pending"

// reserveIdempotencyKey returns the order a previous request with the same key
// created, or reserves the key. release frees a reservation that never
// produced an order.
func (s *OrderService) reserveIdempotencyKey(ctx context.Context, customerID uuid.UUID, key string) (*models.Order, func(), error) {
	cacheKey := cache.IdempotencyKey(customerID.String(), key)
	stored, err := s.idempotency.SetNX(ctx, cacheKey, idempotencyPending, s.idempotencyTTL)
	if err != nil {
		s.loggerFromContext(ctx).Warn("idempotency reservation failed", "error", err)
		return nil, func() {}, nil
	}
	if stored {
		release := func() {
			value, err := s.idempotency.Get(ctx, cacheKey)
			if err == nil && value == idempotencyPending {
				_ = s.idempotency.Delete(ctx, cacheKey) //nolint:errcheck
			}
		}
		return nil, release, nil
	}

	value, err := s.idempotency.Get(ctx, cacheKey)
	if err != nil || value == idempotencyPending {
		return nil, nil, fmt.Errorf("%w: an order with this idempotency key is being placed", ErrConcurrencyConflict)
	}
	orderID, err := uuid.Parse(value)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: corrupt idempotency record", ErrConcurrencyConflict)
	}
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, nil, nil
}

// GetOrder returns the order if actor is a party to it.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canView(order, actor) {
		return nil, accessDenied("order is not visible to %s", actor)
	}
	return viewFor(order, actor), nil
}

// ListAvailableOrders lists orders waiting for a shopper. Only online shoppers see them.
func (s *OrderService) ListAvailableOrders(ctx context.Context, actor Actor) ([]*models.Order, error) {
	switch a := actor.(type) {
	case ShopperActor:
		shopper, err := s.shoppers.GetByID(ctx, a.ID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, fmt.Errorf("%w: shopper %s", ErrNotFound, a.ID)
			}
			return nil, persistenceError("load shopper", err)
		}
		if !shopper.IsOnline {
			return nil, accessDenied("shopper is offline")
		}
	case SystemActor:
	default:
		return nil, accessDenied("only shoppers can browse available orders")
	}

	orders, err := s.orders.ListByStatus(ctx, models.StatusPendingShopper, defaultListLimit)
	if err != nil {
		return nil, persistenceError("list available orders", err)
	}
	return viewsFor(orders, actor), nil
}

// ListOrdersForActor lists the actor's own orders, newest first. Admins must
// filter by status.
func (s *OrderService) ListOrdersForActor(ctx context.Context, actor Actor, status models.OrderStatus, limit int) ([]*models.Order, error) {
	if status != "" && !status.IsValid() {
		return nil, validationError("unknown status %q", status)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var (
		orders []*models.Order
		err    error
	)
	switch a := actor.(type) {
	case CustomerActor:
		orders, err = s.orders.ListByCustomer(ctx, a.ID, status, limit)
	case ShopperActor:
		orders, err = s.orders.ListByShopper(ctx, a.ID, status, limit)
	case SystemActor:
		if status == "" {
			return nil, validationError("status filter is required")
		}
		orders, err = s.orders.ListByStatus(ctx, status, limit)
	default:
		return nil, accessDenied("unknown actor")
	}
	if err != nil {
		return nil, persistenceError("list orders", err)
	}
	return viewsFor(orders, actor), nil
}

// AcceptOrder assigns a waiting order to a shopper. Admins must name the
// shopper. Exactly one concurrent claim wins.
func (s *OrderService) AcceptOrder(ctx context.Context, orderID uuid.UUID, actor Actor, assignee *uuid.UUID) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.accept",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("AcceptOrder"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	var shopperID uuid.UUID
	switch a := actor.(type) {
	case ShopperActor:
		shopperID = a.ID
	case SystemActor:
		if assignee == nil {
			return nil, validationError("shopper_id is required to assign an order")
		}
		shopperID = *assignee
	default:
		observability.RecordTransitionRejected("access_denied")
		return nil, accessDenied("only shoppers can accept orders")
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ShopperID != nil && !order.IsAssignedTo(shopperID) {
		observability.RecordTransitionRejected("conflict")
		return nil, fmt.Errorf("%w: order was claimed by another shopper", ErrConcurrencyConflict)
	}
	if err := authorizeTransition(order, actor, order.Status, models.StatusAcceptedByShopper); err != nil {
		observability.RecordTransitionRejected("access_denied")
		return nil, err
	}
	if !CanTransition(order.Status, models.StatusAcceptedByShopper) {
		observability.RecordTransitionRejected("invalid_transition")
		return nil, &TransitionError{From: order.Status, To: models.StatusAcceptedByShopper}
	}

	shopper, err := s.shoppers.GetByID(ctx, shopperID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: shopper %s", ErrNotFound, shopperID)
		}
		return nil, persistenceError("load shopper", err)
	}
	if !shopper.IsOnline && !isSystem(actor) {
		return nil, accessDenied("shopper must be online to accept orders")
	}

	now := s.now().UTC()
	updated := order.Clone()
	updated.ShopperID = &shopperID
	updated.Status = models.StatusAcceptedByShopper
	updated.UpdatedAt = now
	updated.AppendTimeline(models.TimelineEntry{
		Status:    models.StatusAcceptedByShopper,
		Timestamp: now,
		Note:      statusMessage(models.StatusAcceptedByShopper),
		UpdatedBy: actor.Role(),
	})

	if err := s.orders.Claim(ctx, updated, order.Version); err != nil {
		if errors.Is(err, db.ErrConflict) {
			observability.RecordTransitionRejected("conflict")
			return nil, fmt.Errorf("%w: order was claimed by another shopper", ErrConcurrencyConflict)
		}
		return nil, persistenceError("claim order", err)
	}

	observability.RecordTransition(string(order.Status), string(updated.Status), string(actor.Role()))
	observability.Count(ctx, "order.accepted")
	s.loggerFromContext(ctx).Info("order accepted",
		"order_id", updated.ID,
		"shopper_id", shopperID,
		"actor", actor.String(),
	)

	s.dispatcher.send(ctx, planTransitionNotifications(order, updated, transitionEffects{}))
	return viewFor(updated, actor), nil
}

// TransitionPayload carries the inputs individual edges need.
type TransitionPayload struct {
	Note       string     `json:"note"`
	Reason     string     `json:"reason"`
	BillAmount float64    `json:"bill_amount"`
	OTP        string     `json:"otp"`
	ShopperID  *uuid.UUID `json:"shopper_id"`

	// billImageURL is set only by UploadBill after the image is stored.
	billImageURL string
}

type transitionEffects struct {
	otpGenerated bool
	delivered    bool
}

// Transition moves an order along one edge of the lifecycle table.
func (s *OrderService) Transition(ctx context.Context, orderID uuid.UUID, actor Actor, target models.OrderStatus, payload TransitionPayload) (*models.Order, error) {
	if !target.IsValid() {
		return nil, validationError("unknown status %q", target)
	}
	if target == models.StatusAcceptedByShopper {
		return s.AcceptOrder(ctx, orderID, actor, payload.ShopperID)
	}
	return s.execute(ctx, "Transition", orderID, actor, nil, step{to: target, payload: payload})
}

type step struct {
	to      models.OrderStatus
	payload TransitionPayload
	// pricing is recorded on the timeline entry for this step.
	pricing *models.ValueBreakdown
}

// execute validates every step against the table before touching the order,
// applies prepare and the steps to a copy, and persists the result in one
// conditional write.
func (s *OrderService) execute(ctx context.Context, op string, orderID uuid.UUID, actor Actor, prepare func(order *models.Order) (*models.ValueBreakdown, error), steps ...step) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.transition",
		sentry.WithOpName("service.order"),
		sentry.WithDescription(op),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	recordRejected := func(reason string) {
		observability.RecordTransitionRejected(reason)
		observability.Count(ctx, "order.transition.rejected", "reason", reason, "operation", op)
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	from := order.Status
	for _, st := range steps {
		if err := authorizeTransition(order, actor, from, st.to); err != nil {
			recordRejected("access_denied")
			return nil, err
		}
		if !CanTransition(from, st.to) {
			recordRejected("invalid_transition")
			return nil, &TransitionError{From: from, To: st.to}
		}
		from = st.to
	}

	updated := order.Clone()
	var stepPricing *models.ValueBreakdown
	if prepare != nil {
		stepPricing, err = prepare(updated)
		if err != nil {
			recordRejected("prepare")
			return nil, err
		}
	}

	var fx transitionEffects
	now := s.now().UTC()
	for i, st := range steps {
		if st.pricing == nil && i == len(steps)-1 {
			st.pricing = stepPricing
		}
		stepFx, err := s.applyStep(ctx, updated, actor, st, now)
		if err != nil {
			recordRejected("payload")
			return nil, err
		}
		fx.otpGenerated = fx.otpGenerated || stepFx.otpGenerated
		fx.delivered = fx.delivered || stepFx.delivered
	}

	if err := s.orders.Update(ctx, updated, order.Status, order.Version); err != nil {
		if errors.Is(err, db.ErrConflict) {
			recordRejected("conflict")
			return nil, fmt.Errorf("%w: order %s changed while %s was in progress", ErrConcurrencyConflict, order.ID, op)
		}
		return nil, persistenceError("update order", err)
	}

	prev := order.Status
	for _, st := range steps {
		observability.RecordTransition(string(prev), string(st.to), string(actor.Role()))
		prev = st.to
	}
	observability.Count(ctx, "order.transition", "to", string(updated.Status))
	logger.Info("order transitioned",
		"order_id", updated.ID,
		"from", order.Status,
		"to", updated.Status,
		"actor", actor.String(),
		"operation", op,
	)

	if fx.delivered {
		s.recordDeliveryStats(ctx, updated)
	}

	s.dispatcher.send(ctx, planTransitionNotifications(order, updated, fx))
	return viewFor(updated, actor), nil
}

// applyStep performs the edge's guard, payload checks and side effects and
// appends its timeline entry.
func (s *OrderService) applyStep(ctx context.Context, order *models.Order, actor Actor, st step, now time.Time) (transitionEffects, error) {
	var fx transitionEffects
	from := order.Status
	note := st.payload.Note

	switch st.to {
	case models.StatusCancelled:
		if !order.CanBeCancelled(actor.Role()) {
			return fx, &TransitionError{From: from, To: st.to, Reason: "order cannot be cancelled at this stage"}
		}
		if st.payload.Reason == "" {
			return fx, validationError("reason is required to cancel an order")
		}
		order.Cancellation = &models.Cancellation{
			Reason:      st.payload.Reason,
			CancelledBy: actor.Role(),
			CancelledAt: now,
		}
		if note == "" {
			note = st.payload.Reason
		}

	case models.StatusBillUploaded:
		if st.payload.BillAmount <= 0 {
			return fx, validationError("bill_amount must be positive")
		}
		// Only operators may record a paper bill without an image.
		if _, operator := actor.(SystemActor); !operator && st.payload.billImageURL == "" {
			return fx, validationError("bill image is required; upload the bill instead")
		}
		uploadedAt := now
		order.Bill = &models.Bill{
			ImageURL:   st.payload.billImageURL,
			Amount:     st.payload.BillAmount,
			UploadedAt: &uploadedAt,
		}

	case models.StatusBillApproved:
		if order.Bill == nil {
			return fx, validationError("order has no bill to approve")
		}
		approvedAt := now
		order.Bill.ApprovedAt = &approvedAt
		if order.Payment.Method == models.PaymentMethodUPI {
			if err := s.requestUPIPayment(ctx, order); err != nil {
				return fx, err
			}
		}

	case models.StatusBillRejected:
		if order.Bill == nil {
			return fx, validationError("order has no bill to reject")
		}
		rejectedAt := now
		order.Bill.RejectedAt = &rejectedAt
		order.Bill.RejectionReason = st.payload.Reason
		if note == "" {
			note = st.payload.Reason
		}

	case models.StatusRevisionRejected:
		if note == "" {
			note = st.payload.Reason
		}

	case models.StatusOutForDelivery:
		if order.DeliveryOTP == "" {
			otp, err := newDeliveryOTP()
			if err != nil {
				return fx, err
			}
			order.DeliveryOTP = otp
			fx.otpGenerated = true
		}

	case models.StatusDelivered:
		if _, ok := actor.(ShopperActor); ok && st.payload.OTP != order.DeliveryOTP {
			return fx, validationError("delivery otp does not match")
		}
		deliveredAt := now
		order.ActualDeliveryAt = &deliveredAt
		order.Payment.Status = models.PaymentStatusPaid
		order.Payment.PaidAt = &deliveredAt
		order.ShopperCommission = order.AuthoritativeValue().DeliveryFee
		fx.delivered = true
	}

	if note == "" {
		note = statusMessage(st.to)
	}
	order.Status = st.to
	order.UpdatedAt = now
	order.AppendTimeline(models.TimelineEntry{
		Status:    st.to,
		Timestamp: now,
		Note:      note,
		UpdatedBy: actor.Role(),
		Pricing:   st.pricing,
	})
	return fx, nil
}

// requestUPIPayment asks the customer to pay the shopper directly for the approved total.
func (s *OrderService) requestUPIPayment(ctx context.Context, order *models.Order) error {
	order.Payment.Status = models.PaymentStatusAwaitingPayment
	order.Payment.AmountDue = order.AuthoritativeValue().Total
	if order.ShopperID == nil {
		return nil
	}

	shopper, err := s.shoppers.GetByID(ctx, *order.ShopperID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.loggerFromContext(ctx).Warn("assigned shopper missing while requesting upi payment", "shopper_id", *order.ShopperID)
			return nil
		}
		return persistenceError("load shopper", err)
	}
	order.Payment.ShopperUPIID = shopper.UPIID
	return nil
}

// recordDeliveryStats credits the shopper and customer once a delivery commits.
// The order is already stored, so failures are logged rather than returned.
func (s *OrderService) recordDeliveryStats(ctx context.Context, order *models.Order) {
	logger := s.loggerFromContext(ctx)
	if order.ShopperID != nil {
		if err := s.shoppers.RecordDelivery(ctx, *order.ShopperID, order.ShopperCommission); err != nil {
			logger.Error("failed to record shopper delivery", "error", err, "order_id", order.ID, "shopper_id", *order.ShopperID)
		}
	}
	if err := s.customers.AddLifetimeSpend(ctx, order.CustomerID, order.AuthoritativeValue().Total); err != nil {
		logger.Error("failed to record customer spend", "error", err, "order_id", order.ID, "customer_id", order.CustomerID)
	}
}

func (s *OrderService) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, loadError(orderID, err)
	}
	return order, nil
}

func loadError(orderID uuid.UUID, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	return persistenceError("load order", err)
}

// viewFor hides the delivery OTP from everyone but the customer and admins.
func viewFor(order *models.Order, actor Actor) *models.Order {
	if _, ok := actor.(ShopperActor); ok && order.DeliveryOTP != "" {
		redacted := order.Clone()
		redacted.DeliveryOTP = ""
		return redacted
	}
	return order
}

func viewsFor(orders []*models.Order, actor Actor) []*models.Order {
	views := make([]*models.Order, len(orders))
	for i, order := range orders {
		views[i] = viewFor(order, actor)
	}
	return views
}

// newOrderNumber is "ORD", the UTC time as yyMMddHHmmss, and four random digits.
func newOrderNumber(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate order number: %w", err)
	}
	return fmt.Sprintf("ORD%s%04d", now.Format("060102150405"), n.Int64()), nil
}

// newDeliveryOTP returns a four digit code in [1000, 9999].
func newDeliveryOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("failed to generate delivery otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+1000), nil
}

// dispatcher hands notifications to the notifier off the request path.
type dispatcher struct {
	notifier realtime.Notifier
	logger   *slog.Logger
	inflight sync.WaitGroup
}

func newDispatcher(notifier realtime.Notifier, logger *slog.Logger) *dispatcher {
	return &dispatcher{notifier: notifier, logger: logger}
}

func (d *dispatcher) send(ctx context.Context, batch []notification) {
	if d.notifier == nil || len(batch) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	logger := logging.FromContext(ctx, d.logger)

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		for _, n := range batch {
			if err := d.notifier.Emit(ctx, n.room, n.event, n.payload); err != nil {
				observability.RecordNotification(n.event, "failed")
				logger.Warn("failed to emit notification", "error", err, "room", n.room, "event", n.event)
				continue
			}
			observability.RecordNotification(n.event, "sent")
		}
	}()
}

func (d *dispatcher) wait() {
	d.inflight.Wait()
}
