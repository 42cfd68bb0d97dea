package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/realtime"
)

type orderReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const visitorIdle = 3 * time.Minute

// LocationService relays a shopper's live position to the customer of an
// active order. Pings are throttled per shopper.
type LocationService struct {
	orders     orderReader
	dispatcher *dispatcher
	limit      rate.Limit
	burst      int
	now        func() time.Time
	logger     *slog.Logger

	mu        sync.Mutex
	visitors  map[uuid.UUID]*visitor
	lastPrune time.Time
}

func NewLocationService(orders orderReader, notifier realtime.Notifier, perSecond float64, burst int, logger *slog.Logger) *LocationService {
	return &LocationService{
		orders:     orders,
		dispatcher: newDispatcher(notifier, logger),
		limit:      rate.Limit(perSecond),
		burst:      burst,
		now:        time.Now,
		logger:     logger,
		visitors:   make(map[uuid.UUID]*visitor),
	}
}

var trackableStatuses = map[models.OrderStatus]bool{
	models.StatusAcceptedByShopper:         true,
	models.StatusShopperAtShop:             true,
	models.StatusShoppingInProgress:        true,
	models.StatusShopperRevisedOrder:       true,
	models.StatusCustomerReviewingRevision: true,
	models.StatusRevisionRejected:          true,
	models.StatusCustomerApprovedRevision:  true,
	models.StatusFinalShopping:             true,
	models.StatusBillUploaded:              true,
	models.StatusBillApproved:              true,
	models.StatusBillRejected:              true,
	models.StatusOutForDelivery:            true,
}

// ReportLocation forwards location to the order's customer room.
func (s *LocationService) ReportLocation(ctx context.Context, orderID uuid.UUID, actor Actor, location models.LatLng) error {
	shopper, ok := actor.(ShopperActor)
	if !ok {
		return accessDenied("only shoppers report locations")
	}
	if location.Lat < -90 || location.Lat > 90 || location.Lng < -180 || location.Lng > 180 {
		return validationError("location is out of range")
	}
	if !s.limiter(shopper.ID).Allow() {
		return ErrRateLimited
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return loadError(orderID, err)
	}
	if !order.IsAssignedTo(shopper.ID) {
		return accessDenied("order is not assigned to this shopper")
	}
	if !trackableStatuses[order.Status] {
		return fmt.Errorf("%w: order is %s", ErrInvalidTransition, order.Status)
	}

	s.dispatcher.send(ctx, []notification{{
		room:  realtime.CustomerRoom(order.CustomerID),
		event: EventShopperLocation,
		payload: locationPayload{
			OrderID:   order.ID,
			ShopperID: shopper.ID,
			Location:  location,
			At:        s.now().UTC(),
		},
	}})
	return nil
}

// WaitForNotifications blocks until queued location pings have been handed
// to the notifier.
func (s *LocationService) WaitForNotifications() {
	s.dispatcher.wait()
}

func (s *LocationService) limiter(shopperID uuid.UUID) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastPrune) > time.Minute {
		for id, v := range s.visitors {
			if now.Sub(v.lastSeen) > visitorIdle {
				delete(s.visitors, id)
			}
		}
		s.lastPrune = now
	}

	v, ok := s.visitors[shopperID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[shopperID] = v
	}
	v.lastSeen = now
	return v.limiter
}
