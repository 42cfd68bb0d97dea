package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/db"
	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/pricing"
)

type memOrderStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*models.Order
	// failUpdate makes Update return a non-conflict error.
	failUpdate error
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: make(map[uuid.UUID]*models.Order)}
}

func (m *memOrderStore) put(order *models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.Version == 0 {
		order.Version = 1
	}
	m.orders[order.ID] = order.Clone()
}

func (m *memOrderStore) get(id uuid.UUID) *models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Clone()
}

func (m *memOrderStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memOrderStore) Create(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.Version = 1
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *memOrderStore) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return order.Clone(), nil
}

func (m *memOrderStore) Update(_ context.Context, order *models.Order, expectedStatus models.OrderStatus, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return m.failUpdate
	}
	stored, ok := m.orders[order.ID]
	if !ok || stored.Status != expectedStatus || stored.Version != expectedVersion {
		return db.ErrConflict
	}
	order.Version = expectedVersion + 1
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *memOrderStore) Claim(_ context.Context, order *models.Order, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[order.ID]
	if !ok || stored.Status != models.StatusPendingShopper || stored.ShopperID != nil {
		return db.ErrConflict
	}
	order.Version = expectedVersion + 1
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *memOrderStore) list(match func(*models.Order) bool, limit int) []*models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Order
	for _, order := range m.orders {
		if match(order) && len(out) < limit {
			out = append(out, order.Clone())
		}
	}
	return out
}

func (m *memOrderStore) ListByStatus(_ context.Context, status models.OrderStatus, limit int) ([]*models.Order, error) {
	return m.list(func(o *models.Order) bool { return o.Status == status }, limit), nil
}

func (m *memOrderStore) ListByCustomer(_ context.Context, customerID uuid.UUID, status models.OrderStatus, limit int) ([]*models.Order, error) {
	return m.list(func(o *models.Order) bool {
		return o.CustomerID == customerID && (status == "" || o.Status == status)
	}, limit), nil
}

func (m *memOrderStore) ListByShopper(_ context.Context, shopperID uuid.UUID, status models.OrderStatus, limit int) ([]*models.Order, error) {
	return m.list(func(o *models.Order) bool {
		return o.IsAssignedTo(shopperID) && (status == "" || o.Status == status)
	}, limit), nil
}

type memCustomerStore struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*models.Customer
}

func newMemCustomerStore(customers ...models.Customer) *memCustomerStore {
	m := &memCustomerStore{customers: make(map[uuid.UUID]*models.Customer)}
	for i := range customers {
		c := customers[i]
		m.customers[c.ID] = &c
	}
	return m
}

func (m *memCustomerStore) GetByID(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *memCustomerStore) IncrementOrderCount(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return db.ErrNotFound
	}
	c.OrderCount++
	return nil
}

func (m *memCustomerStore) AddLifetimeSpend(_ context.Context, id uuid.UUID, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return db.ErrNotFound
	}
	c.LifetimeSpend += amount
	return nil
}

type memShopperStore struct {
	mu       sync.Mutex
	shoppers map[uuid.UUID]*models.Shopper
}

func newMemShopperStore(shoppers ...models.Shopper) *memShopperStore {
	m := &memShopperStore{shoppers: make(map[uuid.UUID]*models.Shopper)}
	for i := range shoppers {
		s := shoppers[i]
		m.shoppers[s.ID] = &s
	}
	return m
}

func (m *memShopperStore) GetByID(_ context.Context, id uuid.UUID) (*models.Shopper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shoppers[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *memShopperStore) SetOnline(_ context.Context, id uuid.UUID, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shoppers[id]
	if !ok {
		return db.ErrNotFound
	}
	s.IsOnline = online
	return nil
}

func (m *memShopperStore) SetUPIID(_ context.Context, id uuid.UUID, upiID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shoppers[id]
	if !ok {
		return db.ErrNotFound
	}
	s.UPIID = upiID
	return nil
}

func (m *memShopperStore) RecordDelivery(_ context.Context, id uuid.UUID, earnings float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shoppers[id]
	if !ok {
		return db.ErrNotFound
	}
	s.CompletedOrders++
	s.TotalEarnings += earnings
	return nil
}

func (m *memShopperStore) RecordRating(_ context.Context, id uuid.UUID, rating int) (float64, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shoppers[id]
	if !ok {
		return 0, 0, db.ErrNotFound
	}
	s.RatingAverage = models.NextRatingAverage(s.RatingAverage, s.RatingCount, rating)
	s.RatingCount++
	return s.RatingAverage, s.RatingCount, nil
}

type emitted struct {
	room    string
	event   string
	payload any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []emitted
	err    error
}

func (n *recordingNotifier) Emit(_ context.Context, room, event string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emitted{room: room, event: event, payload: payload})
	return n.err
}

func (n *recordingNotifier) find(room, event string) (emitted, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e.room == room && e.event == event {
			return e, true
		}
	}
	return emitted{}, false
}

func (n *recordingNotifier) countEvent(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.events {
		if e.event == event {
			count++
		}
	}
	return count
}

type mapShopSource map[uuid.UUID]*models.Shop

func (m mapShopSource) GetShop(_ context.Context, id uuid.UUID) (*models.Shop, error) {
	shop, ok := m[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *shop
	return &copied, nil
}

type fixture struct {
	service   *OrderService
	orders    *memOrderStore
	customers *memCustomerStore
	shoppers  *memShopperStore
	notifier  *recordingNotifier
	shop      *models.Shop
	customer  models.Customer
	shopper   models.Shopper
	now       time.Time
}

var fixedNow = time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// shopLocation is the reference point every fixture shop sits on.
var shopLocation = models.LatLng{Lat: 12.9716, Lng: 77.5946}

// pointNorthOf returns a coordinate meters due north of from.
func pointNorthOf(from models.LatLng, meters float64) *models.LatLng {
	deltaDegrees := meters / 6371000.0 * 180 / math.Pi
	return &models.LatLng{Lat: from.Lat + deltaDegrees, Lng: from.Lng}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	loc := shopLocation
	shop := &models.Shop{
		ID:              uuid.New(),
		Name:            "Corner Store",
		Location:        &loc,
		DeliveryFeeMode: models.DeliveryFeeDistance,
		FeePerSegment:   10,
		MinOrderValue:   50,
		IsActive:        true,
	}
	customer := models.Customer{ID: uuid.New(), Name: "Asha", Phone: "+911234567890"}
	shopper := models.Shopper{ID: uuid.New(), Name: "Ravi", IsOnline: true, UPIID: "ravi@upi"}

	f := &fixture{
		orders:    newMemOrderStore(),
		customers: newMemCustomerStore(customer),
		shoppers:  newMemShopperStore(shopper),
		notifier:  &recordingNotifier{},
		shop:      shop,
		customer:  customer,
		shopper:   shopper,
		now:       fixedNow,
	}
	engine := pricing.NewEngine(mapShopSource{shop.ID: shop}, time.Second)
	f.service = NewOrderService(f.orders, f.customers, f.shoppers, engine, f.notifier, OrderServiceOptions{}, discardLogger())
	f.service.now = func() time.Time { return f.now }
	return f
}

// seedOrder stores an order in status with the fixture's shopper assigned
// unless status is pending_shopper.
func (f *fixture) seedOrder(status models.OrderStatus) *models.Order {
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD2405011030000001",
		CustomerID:  f.customer.ID,
		ShopID:      f.shop.ID,
		Items: []models.OrderItem{
			{ProductID: "milk", Name: "Milk", Price: 30, Quantity: 2},
			{ProductID: "bread", Name: "Bread", Price: 40, Quantity: 1},
		},
		OrderValue:        models.ValueBreakdown{Subtotal: 100, DeliveryFee: 30, Taxes: 5, Total: 135},
		ShopperCommission: 30,
		Status:            status,
		Timeline: []models.TimelineEntry{
			{Status: models.StatusPendingShopper, Timestamp: fixedNow.Add(-time.Hour), UpdatedBy: models.RoleCustomer},
		},
		DeliveryAddress: models.DeliveryAddress{
			Street:   "1 MG Road",
			City:     "Bengaluru",
			Location: pointNorthOf(shopLocation, 1200),
		},
		Bill:      &models.Bill{Amount: 120},
		Payment:   models.Payment{Method: models.PaymentMethodCOD, Status: models.PaymentStatusPending},
		CreatedAt: fixedNow.Add(-time.Hour),
		UpdatedAt: fixedNow.Add(-time.Hour),
	}
	if status != models.StatusPendingShopper {
		shopperID := f.shopper.ID
		order.ShopperID = &shopperID
	}
	f.orders.put(order)
	return f.orders.get(order.ID)
}

func (f *fixture) customerActor() Actor { return CustomerActor{ID: f.customer.ID} }
func (f *fixture) shopperActor() Actor  { return ShopperActor{ID: f.shopper.ID} }

func requireErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected error %v, got %v", target, err)
	}
}
