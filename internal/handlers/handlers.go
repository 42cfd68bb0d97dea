package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shopmate/shopmate/internal/config"
	"github.com/shopmate/shopmate/internal/logging"
	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/pricing"
	"github.com/shopmate/shopmate/internal/services"
)

type orderAPI interface {
	PlaceOrder(ctx context.Context, input services.PlaceOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, actor services.Actor) (*models.Order, error)
	ListAvailableOrders(ctx context.Context, actor services.Actor) ([]*models.Order, error)
	ListOrdersForActor(ctx context.Context, actor services.Actor, status models.OrderStatus, limit int) ([]*models.Order, error)
	AcceptOrder(ctx context.Context, orderID uuid.UUID, actor services.Actor, assignee *uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, orderID uuid.UUID, actor services.Actor, target models.OrderStatus, payload services.TransitionPayload) (*models.Order, error)
	ReviseItems(ctx context.Context, orderID uuid.UUID, actor services.Actor, revised []services.RevisedItem, notes string) (*models.Order, error)
	ApproveRevision(ctx context.Context, orderID uuid.UUID, actor services.Actor, note string) (*models.Order, error)
	RejectRevision(ctx context.Context, orderID uuid.UUID, actor services.Actor, reason string) (*models.Order, error)
	UploadBill(ctx context.Context, orderID uuid.UUID, actor services.Actor, amount float64, contentType string, image io.Reader) (*models.Order, error)
	ApproveBill(ctx context.Context, orderID uuid.UUID, actor services.Actor, note string) (*models.Order, error)
	RejectBill(ctx context.Context, orderID uuid.UUID, actor services.Actor, reason string) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, actor services.Actor, reason string) (*models.Order, error)
	Rate(ctx context.Context, orderID uuid.UUID, actor services.Actor, value int, review string) error
}

type discountAPI interface {
	FindBestDiscount(ctx context.Context, originalFee, subtotal float64, shopID *uuid.UUID) (pricing.DiscountResult, error)
	QuoteForShop(ctx context.Context, shopID uuid.UUID, items []pricing.PricedItem, destination *models.LatLng) (pricing.Quote, pricing.DiscountResult, error)
}

type locationAPI interface {
	ReportLocation(ctx context.Context, orderID uuid.UUID, actor services.Actor, location models.LatLng) error
}

type shopperAPI interface {
	Profile(ctx context.Context, actor services.Actor) (*models.Shopper, error)
	UpdateProfile(ctx context.Context, actor services.Actor, update services.ShopperUpdate) (*models.Shopper, error)
	IsOnline(ctx context.Context, shopperID uuid.UUID) (bool, error)
}

// socketServer joins an upgraded connection to rooms and blocks until it closes.
type socketServer interface {
	Serve(conn *websocket.Conn, rooms []string)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Handlers provides the HTTP API for customers, shoppers and the admin console.
type Handlers struct {
	config    *config.Config
	db        pinger
	orders    orderAPI
	discounts discountAPI
	locations locationAPI
	shoppers  shopperAPI
	sockets   socketServer
	tokens    *TokenVerifier
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

type Dependencies struct {
	Config    *config.Config
	DB        pinger
	Orders    orderAPI
	Discounts discountAPI
	Locations locationAPI
	Shoppers  shopperAPI
	Sockets   socketServer
	Tokens    *TokenVerifier
	Logger    *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("handlers dependencies: orders is required")
	}
	if deps.Discounts == nil {
		return nil, fmt.Errorf("handlers dependencies: discounts is required")
	}
	if deps.Locations == nil {
		return nil, fmt.Errorf("handlers dependencies: locations is required")
	}
	if deps.Shoppers == nil {
		return nil, fmt.Errorf("handlers dependencies: shoppers is required")
	}
	if deps.Sockets == nil {
		return nil, fmt.Errorf("handlers dependencies: sockets is required")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("handlers dependencies: tokens is required")
	}

	h := &Handlers{
		config:    deps.Config,
		db:        deps.DB,
		orders:    deps.Orders,
		discounts: deps.Discounts,
		locations: deps.Locations,
		shoppers:  deps.Shoppers,
		sockets:   deps.Sockets,
		tokens:    deps.Tokens,
		logger:    logger.With("component", "handlers"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.originAllowed,
	}
	return h, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}
