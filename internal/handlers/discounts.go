package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/pricing"
)

// BestDiscount answers GET /v1/discounts/best?fee=&subtotal=&shop_id=.
func (h *Handlers) BestDiscount(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	fee, err := strconv.ParseFloat(strings.TrimSpace(query.Get("fee")), 64)
	if err != nil {
		writeErrorBody(w, http.StatusBadRequest, "validation_failed", "fee must be a number")
		return
	}
	subtotal, err := strconv.ParseFloat(strings.TrimSpace(query.Get("subtotal")), 64)
	if err != nil {
		writeErrorBody(w, http.StatusBadRequest, "validation_failed", "subtotal must be a number")
		return
	}

	var shopID *uuid.UUID
	if raw := strings.TrimSpace(query.Get("shop_id")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			writeErrorBody(w, http.StatusBadRequest, "validation_failed", "shop_id must be a uuid")
			return
		}
		shopID = &parsed
	}

	result, err := h.discounts.FindBestDiscount(r.Context(), fee, subtotal, shopID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, result)
}

type quoteItem struct {
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type quoteRequest struct {
	ShopID      uuid.UUID      `json:"shop_id"`
	Items       []quoteItem    `json:"items"`
	Destination *models.LatLng `json:"destination"`
}

type quoteResponse struct {
	models.ValueBreakdown
	DistanceMeters float64                `json:"distance_meters"`
	BestDiscount   pricing.DiscountResult `json:"best_discount"`
}

// Quote prices a prospective basket before checkout.
func (h *Handlers) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ShopID == uuid.Nil || len(req.Items) == 0 {
		writeErrorBody(w, http.StatusBadRequest, "validation_failed", "shop_id and items are required")
		return
	}

	items := make([]pricing.PricedItem, len(req.Items))
	for i, item := range req.Items {
		if item.Price <= 0 || item.Quantity < 1 {
			writeErrorBody(w, http.StatusBadRequest, "validation_failed", "items need a positive price and quantity")
			return
		}
		items[i] = pricing.PricedItem{Price: item.Price, Quantity: item.Quantity}
	}

	quote, discount, err := h.discounts.QuoteForShop(r.Context(), req.ShopID, items, req.Destination)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, quoteResponse{
		ValueBreakdown: quote.ValueBreakdown,
		DistanceMeters: quote.DistanceMeters,
		BestDiscount:   discount,
	})
}
