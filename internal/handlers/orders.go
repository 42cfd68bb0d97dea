package handlers

import (
	"bufio"
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/services"
)

const multipartOverheadBytes = 64 << 10

type ordersResponse struct {
	Orders []*models.Order `json:"orders"`
}

// orderRequest resolves the caller and the {id} path variable. It writes the
// error response itself and reports false when either is missing.
func (h *Handlers) orderRequest(w http.ResponseWriter, r *http.Request) (services.Actor, uuid.UUID, bool) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "missing caller")
		return nil, uuid.Nil, false
	}
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeErrorBody(w, http.StatusBadRequest, "validation_failed", "order id must be a uuid")
		return nil, uuid.Nil, false
	}
	return actor, orderID, true
}

func (h *Handlers) respondOrder(w http.ResponseWriter, r *http.Request, order *models.Order, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, order)
}

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	customer, isCustomer := actor.(services.CustomerActor)
	if !ok || !isCustomer {
		writeErrorBody(w, http.StatusForbidden, "access_denied", "only customers can place orders")
		return
	}

	var input services.PlaceOrderInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}
	input.CustomerID = customer.ID
	input.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	order, err := h.orders.PlaceOrder(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, order)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "missing caller")
		return
	}

	query := r.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeErrorBody(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	orders, err := h.orders.ListOrdersForActor(r.Context(), actor, models.OrderStatus(query.Get("status")), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, ordersResponse{Orders: orders})
}

func (h *Handlers) ListAvailableOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "missing caller")
		return
	}
	orders, err := h.orders.ListAvailableOrders(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, ordersResponse{Orders: orders})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, orderID, ok := h.orderRequest(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(r.Context(), orderID, actor)
	h.respondOrder(w, r, order, err)
}

type acceptRequest struct {
	ShopperID *uuid.UUID `json:"shopper_id"`
}

func (h *Handlers) AcceptOrder(w http.ResponseWriter, r *http.Request) {
	actor, orderID, ok := h.orderRequest(w, r)
	if !ok {
		return
	}
	var req acceptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.orders.AcceptOrder(r.Context(), orderID, actor, req.ShopperID)
	h.respondOrder(w, r, order, err)
}

type transitionRequest struct {
	Status models.OrderStatus `json:"status"`
	services.TransitionPayload
}

func (h *Handlers) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	actor, orderID, ok := h.orderRequest(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.orders.Transition(r.Context(), orderID, actor, req.Status, req.TransitionPayload)
	h.respondOrder(w, r, order, err)
}

type reviseRequest struct {
	Items []services.RevisedItem `json:"items"`
	Notes string                 `json:"notes"`
}

func (h *Handlers) ReviseOrder(w http.ResponseWriter, r *http.Request) {
	actor, orderID, ok := h.orderRequest(w, r)
	if !ok {
		return
	}
	var req reviseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.orders.ReviseItems(r.Context(), orderID, actor, req.Items, req.Notes)
	h.respondOrder(w, r, order, err)
}

type noteRequest struct {
	Note   string `json:"note"`
	Reason string `json:"reason"`
}

func (h *Handlers) ApproveRevision(w http.ResponseWriter, r *http.Request) {
	h.withNote(w, r, h.orders.ApproveRevision, func(req noteRequest) string { return req.Note })
}

func (h *Handlers) RejectRevision(w http.ResponseWriter, r *http.Request) {
	h.withNote(w, r, h.orders.RejectRevision, func(req noteRequest) string { return req.Reason })
}

func (h *Handlers) ApproveBill(w http.ResponseWriter, r *http.Request) {
	h.withNote(w, r, h.orders.ApproveBill, func(req noteRequest) string { return req.Note })
}

func (h *Handlers) RejectBill(w http.ResponseWriter, r *http.Request) {
	h.withNote(w, r, h.orders.RejectBill, func(req noteRequest) string { return req.Reason })
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.withNote(w, r, h.orders.CancelOrder, func(req noteRequest) string { return req.Reason })
}

type noteAction func(ctx context.Context, orderID uuid.UUID, actor services.Actor, text string) (*models.Order, error)

func (h *Handlers) withNote(w http.ResponseWriter, r *http.Request, action noteAction, pick func(noteRequest) string) {
	actor, orderID, ok := h.orderRequest(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := action(r.Context(), orderID, actor, strings.TrimSpace(pick(req)))
	h.respondOrder(w, r, order, err)
}

// UploadBill accepts a multipart form with bill_amount and an image part.
func (h *Handlers) UploadBill(w http.ResponseWriter, r *http.Request) {
	actor, orderID, ok := h.orderRequest(w, r)
	if !ok {
		return
	}

	maxBytes := h.config.MaxBillBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverheadBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeErrorBody(w, http.StatusRequestEntityTooLarge, "validation_failed", "bill upload is too large or malformed")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll() //nolint:errcheck
	}()

	amount, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("bill_amount")), 64)
	if err != nil {
		writeErrorBody(w, http.StatusBadRequest, "validation_failed", "bill_amount must be a number")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeErrorBody(w, http.StatusBadRequest, "validation_failed", "image is required")
		return
	}
	defer func() {
		_ = file.Close() //nolint:errcheck
	}()

	body := bufio.NewReader(file)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		head, _ := body.Peek(512) //nolint:errcheck
		contentType = http.DetectContentType(head)
	}

	order, err := h.orders.UploadBill(r.Context(), orderID, actor, amount, contentType, body)
	h.respondOrder(w, r, order, err)
}

type rateRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

func (h *Handlers) RateOrder(w http.ResponseWriter, r *http.Request) {
	actor, orderID, ok := h.orderRequest(w, r)
	if !ok {
		return
	}
	var req rateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.orders.Rate(r.Context(), orderID, actor, req.Rating, strings.TrimSpace(req.Review)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ReportLocation(w http.ResponseWriter, r *http.Request) {
	actor, orderID, ok := h.orderRequest(w, r)
	if !ok {
		return
	}
	var location models.LatLng
	if err := decodeJSON(w, r, &location); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.locations.ReportLocation(r.Context(), orderID, actor, location); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
