package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/shopmate/shopmate/internal/services"
)

const maxJSONBodyBytes = 1 << 20 // 1 MB

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.loggerFromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}

func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Code: code}) //nolint:errcheck
}

// writeError maps a service error onto a status code. Internal failures are
// logged and reported without detail.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusForError(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.loggerFromContext(r.Context()).Error("request failed", "error", err, "code", code)
		if status == http.StatusInternalServerError {
			message = "internal error"
		}
	}
	writeErrorBody(w, status, code, message)
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, services.ErrInvalidRevision):
		return http.StatusBadRequest, "invalid_revision"
	case errors.Is(err, services.ErrAccessDenied):
		return http.StatusForbidden, "access_denied"
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, services.ErrConcurrencyConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, services.ErrAlreadyRated):
		return http.StatusConflict, "already_rated"
	case errors.Is(err, services.ErrNotDelivered):
		return http.StatusUnprocessableEntity, "not_delivered"
	case errors.Is(err, services.ErrBelowMinimum):
		return http.StatusUnprocessableEntity, "below_minimum"
	case errors.Is(err, services.ErrShopUnavailable):
		return http.StatusUnprocessableEntity, "shop_unavailable"
	case errors.Is(err, services.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, services.ErrPricingUnavailable):
		return http.StatusServiceUnavailable, "pricing_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// decodeJSON reads a bounded JSON body into dst and rejects unknown fields.
// An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: malformed request body: %v", services.ErrValidation, err)
	}
	return nil
}
