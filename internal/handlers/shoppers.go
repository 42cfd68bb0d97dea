package handlers

import (
	"net/http"

	"github.com/shopmate/shopmate/internal/services"
)

func (h *Handlers) ShopperProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "missing caller")
		return
	}
	shopper, err := h.shoppers.Profile(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, shopper)
}

// UpdateShopperProfile lets a shopper go online or offline and set the UPI
// id customers pay to.
func (h *Handlers) UpdateShopperProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "missing caller")
		return
	}

	var update services.ShopperUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		h.writeError(w, r, err)
		return
	}
	shopper, err := h.shoppers.UpdateProfile(r.Context(), actor, update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, shopper)
}
