package handlers

import (
	"context"
	"net/http"

	"github.com/shopmate/shopmate/internal/realtime"
	"github.com/shopmate/shopmate/internal/services"
)

// Realtime upgrades to a websocket joined to the caller's rooms.
func (h *Handlers) Realtime(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "missing caller")
		return
	}

	rooms := roomsFor(actor, h.shopperOnline(r.Context(), actor))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the failure response.
		h.loggerFromContext(r.Context()).Warn("websocket upgrade failed", "error", err)
		return
	}

	h.loggerFromContext(r.Context()).Debug("realtime client connected", "rooms", rooms)
	h.sockets.Serve(conn, rooms)
}

// shopperOnline reports whether a shopper caller is online. Lookup failures
// count as offline so new orders never leak to an unknown shopper.
func (h *Handlers) shopperOnline(ctx context.Context, actor services.Actor) bool {
	shopper, ok := actor.(services.ShopperActor)
	if !ok {
		return false
	}
	online, err := h.shoppers.IsOnline(ctx, shopper.ID)
	if err != nil {
		h.loggerFromContext(ctx).Warn("failed to check shopper availability", "shopper_id", shopper.ID, "error", err)
		return false
	}
	return online
}

// roomsFor lists the rooms a caller listens on. Online shoppers also hear
// new-order broadcasts; an offline shopper must reconnect after going online.
func roomsFor(actor services.Actor, online bool) []string {
	switch a := actor.(type) {
	case services.CustomerActor:
		return []string{realtime.CustomerRoom(a.ID)}
	case services.ShopperActor:
		if !online {
			return []string{realtime.ShopperRoom(a.ID)}
		}
		return []string{realtime.ShopperRoom(a.ID), realtime.PersonalShoppersRoom}
	case services.SystemActor:
		return []string{realtime.PersonalShoppersRoom}
	default:
		return nil
	}
}
