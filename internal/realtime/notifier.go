// Package realtime delivers order events to connected customers and shoppers.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// PersonalShoppersRoom receives new-order broadcasts for every online shopper.
const PersonalShoppersRoom = "personalShoppers"

// Notifier emits an event to whoever is currently in room. Delivery is best effort.
type Notifier interface {
	Emit(ctx context.Context, room, event string, payload any) error
}

// Message is the unit routed between instances and written to sockets.
type Message struct {
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func CustomerRoom(id uuid.UUID) string {
	return "customer_" + id.String()
}

func ShopperRoom(id uuid.UUID) string {
	return "shopper_" + id.String()
}

func newMessage(room, event string, payload any) (Message, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	return Message{Room: room, Event: event, Payload: encoded}, nil
}

// frame is what a socket client receives.
type frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}
