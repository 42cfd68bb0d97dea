package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shopmate/shopmate/internal/logging"
	"github.com/shopmate/shopmate/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// Hub tracks websocket clients by room on this instance.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*client]struct{}
	logger *slog.Logger
}

type client struct {
	conn  *websocket.Conn
	send  chan []byte
	rooms []string
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*client]struct{}),
		logger: logger,
	}
}

// Emit delivers to local room members only.
func (h *Hub) Emit(ctx context.Context, room, event string, payload any) error {
	msg, err := newMessage(room, event, payload)
	if err != nil {
		return err
	}
	h.Deliver(ctx, msg)
	return nil
}

// Deliver writes msg to every client in its room without blocking. Clients
// whose buffer is full miss the message.
func (h *Hub) Deliver(ctx context.Context, msg Message) {
	data, err := json.Marshal(frame{Event: msg.Event, Payload: msg.Payload})
	if err != nil {
		logging.FromContext(ctx, h.logger).Error("failed to encode realtime frame", "error", err, "event", msg.Event)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[msg.Room] {
		select {
		case c.send <- data:
		default:
			logging.FromContext(ctx, h.logger).Warn("dropping realtime message for slow client",
				"room", msg.Room,
				"event", msg.Event,
			)
		}
	}
}

// RoomSize reports how many local clients are joined to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Serve joins conn to rooms and pumps messages until the connection closes.
func (h *Hub) Serve(conn *websocket.Conn, rooms []string) {
	c := &client{
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		rooms: rooms,
	}
	h.join(c)
	observability.RealtimeConnectionOpened()

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) join(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range c.rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*client]struct{})
			h.rooms[room] = members
		}
		members[c] = struct{}{}
	}
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range c.rooms {
		members := h.rooms[room]
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(c.send)
}

// readPump only services control frames; clients do not send application messages.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.leave(c)
		observability.RealtimeConnectionClosed()
		_ = c.conn.Close() //nolint:errcheck
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("realtime connection closed unexpectedly", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() //nolint:errcheck
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
