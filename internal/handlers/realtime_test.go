package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/realtime"
	"github.com/shopmate/shopmate/internal/services"
)

func TestRoomsFor(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	shopperID := uuid.New()

	tests := []struct {
		name   string
		actor  services.Actor
		online bool
		want   []string
	}{
		{name: "customer", actor: services.CustomerActor{ID: customerID}, want: []string{realtime.CustomerRoom(customerID)}},
		{name: "online shopper", actor: services.ShopperActor{ID: shopperID}, online: true, want: []string{realtime.ShopperRoom(shopperID), realtime.PersonalShoppersRoom}},
		{name: "offline shopper", actor: services.ShopperActor{ID: shopperID}, want: []string{realtime.ShopperRoom(shopperID)}},
		{name: "admin", actor: services.SystemActor{Subject: "ops"}, want: []string{realtime.PersonalShoppersRoom}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if diff := cmp.Diff(tc.want, roomsFor(tc.actor, tc.online)); diff != "" {
				t.Fatalf("rooms mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRealtimeJoinsCallerRooms(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	t.Cleanup(server.Close)

	shopperID := uuid.New()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?access_token=" + env.token(t, models.RoleShopper, shopperID.String())

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	select {
	case rooms := <-env.sockets.rooms:
		want := []string{realtime.ShopperRoom(shopperID), realtime.PersonalShoppersRoom}
		if diff := cmp.Diff(want, rooms); diff != "" {
			t.Fatalf("rooms mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the socket to join rooms")
	}
}

func TestRealtimeKeepsOfflineShoppersOffBroadcasts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		online    bool
		onlineErr error
	}{
		{name: "offline", online: false},
		{name: "lookup fails", online: true, onlineErr: errors.New("db down")},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.shoppers.online = tc.online
			env.shoppers.onlineErr = tc.onlineErr
			server := httptest.NewServer(env.router)
			t.Cleanup(server.Close)

			shopperID := uuid.New()
			wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?access_token=" + env.token(t, models.RoleShopper, shopperID.String())
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				t.Fatalf("Dial() error = %v", err)
			}
			t.Cleanup(func() { _ = conn.Close() })

			select {
			case rooms := <-env.sockets.rooms:
				if diff := cmp.Diff([]string{realtime.ShopperRoom(shopperID)}, rooms); diff != "" {
					t.Fatalf("rooms mismatch (-want +got):\n%s", diff)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for the socket to join rooms")
			}
		})
	}
}

func TestRealtimeRejectsForeignOrigin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?access_token=" + env.token(t, models.RoleCustomer, uuid.NewString())
	header := http.Header{"Origin": []string{"https://evil.example"}}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		_ = conn.Close()
		t.Fatal("expected the upgrade to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}
}

func TestRealtimeRequiresToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	t.Cleanup(server.Close)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	if err == nil {
		t.Fatal("expected dial to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}
