package notifier

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hiroki-koketsu/go-reminder/internal/model"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) model.NotificationEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev model.NotificationEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	return ev
}

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != want {
		if time.Now().After(deadline) {
			t.Fatalf("want %d clients, have %d", want, h.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(discardLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	first := dialHub(t, srv)
	second := dialHub(t, srv)

	for _, conn := range []*websocket.Conn{first, second} {
		if ev := readEvent(t, conn); ev.Type != model.EventWelcome {
			t.Fatalf("want welcome, got %+v", ev)
		}
	}
	waitForClients(t, hub, 2)

	note := model.Notification{ID: "n-1", Title: model.NotificationTitle("Call mom"), Label: "Call mom"}
	if err := hub.Deliver(context.Background(), note); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	for _, conn := range []*websocket.Conn{first, second} {
		ev := readEvent(t, conn)
		if ev.Type != model.EventReminder || ev.Notification == nil || ev.Notification.ID != "n-1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
}

func TestHubWithoutClients(t *testing.T) {
	hub := NewHub(discardLogger())
	if err := hub.Deliver(context.Background(), model.Notification{ID: "x"}); err != nil {
		t.Fatalf("deliver with no clients: %v", err)
	}
}

func TestHubForgetsClosedClients(t *testing.T) {
	hub := NewHub(discardLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv)
	readEvent(t, conn)
	waitForClients(t, hub, 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(discardLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv)
	readEvent(t, conn)
	waitForClients(t, hub, 1)

	hub.Close()
	waitForClients(t, hub, 0)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("want normal close, got %v", err)
	}
}
