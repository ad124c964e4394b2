package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
	"github.com/dreschagin/aip-monitor/pkg/logger"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(logger.NewNop())
	if err := hub.Initialize(context.Background(), entity.RecordFields); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(hub, conn, logger.NewNop()).Serve()
	}))

	t.Cleanup(func() {
		server.Close()
		_ = hub.Close(context.Background())
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubBroadcastsRecords(t *testing.T) {
	hub, server := startHub(t)
	first := dial(t, server)
	second := dial(t, server)
	waitForClients(t, hub, 2)

	records := []entity.Record{{UUID: "U-0", Temp: 41}, {UUID: "U-1", Temp: -1, Index: 1}}
	if err := hub.Write(context.Background(), records); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	for _, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if msg.Type != MessageTypeRecords || len(msg.Data) != 2 || msg.Data[0].Temp != 41 || msg.Data[1].Index != 1 {
			t.Errorf("unexpected message %+v", msg)
		}
	}
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server)
	waitForClients(t, hub, 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	waitForClients(t, hub, 0)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server)
	waitForClients(t, hub, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := hub.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected no clients after Close, got %d", hub.ClientCount())
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected going-away close, got %v", err)
	}

	// Write after Close must not block
	if err := hub.Write(context.Background(), []entity.Record{{UUID: "U-0"}}); err != nil {
		t.Errorf("Write() after Close error = %v", err)
	}
}

func TestHubWriteWithoutClients(t *testing.T) {
	hub, _ := startHub(t)
	for range 300 {
		if err := hub.Write(context.Background(), []entity.Record{{UUID: "U-0"}}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
}
