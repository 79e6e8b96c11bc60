package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sameerkhansf/vapi-takehome/domain/entities"
)

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	logger := zap.NewNop()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logger)
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/api/realtime", func(c echo.Context) error {
		return HandleWebSocket(hub, c, logger)
	})
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, clientID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/realtime?client_id=" + clientID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, clientID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ActiveClients(clientID) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Expected %d clients for %s, got %d", want, clientID, hub.ActiveClients(clientID))
}

func readTranscript(t *testing.T, conn *websocket.Conn) TranscriptMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg TranscriptMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to decode message: %v", err)
	}
	return msg
}

func TestHandleWebSocket_RequiresClientID(t *testing.T) {
	_, server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/realtime")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

func TestHub_PublishTranscriptReachesEverySocketOfClient(t *testing.T) {
	hub, server := newTestServer(t)

	first := dial(t, server, "client-a")
	second := dial(t, server, "client-a")
	other := dial(t, server, "client-b")
	waitForClients(t, hub, "client-a", 2)
	waitForClients(t, hub, "client-b", 1)

	hub.PublishTranscript("client-a", entities.MessageRoleUser, "hello there")

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readTranscript(t, conn)
		if msg.Type != MessageTypeTranscript {
			t.Errorf("Expected type transcript, got %s", msg.Type)
		}
		if msg.Role != entities.MessageRoleUser || msg.Transcript != "hello there" {
			t.Errorf("Unexpected message %+v", msg)
		}
		if msg.TranscriptType != TranscriptFinal {
			t.Errorf("Expected final transcript, got %s", msg.TranscriptType)
		}
		if msg.MessageID == "" {
			t.Error("Expected message id to be set")
		}
	}

	other.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("Expected no message for a different client id")
	}
}

func TestHub_PublishWithoutListenersIsNoop(t *testing.T) {
	hub, _ := newTestServer(t)

	// Must not block or panic.
	hub.PublishTranscript("nobody", entities.MessageRoleAssistant, "hi")

	if n := hub.ActiveClients("nobody"); n != 0 {
		t.Errorf("Expected 0 clients, got %d", n)
	}
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, server := newTestServer(t)

	conn := dial(t, server, "client-a")
	waitForClients(t, hub, "client-a", 1)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	waitForClients(t, hub, "client-a", 0)
}

func TestClient_AnswersPing(t *testing.T) {
	hub, server := newTestServer(t)

	conn := dial(t, server, "client-a")
	waitForClients(t, hub, "client-a", 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","timestamp":"2024-01-01T00:00:00Z","data":"x"}`)); err != nil {
		t.Fatalf("Failed to send ping: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read pong: %v", err)
	}
	var pong PongMessage
	if err := json.Unmarshal(data, &pong); err != nil {
		t.Fatalf("Failed to decode pong: %v", err)
	}
	if pong.Type != MessageTypePong || pong.Data != "x" {
		t.Errorf("Unexpected pong %+v", pong)
	}
}

func TestClient_ReportsInvalidMessage(t *testing.T) {
	hub, server := newTestServer(t)

	conn := dial(t, server, "client-a")
	waitForClients(t, hub, "client-a", 1)

	conn.WriteMessage(websocket.TextMessage, []byte(`not json`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read error message: %v", err)
	}
	var msg ErrorMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to decode error: %v", err)
	}
	if msg.Type != MessageTypeError || msg.Code != "invalid_message" {
		t.Errorf("Unexpected error message %+v", msg)
	}
}

func TestHub_RunStopsOnContextCancel(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Expected Run to return after cancel")
	}
}

func TestHub_RepliesAfterShutdownAreDropped(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := &Client{hub: hub, send: make(chan WriteData, sendBuffer), clientID: "client-a", logger: zap.NewNop()}
	hub.register <- client
	waitForClients(t, hub, "client-a", 1)

	cancel()
	<-stopped

	// A ping read just before shutdown is answered after send was closed.
	client.processMessage([]byte(`{"type":"ping","timestamp":"2024-01-01T00:00:00Z","data":"x"}`))
	client.processMessage([]byte(`not json`))
	hub.PublishTranscript("client-a", entities.MessageRoleUser, "late")

	if client.enqueue(WriteData{Type: websocket.TextMessage, Payload: []byte("{}")}) {
		t.Error("Expected enqueue on a closed client to fail")
	}
	if _, ok := <-client.send; ok {
		t.Error("Expected send to be closed and empty")
	}
}

func TestHub_ShutdownWhilePinging(t *testing.T) {
	logger := zap.NewNop()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logger)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	e := echo.New()
	e.GET("/api/realtime", func(c echo.Context) error {
		return HandleWebSocket(hub, c, logger)
	})
	server := httptest.NewServer(e)
	defer server.Close()

	conn := dial(t, server, "client-a")
	waitForClients(t, hub, "client-a", 1)

	ping := []byte(`{"type":"ping","timestamp":"2024-01-01T00:00:00Z","data":"x"}`)
	pinging := make(chan struct{})
	go func() {
		defer close(pinging)
		for i := 0; i < 200; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return
			}
		}
	}()

	cancel()
	<-stopped
	<-pinging

	// The server side closes the socket once send is closed.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
