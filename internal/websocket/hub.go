package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sameerkhansf/vapi-takehome/domain/entities"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024

	// Outbound messages buffered per socket before new ones are dropped.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the realtime sockets per client id and fans transcript
// messages out to them.
type Hub struct {
	// Registered sockets, keyed by client id.
	clients map[string]map[*Client]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	// Closed when Run returns.
	done chan struct{}

	now    func() time.Time
	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		now:        time.Now,
		logger:     logger,
	}
}

// Run starts the hub's main loop and returns when ctx is done, closing every
// registered socket.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			sockets, ok := h.clients[client.clientID]
			if !ok {
				sockets = make(map[*Client]struct{})
				h.clients[client.clientID] = sockets
			}
			sockets[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.clientID))

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Info("Client unregistered", zap.String("clientID", client.clientID))

		case <-ctx.Done():
			h.mu.Lock()
			for id, sockets := range h.clients {
				for client := range sockets {
					client.closeSend()
				}
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sockets, ok := h.clients[client.clientID]
	if !ok {
		return
	}
	if _, ok := sockets[client]; ok {
		delete(sockets, client)
		client.closeSend()
	}
	if len(sockets) == 0 {
		delete(h.clients, client.clientID)
	}
}

// PublishTranscript sends a final transcript to every socket of clientID.
// Slow sockets drop the message instead of blocking the caller.
func (h *Hub) PublishTranscript(clientID string, role entities.MessageRole, text string) {
	msg := NewTranscriptMessage(role, text, h.now())
	msg.MessageID = uuid.NewString()
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal transcript message", zap.Error(err))
		return
	}
	h.sendToClient(clientID, WriteData{Type: websocket.TextMessage, Payload: payload})
}

func (h *Hub) sendToClient(clientID string, data WriteData) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.clients[clientID] {
		if client.enqueue(data) {
			delivered++
			continue
		}
		h.logger.Warn("Dropping realtime message for slow client", zap.String("clientID", clientID))
	}
	return delivered
}

// ActiveClients returns the number of sockets registered for clientID.
func (h *Hub) ActiveClients(clientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[clientID])
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Guards send against use after it was closed.
	sendMu sync.Mutex
	closed bool

	// Client ID this socket listens for
	clientID string

	// Logger
	logger *zap.Logger
}

// HandleWebSocket handles websocket requests from the peer.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	clientID := c.QueryParam("client_id")
	if clientID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "client_id is required"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, sendBuffer),
		clientID: clientID,
		logger:   logger.With(zap.String("clientID", clientID)),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump keeps the read deadline fresh and answers ping messages. The feed
// is server to client only, so other payloads are ignored.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if messageType == websocket.TextMessage {
			c.processMessage(message)
		}
	}
}

// processMessage answers pings and reports anything it cannot parse.
func (c *Client) processMessage(message []byte) {
	parsed, err := ParseMessage(message)
	if err != nil {
		c.reply(ErrorMessage{
			BaseMessage: BaseMessage{Type: MessageTypeError, Timestamp: time.Now().Format(time.RFC3339)},
			Code:        "invalid_message",
			Message:     err.Error(),
		})
		return
	}

	if ping, ok := parsed.(*PingMessage); ok {
		c.reply(PongMessage{
			BaseMessage: BaseMessage{Type: MessageTypePong, Timestamp: time.Now().Format(time.RFC3339)},
			Data:        ping.Data,
		})
	}
}

func (c *Client) reply(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal reply", zap.Error(err))
		return
	}
	if !c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload}) {
		c.logger.Warn("Dropping reply for slow or closed client")
	}
}

// enqueue queues data without blocking. It reports false when the buffer is
// full or the hub has already closed send.
func (c *Client) enqueue(data WriteData) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes send once; writePump then sends a close frame and exits.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
