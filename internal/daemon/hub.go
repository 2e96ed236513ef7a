package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/felixgeelhaar/workshop/internal/carousel"
	"github.com/felixgeelhaar/workshop/internal/engine"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Message types pushed to websocket clients.
const (
	MessageCarousel = "carousel"
	MessageWorkshop = "workshop"
	MessageError    = "error"
	MessagePong     = "pong"
)

// Client actions.
const (
	ActionInput = "input"
	ActionClick = "click"
	ActionPing  = "ping"
)

// Message is the envelope for every websocket frame sent to a client.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ClientMessage is a frame sent by the page.
type ClientMessage struct {
	Action     string          `json:"action"`
	Input      *carousel.Input `json:"input,omitempty"`
	Generation uint64          `json:"generation,omitempty"`
	Target     string          `json:"target,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The daemon binds to loopback; any local page may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans carousel and workshop changes out to connected pages and routes
// their input back into the engine.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
	engine  *engine.Engine
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues a message for every client. Clients whose buffer is full
// are disconnected.
func (h *Hub) Broadcast(typ string, data any) {
	payload, err := json.Marshal(Message{Type: typ, Data: data})
	if err != nil {
		slog.Error("failed to encode websocket message", "type", typ, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slog.Warn("dropping slow websocket client")
			h.removeLocked(c)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// ServeWS upgrades the request and streams state to the client. The first
// two frames carry the current carousel and workshop state.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	slog.Debug("websocket client connected", "correlation_id", GetCorrelationID(r.Context()))

	if h.engine != nil {
		c.queue(Message{Type: MessageCarousel, Data: h.engine.Carousel.State()})
		c.queue(Message{Type: MessageWorkshop, Data: h.engine.Controller.Snapshot()})
	}

	go c.writePump()
	c.readPump()
}

// queue sends a message to this client only.
func (c *wsClient) queue(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to encode websocket message", "type", msg.Type, "error", err)
		return
	}

	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.hub.removeLocked(c)
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket closed unexpectedly", "error", err)
			}
			return
		}
		c.handle(msg)
	}
}

// handle routes one client action. State changes reach the client through
// the broadcast hooks; only errors and pongs are answered directly.
func (c *wsClient) handle(msg ClientMessage) {
	eng := c.hub.engine
	var err error

	switch msg.Action {
	case ActionPing:
		c.queue(Message{Type: MessagePong})
		return
	case ActionInput:
		if msg.Input == nil || eng == nil {
			c.queue(errorMessage("input is required"))
			return
		}
		if !eng.Carousel.State().Active {
			err = carousel.ErrInactive
			break
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_, err = eng.Carousel.Handle(ctx, *msg.Input)
		cancel()
	case ActionClick:
		if eng == nil {
			return
		}
		err = eng.Controller.Screen().Click(msg.Generation, msg.Target)
	default:
		c.queue(errorMessage("unknown action: " + msg.Action))
		return
	}

	if err != nil {
		_, message := errorStatus(err)
		c.queue(Message{Type: MessageError, Data: map[string]string{
			"error":   message,
			"details": err.Error(),
		}})
	}
}

func errorMessage(message string) Message {
	return Message{Type: MessageError, Data: map[string]string{"error": message}}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
