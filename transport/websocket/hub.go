package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/kiosk-shell/kiosk/events"
	"github.com/wricardo/kiosk-shell/monitoring"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Events buffered between Emit and the hub loop.
	broadcastBuffer = 256

	// Events buffered per client.
	clientBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The presentation layer is served from a local file origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Inbound is a message sent by a client.
type Inbound struct {
	Type string `json:"type"`
	Kind string `json:"kind,omitempty"`
}

// ActivityFunc receives activity signals sent over the socket.
type ActivityFunc func(kind string) error

// Client represents a WebSocket client
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	// view restricts delivery to one view's events; empty receives all
	view string
}

// wants reports whether the client subscribed to e.
func (c *Client) wants(e events.Event) bool {
	return c.view == "" || e.ViewID == "" || e.ViewID == c.view
}

// Hub fans kiosk events out to every connected client. It implements
// events.Emitter; Emit never blocks and drops events when the hub is behind.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	broadcast  chan events.Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	activity ActivityFunc
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(metrics *monitoring.Metrics, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan events.Event, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		metrics:    metrics,
		log:        log.Named("websocket"),
	}
}

// OnActivity installs the handler for inbound activity messages.
func (h *Hub) OnActivity(fn ActivityFunc) {
	h.mu.Lock()
	h.activity = fn
	h.mu.Unlock()
}

// Run starts the hub's event loop and blocks until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case e := <-h.broadcast:
			h.broadcastEvent(e)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Emit implements events.Emitter.
func (h *Hub) Emit(e events.Event) {
	select {
	case h.broadcast <- e:
	default:
		h.metrics.IncWSDropped()
		h.log.Warn("event dropped, hub is behind",
			zap.String("event", string(e.Type)),
			zap.String("view", e.ViewID))
	}
}

// ServeWS handles WebSocket requests from clients. The optional ?view=
// query parameter limits delivery to one view plus global events.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientBuffer),
		view: r.URL.Query().Get("view"),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.IncWSConnections()
	h.log.Debug("client registered", zap.String("view", client.view), zap.Int("clients", total))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	removed := h.removeLocked(client)
	total := len(h.clients)
	h.mu.Unlock()

	if removed {
		h.log.Debug("client unregistered", zap.String("view", client.view), zap.Int("clients", total))
	}
}

func (h *Hub) removeLocked(client *Client) bool {
	if !h.clients[client] {
		return false
	}
	delete(h.clients, client)
	close(client.send)
	h.metrics.DecWSConnections()
	return true
}

func (h *Hub) broadcastEvent(e events.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.log.Error("failed to marshal event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.wants(e) {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Client's send channel is full, drop it
			h.metrics.IncWSDropped()
			h.removeLocked(client)
		}
	}
}

func (h *Hub) handleInbound(data []byte) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		h.log.Debug("ignoring malformed message", zap.Error(err))
		return
	}
	if msg.Type != "activity" {
		return
	}

	h.mu.RLock()
	fn := h.activity
	h.mu.RUnlock()
	if fn == nil {
		return
	}
	if err := fn(msg.Kind); err != nil {
		h.log.Debug("activity rejected", zap.String("kind", msg.Kind), zap.Error(err))
	}
}

// readPump pumps messages from the WebSocket connection to the hub
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
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket read error", zap.Error(err))
			}
			break
		}
		c.hub.handleInbound(data)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
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
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
