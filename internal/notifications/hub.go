package notifications

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hanko-field/commerce/internal/platform/auth"
	"github.com/hanko-field/commerce/internal/platform/httpx"
)

const (
	defaultSendBuffer = 32
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = pongWait * 9 / 10
	maxMessageSize    = 4096
)

// Hub fans events out to connected websocket clients. Operators receive every event; customers
// only receive events addressed to them. Delivery is best-effort: a client whose buffer is full
// is disconnected instead of slowing the producer down.
type Hub struct {
	upgrader   websocket.Upgrader
	bufferSize int
	logger     *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// HubOption customises the Hub.
type HubOption func(*Hub)

// WithSendBuffer sets the per-client queue length.
func WithSendBuffer(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

// WithHubLogger sets the logger used for connection lifecycle events.
func WithHubLogger(logger *zap.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithAllowedOrigins accepts cross-origin upgrades from the listed origins. Without it only
// same-origin upgrades are accepted.
func WithAllowedOrigins(origins ...string) HubOption {
	allowed := make([]string, 0, len(origins))
	for _, origin := range origins {
		if trimmed := strings.TrimRight(strings.TrimSpace(origin), "/"); trimmed != "" {
			allowed = append(allowed, strings.ToLower(trimmed))
		}
	}
	return func(h *Hub) {
		if len(allowed) == 0 {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			parsed, err := url.Parse(origin)
			if err != nil {
				return false
			}
			if strings.EqualFold(parsed.Host, r.Host) {
				return true
			}
			return slices.Contains(allowed, strings.ToLower(strings.TrimRight(origin, "/")))
		}
	}
}

// NewHub constructs an empty hub.
func NewHub(opts ...HubOption) *Hub {
	hub := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		bufferSize: defaultSendBuffer,
		logger:     zap.NewNop(),
		clients:    make(map[*client]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(hub)
		}
	}
	return hub
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	admin  bool
}

func (c *client) wants(env Envelope) bool {
	return c.admin || (env.UserID != "" && env.UserID == c.userID)
}

// ServeWS upgrades an authenticated request into a notification stream.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity == nil || identity.UID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("notifications.upgrade.failed", zap.Error(err))
		return
	}
	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.bufferSize),
		userID: identity.UID,
		admin:  identity.IsOperator(),
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	h.logger.Debug("notifications.client.connected", zap.String("uid", c.userID), zap.Bool("admin", c.admin))
	go c.writePump()
	go c.readPump()
}

// Broadcast queues env for every interested client and returns how many clients received it.
func (h *Hub) Broadcast(env Envelope) (int, error) {
	if !IsKnownEvent(env.Event) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("notifications: encode %s: %w", env.Event, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for c := range h.clients {
		if !c.wants(env) {
			continue
		}
		select {
		case c.send <- payload:
			delivered++
		default:
			h.dropLocked(c)
			h.logger.Warn("notifications.client.dropped", zap.String("uid", c.userID), zap.String("event", env.Event))
		}
	}
	return delivered, nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// dropLocked removes c and closes its queue; the write pump then closes the connection.
func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames; it exists to process control frames and detect disconnects.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
