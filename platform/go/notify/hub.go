package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	platformlogging "github.com/harmony-hq/harmony/platform/go/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 64
)

// HubConfig configures the WebSocket hub.
type HubConfig struct {
	// AllowedOrigins restricts the Origin header on upgrade; empty allows any origin.
	AllowedOrigins []string
}

// Hub tracks WebSocket connections per company and broadcasts events to them.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

type client struct {
	company string
	conn    *websocket.Conn
	send    chan []byte
	once    sync.Once
}

// NewHub constructs a Hub. It is created once at process start and shared by handlers.
func NewHub(logger *zap.Logger, cfg HubConfig) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		logger:  logger.Named("notify_hub"),
		clients: make(map[string]map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// ServeWS upgrades an authenticated request and registers the connection under the
// caller's company. Credentials must already be on the request context.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok || creds == nil || creds.CompanyID == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		platformlogging.FromRequest(r, h.logger).Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{company: creds.CompanyID, conn: conn, send: make(chan []byte, clientSendSize)}
	h.register(c)

	go h.writePump(c)
	go h.readPump(c)
}

// Publish broadcasts event to every connection of event.Company. Slow clients drop messages.
func (h *Hub) Publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", event.Event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[event.Company] {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("client queue full, dropping event",
				zap.String("event", event.Event),
				zap.String("company_id", event.Company),
			)
		}
	}
}

// Connections reports how many clients are connected for company.
func (h *Hub) Connections(company string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[company])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.clients
	h.clients = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	for _, set := range all {
		for c := range set {
			c.close()
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.company]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.company] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if set, ok := h.clients[c.company]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.company)
		}
	}
	h.mu.Unlock()
	c.close()
}

// readPump only consumes control frames; clients do not send application messages.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(512)
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

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
