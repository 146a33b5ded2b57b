// Package notify pushes NPO lifecycle events to connected browsers over
// websockets and to creators by email.
package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	EventConnected    = "connection"
	EventPong         = "pong"
	EventNPOSubmitted = "npo.submitted"
	EventNPOApproved  = "npo.approved"
	EventNPORejected  = "npo.rejected"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	sendBuffer   = 16
	maxReadBytes = 4096
)

// Event is the JSON frame written to websocket clients.
type Event struct {
	Type      string      `json:"type"`
	Title     string      `json:"title,omitempty"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type client struct {
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan Event
}

// Hub tracks websocket connections per user. A user may hold several
// connections at once (one per open tab).
type Hub struct {
	clients    map[uuid.UUID]map[*client]struct{}
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
	register   chan *client
	unregister chan *client
	logger     *zap.Logger
}

func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	h := &Hub{
		clients:    make(map[uuid.UUID]map[*client]struct{}),
		register:   make(chan *client, 100),
		unregister: make(chan *client, 100),
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowed[origin]; ok {
				return true
			}
			h.logger.Warn("websocket connection rejected", zap.String("origin", origin))
			return false
		},
	}
	return h
}

// Run processes registrations until ctx is cancelled, then closes every
// open connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.registerClient(c)
		case c := <-h.unregister:
			h.unregisterClient(c)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *Hub) registerClient(c *client) {
	h.mutex.Lock()
	conns, ok := h.clients[c.userID]
	if !ok {
		conns = make(map[*client]struct{})
		h.clients[c.userID] = conns
	}
	conns[c] = struct{}{}
	total := h.countLocked()
	h.mutex.Unlock()

	h.logger.Debug("websocket client connected",
		zap.String("user_id", c.userID.String()),
		zap.Int("total", total),
	)

	c.send <- Event{
		Type:      EventConnected,
		Message:   "Соединение установлено",
		Timestamp: time.Now().UTC(),
	}
}

func (h *Hub) unregisterClient(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	conns, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)

	h.logger.Debug("websocket client disconnected",
		zap.String("user_id", c.userID.String()),
		zap.Int("total", h.countLocked()),
	)
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for userID, conns := range h.clients {
		for c := range conns {
			close(c.send)
		}
		delete(h.clients, userID)
	}
}

// SendToUser queues event for every connection of userID. It reports
// whether at least one connection accepted it. Slow clients drop events.
func (h *Hub) SendToUser(userID uuid.UUID, event Event) bool {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	delivered := false
	for c := range h.clients[userID] {
		select {
		case c.send <- event:
			delivered = true
		default:
			h.logger.Warn("websocket send queue full, dropping event",
				zap.String("user_id", userID.String()),
				zap.String("type", event.Type),
			)
		}
	}
	return delivered
}

// SendToUsers fans event out to each id and returns how many users received it.
func (h *Hub) SendToUsers(userIDs []uuid.UUID, event Event) int {
	sent := 0
	for _, id := range userIDs {
		if h.SendToUser(id, event) {
			sent++
		}
	}
	return sent
}

// IsConnected reports whether userID has at least one open connection.
func (h *Hub) IsConnected(userID uuid.UUID) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients[userID]) > 0
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.countLocked()
}

func (h *Hub) countLocked() int {
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

// Serve upgrades the request and blocks until the connection closes.
// The caller must have authenticated userID already.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{userID: userID, conn: conn, send: make(chan Event, sendBuffer)}
	h.register <- c

	go h.writePump(c)
	h.readPump(c)
	return nil
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var message map[string]interface{}
		if err := c.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read failed",
					zap.String("user_id", c.userID.String()),
					zap.Error(err),
				)
			}
			return
		}

		if msgType, _ := message["type"].(string); msgType == "ping" {
			h.reply(c, Event{Type: EventPong, Message: "pong", Timestamp: time.Now().UTC()})
		}
	}
}

// reply queues event for c alone. The registration check under the read lock
// guarantees c.send has not been closed yet.
func (h *Hub) reply(c *client, event Event) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, ok := h.clients[c.userID][c]; !ok {
		return
	}
	select {
	case c.send <- event:
	default:
		h.logger.Warn("websocket send queue full, dropping reply",
			zap.String("user_id", c.userID.String()),
			zap.String("type", event.Type),
		)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
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
