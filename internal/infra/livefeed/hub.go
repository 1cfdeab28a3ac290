// Package livefeed fans watcher events out to websocket subscribers.
package livefeed

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bryanwahyu/testcompanion/internal/domain/watch"
)

const (
	EventConnected = "connection_established"
	EventHeartbeat = "heartbeat"
	EventPong      = "pong"

	sendBuffer = 32
	writeWait  = 10 * time.Second
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub keeps the connected subscribers. Clients that cannot keep up with the
// broadcast rate are disconnected.
type Hub struct {
	heartbeat time.Duration
	log       *zap.Logger
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

var _ watch.Broadcaster = (*Hub)(nil)

func NewHub(heartbeat time.Duration, log *zap.Logger) *Hub {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		heartbeat: heartbeat,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// origin policy is enforced by the CORS layer
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: map[*client]struct{}{},
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues e for every subscriber without blocking.
func (h *Hub) Broadcast(e watch.Event) {
	msg, err := encode(e)
	if err != nil {
		h.log.Warn("encode live event failed", zap.String("type", e.Type), zap.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow live-feed client", zap.String("remote", c.conn.RemoteAddr().String()))
		h.unregister(c)
	}
}

// ServeHTTP upgrades the request and serves the subscriber until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	if welcome, err := encode(watch.Event{
		Type:      EventConnected,
		Data:      map[string]string{"message": "Connected to live feed"},
		Timestamp: time.Now().UTC(),
	}); err == nil {
		c.send <- welcome
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer h.unregister(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if !isPing(data) {
			continue
		}
		pong, _ := encode(watch.Event{Type: EventPong, Timestamp: time.Now().UTC()})
		h.trySend(c, pong)
	}
}

// trySend queues msg for c without blocking. It holds the read lock so that
// unregister cannot close c.send in between; an unregistered client gets nothing.
func (h *Hub) trySend(c *client, msg []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.heartbeat)
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
			beat, _ := encode(watch.Event{Type: EventHeartbeat, Timestamp: time.Now().UTC()})
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, beat); err != nil {
				return
			}
		}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func encode(e watch.Event) ([]byte, error) {
	return json.Marshal(e)
}

// isPing accepts a bare "ping" or {"type":"ping"}.
func isPing(data []byte) bool {
	s := strings.TrimSpace(string(data))
	if strings.EqualFold(s, "ping") {
		return true
	}
	var msg struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(data, &msg) == nil && msg.Type == "ping"
}
