package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"solax-flow/internal/render"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	sendBacklog = 32
)

// Envelope is the only message shape pushed to browsers. The first message on
// a new connection is a "frame" carrying every slot; "patch" messages follow.
type Envelope struct {
	Type  string       `json:"type"`
	Patch render.Patch `json:"patch"`
}

// Hub is a render surface that streams patches to WebSocket clients.
type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader
	current  func() render.Patch

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub builds a hub. current supplies the full frame sent on connect; it is
// called with the hub locked and must not call back into the hub.
func NewHub(log zerolog.Logger, current func() render.Patch) *Hub {
	if current == nil {
		current = func() render.Patch { return render.Patch{} }
	}
	return &Hub{
		log: log.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		current: current,
		clients: make(map[*wsClient]struct{}),
	}
}

func (h *Hub) Name() string { return "websocket" }

// Apply queues patch for every client. A client whose backlog is full is
// disconnected rather than allowed to stall the projector.
func (h *Hub) Apply(_ context.Context, p render.Patch) error {
	msg, err := json.Marshal(Envelope{Type: "patch", Patch: p})
	if err != nil {
		return fmt.Errorf("failed to marshal patch: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("dropping slow client")
			h.removeLocked(c)
		}
	}
	return nil
}

// Clients reports the number of connected browsers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("upgrade failed")
		return
	}

	// The frame is taken with the client registered and h.mu held, so every
	// patch merged after it is queued behind it.
	c := &wsClient{conn: conn, send: make(chan []byte, sendBacklog)}
	h.mu.Lock()
	frame, err := json.Marshal(Envelope{Type: "frame", Patch: h.current()})
	if err != nil {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.send <- frame
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("client connected")

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *wsClient) {
	defer h.remove(c)

	c.conn.SetReadLimit(4096)
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

func (h *Hub) writePump(c *wsClient) {
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

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}
