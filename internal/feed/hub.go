// Package feed serves live snapshots over a websocket. The hub is an
// engine renderer: every applied change is pushed to connected clients.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rileyhilliard/netpilot/internal/logger"
	"github.com/rileyhilliard/netpilot/internal/state"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Message is what clients receive. Type names the section that changed, or
// "snapshot" for the initial state sent on connect.
type Message struct {
	Type     string          `json:"type"`
	Version  uint64          `json:"version"`
	Snapshot *state.Snapshot `json:"snapshot"`
}

// Source returns the current snapshot.
type Source func() *state.Snapshot

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks websocket clients and broadcasts to them.
type Hub struct {
	source   Source
	log      logger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub reading the current snapshot from source.
func NewHub(source Source, log logger.Logger) *Hub {
	if log == nil {
		log = logger.Noop()
	}
	return &Hub{
		source: source,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 8192,
		},
		clients: make(map[*client]struct{}),
	}
}

// Handler routes /ws, /snapshot and /healthz.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/snapshot", h.ServeSnapshot)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// ServeSnapshot writes the current snapshot as JSON.
func (h *Hub) ServeSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.source()); err != nil {
		h.log.Warn("snapshot response failed: %v", err)
	}
}

// ServeWS upgrades the connection and registers the client. The current
// snapshot is sent first.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if data, err := encode("snapshot", h.source()); err == nil {
		c.send <- data
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("feed client %s connected (%d total)", r.RemoteAddr, n)

	go h.writePump(c)
	h.readPump(c)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// RenderAdapters broadcasts an adapters change.
func (h *Hub) RenderAdapters(snap *state.Snapshot) { h.broadcast("adapters", snap) }

// RenderConnections broadcasts a connections change.
func (h *Hub) RenderConnections(snap *state.Snapshot) { h.broadcast("connections", snap) }

// RenderDiagnostics broadcasts a diagnostics change.
func (h *Hub) RenderDiagnostics(snap *state.Snapshot) { h.broadcast("diagnostics", snap) }

// RenderStatistics broadcasts a statistics change.
func (h *Hub) RenderStatistics(snap *state.Snapshot) { h.broadcast("statistics", snap) }

// RenderStatus broadcasts a status line change.
func (h *Hub) RenderStatus(snap *state.Snapshot) { h.broadcast("status", snap) }

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) broadcast(kind string, snap *state.Snapshot) {
	data, err := encode(kind, snap)
	if err != nil {
		h.log.Error("encode %s message: %v", kind, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// A client that can't keep up is dropped rather than stalling the consumer.
			h.log.Warn("feed client %s too slow, disconnecting", c.conn.RemoteAddr())
			close(c.send)
			delete(h.clients, c)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

// readPump discards client messages and notices disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
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
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

func encode(kind string, snap *state.Snapshot) ([]byte, error) {
	msg := Message{Type: kind, Snapshot: snap}
	if snap != nil {
		msg.Version = snap.Version
	}
	return json.Marshal(msg)
}
