// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package websocket

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types.
const (
	MessageTypeSyncStatus = "sync_status"
	MessageTypePing       = "ping"
	MessageTypePong       = "pong"
)

// Message is the frame sent to clients.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SnapshotFunc returns the payload sent to a client right after it connects,
// or nil to send nothing.
type SnapshotFunc func() []byte

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	upgrader websocket.Upgrader
	snapshot SnapshotFunc

	// done is closed once the hub stops so pumps never block on it.
	done     chan struct{}
	stopOnce sync.Once
}

// HubOptions configure a Hub.
type HubOptions struct {
	// AllowedOrigins for the upgrade handshake. Empty allows same-origin
	// requests only; "*" allows any origin.
	AllowedOrigins []string

	// Snapshot seeds new clients with the current status.
	Snapshot SnapshotFunc
}

// NewHub creates a Hub. Call RunWithContext to start it.
func NewHub(opts HubOptions) *Hub {
	h := &Hub{
		broadcast:  make(chan []byte, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		snapshot:   opts.Snapshot,
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil // gorilla default: same origin only
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// RunWithContext processes registrations and broadcasts until ctx is
// canceled, then closes every client. Lifecycle events are handled before
// broadcasts so a client registered earlier never misses a later message.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case payload := <-h.broadcast:
			h.broadcastToClients(payload)
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Int("total_clients", n).Msg("websocket client connected")

	if h.snapshot == nil {
		return
	}
	if data := h.snapshot(); data != nil {
		select {
		case c.send <- frame(MessageTypeSyncStatus, data):
		default:
		}
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Int("total_clients", n).Msg("websocket client disconnected")
}

func (h *Hub) shutdown(ctx context.Context) {
	h.stopOnce.Do(func() { close(h.done) })
	count := h.GetClientCount()
	h.closeAllClients()

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", count).
		Msg("websocket hub stopped")
}

// sortedClients returns clients in connection order. Callers hold h.mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

// broadcastToClients sends payload to every client in connection order and
// drops clients whose buffers are full.
func (h *Hub) broadcastToClients(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.sortedClients() {
		select {
		case c.send <- payload:
		default:
			close(c.send)
			delete(h.clients, c)
			logging.Warn().Uint64("client_id", c.id).Msg("websocket client too slow; dropped")
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.sortedClients() {
		close(c.send)
		delete(h.clients, c)
	}
	metrics.WSConnections.Set(0)
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastRaw sends an encoded status event to every client, wrapped in a
// sync_status frame. It never blocks; a full queue drops the event.
func (h *Hub) BroadcastRaw(data []byte) {
	if !json.Valid(data) {
		logging.Warn().Msg("dropping invalid JSON broadcast")
		return
	}
	select {
	case h.broadcast <- frame(MessageTypeSyncStatus, data):
	default:
		logging.Warn().Msg("broadcast channel full, dropping message")
	}
}

// ServeWS upgrades the request and attaches a new client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := NewClient(h, conn)
	select {
	case h.Register <- c:
		c.Start()
	case <-h.done:
		_ = conn.Close()
	}
}

// leave unregisters c unless the hub has already stopped.
func (h *Hub) leave(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// frame encodes a Message. Data is already JSON.
func frame(msgType string, data []byte) []byte {
	out, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		logging.Warn().Err(err).Str("type", msgType).Msg("failed to encode websocket frame")
		return nil
	}
	return out
}
