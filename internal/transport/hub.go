// internal/transport/hub.go
//
// WebSocket hub: the publish/subscribe connection layer the protocol
// engine drives. Maintains active connections and named broadcast
// groups ("rooms"); a message emitted to a group reaches every current
// subscriber. The hub knows nothing about game semantics — it moves
// JSON envelopes `{"event": ..., "data": ...}` between connections and
// the handler it was given.

package transport

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Handler receives decoded inbound events and connection lifecycle.
// The protocol engine satisfies this.
type Handler interface {
	Dispatch(connID, event string, data json.RawMessage)
	Disconnect(connID string)
}

// envelope is the wire frame in both directions.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// inboundEnvelope defers payload decoding to the handler.
type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub tracks connections and their group subscriptions.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*client             // keyed by connection id
	groups map[string]map[string]struct{} // group -> conn ids
	log    zerolog.Logger
}

// NewHub constructs an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]*client),
		groups: make(map[string]map[string]struct{}),
		log:    log,
	}
}

// upgrader allows any origin; the broker fronts browser clients from a
// separately served UI during development.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handle returns the HTTP handler that upgrades a connection and runs
// its read loop against the given event handler.
func (h *Hub) Handle(handler Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		c := newClient(uuid.New().String(), conn)

		h.mu.Lock()
		h.conns[c.id] = c
		h.mu.Unlock()

		h.log.Info().Str("conn", c.id).Msg("connection opened")
		go c.writePump(h.log)
		go c.readPump(h, handler)
	}
}

// drop removes a connection from the conns map and every group. It runs
// before the handler's Disconnect so cleanup broadcasts exclude the
// leaver.
func (h *Hub) drop(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	delete(h.conns, connID)
	for group, members := range h.groups {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	c.close()
}

// JoinGroup subscribes a connection to a broadcast group.
func (h *Hub) JoinGroup(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[connID]; !ok {
		return
	}
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]struct{})
	}
	h.groups[group][connID] = struct{}{}
}

// LeaveGroup unsubscribes a connection from a group.
func (h *Hub) LeaveGroup(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// EmitTo sends one event to a single connection.
func (h *Hub) EmitTo(connID, event string, payload any) {
	frame, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("marshal outbound frame")
		return
	}
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	c.enqueue(frame, h.log)
}

// EmitToGroup sends one event to every subscriber of a group. A slow
// connection gets the frame dropped rather than blocking the rest.
func (h *Hub) EmitToGroup(group, event string, payload any) {
	frame, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("marshal outbound frame")
		return
	}
	h.mu.RLock()
	var targets []*client
	for id := range h.groups[group] {
		if c, ok := h.conns[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(frame, h.log)
	}
}
