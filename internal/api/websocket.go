package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
)

// Message types of the event stream protocol.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// wsSendBufferSize is the per-client outbound queue length. Events for a
// client whose queue is full are dropped.
const wsSendBufferSize = 256

// WSMessage is one frame of the event stream, in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe frames.
// Subscribing to a kind also delivers all of its subtypes.
type WSSubscribePayload struct {
	Kinds []string `json:"kinds"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origins are checked by the CORS middleware.
		return true
	},
}

// Hub fans bus events out to connected WebSocket clients.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub creates a hub with no clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Attach subscribes the hub to both root kinds on bus, so every event
// published is broadcast exactly once.
func (h *Hub) Attach(ctx context.Context, bus EventBus) error {
	for _, root := range []event.Kind{event.KindDeviceEvent, event.KindSystemEvent} {
		if err := bus.Subscribe(ctx, root, func(_ context.Context, ev event.Event) error {
			h.Broadcast(ev)
			return nil
		}); err != nil {
			return fmt.Errorf("subscribing to %s: %w", root, err)
		}
	}
	return nil
}

// Broadcast queues ev for every client subscribed to its kind or to one of
// its ancestors.
func (h *Hub) Broadcast(ev event.Event) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: string(ev.Kind),
		Timestamp: ev.OccurredAt.UTC().Format(time.RFC3339),
		Payload:   ev,
	})
	if err != nil {
		h.logger.Error("encoding websocket event", "kind", ev.Kind, "error", err)
		return
	}

	lineage := ev.Kinds()
	recipients := 0
	for _, c := range h.snapshot() {
		if !c.kinds.matchesAny(lineage) {
			continue
		}
		recipients++
		if c.enqueue(data) {
			h.delivered.Add(1)
		} else {
			h.dropped.Add(1)
		}
	}
	if recipients > 0 {
		h.logger.Debug("event broadcast", "kind", ev.Kind, "recipients", recipients)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Counters returns the number of queued and dropped event frames.
func (h *Hub) Counters() (delivered, dropped uint64) {
	return h.delivered.Load(), h.dropped.Load()
}

// snapshot copies the client set so broadcasts never hold the hub lock
// while taking a client lock.
func (h *Hub) snapshot() []*WSClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

func (h *Hub) register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// unregister removes c. Only the caller that actually removed the client
// closes its queue, so shutdown and a failing read pump never both close it.
func (h *Hub) unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.closeQueue()
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

func (h *Hub) closeAll() {
	for _, c := range h.snapshot() {
		h.unregister(c)
		c.conn.Close()
	}
}

// handleWebSocket upgrades the request and starts the client's pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newWSClient(s.hub, conn)
	s.hub.register(c)

	go c.writePump()
	go c.readPump()
}
