package api

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-hub/internal/event"
)

// kindSet is a client's set of subscribed event kinds.
type kindSet struct {
	mu    sync.RWMutex
	kinds map[event.Kind]struct{}
}

func (s *kindSet) add(kinds []event.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kinds == nil {
		s.kinds = make(map[event.Kind]struct{}, len(kinds))
	}
	for _, k := range kinds {
		s.kinds[k] = struct{}{}
	}
}

func (s *kindSet) remove(kinds []event.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range kinds {
		delete(s.kinds, k)
	}
}

// matchesAny reports whether any kind of an event's lineage is subscribed.
func (s *kindSet) matchesAny(lineage []event.Kind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range lineage {
		if _, ok := s.kinds[k]; ok {
			return true
		}
	}
	return false
}

// WSClient is one connected event stream consumer.
type WSClient struct {
	hub   *Hub
	conn  *websocket.Conn
	kinds kindSet

	// queue is closed exactly once, by Hub.unregister. closed guards
	// enqueue against sending on the closed channel.
	qmu    sync.Mutex
	queue  chan []byte
	closed bool
}

func newWSClient(hub *Hub, conn *websocket.Conn) *WSClient {
	return &WSClient{
		hub:   hub,
		conn:  conn,
		queue: make(chan []byte, wsSendBufferSize),
	}
}

// enqueue queues data without blocking. It reports false when the client
// is gone or too slow.
func (c *WSClient) enqueue(data []byte) bool {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.queue <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) closeQueue() {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}

// keepalive returns the ping interval and how long a peer may stay silent.
func (c *WSClient) keepalive() (ping, idle time.Duration) {
	ping = time.Duration(c.hub.cfg.PingInterval) * time.Second
	return ping, ping + time.Duration(c.hub.cfg.PongTimeout)*time.Second
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	_, idle := c.keepalive()
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }

	c.conn.SetReadLimit(int64(c.hub.cfg.MaxMessageSize))
	_ = extend() //nolint:errcheck // a failed deadline surfaces on the next read
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Browsers do not always answer protocol pings; any frame counts.
		_ = extend() //nolint:errcheck // see above
		c.handleMessage(data)
	}
}

func (c *WSClient) writePump() {
	ping, _ := c.keepalive()
	writeWait := time.Duration(c.hub.cfg.PongTimeout) * time.Second
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(messageType int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write reports it
		return c.conn.WriteMessage(messageType, data)
	}

	for {
		select {
		case data, ok := <-c.queue:
			if !ok {
				_ = write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// inboundMessage defers decoding of the payload until the type is known.
type inboundMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

func (c *WSClient) handleMessage(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, errorBody("invalid JSON message"))
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		kinds, err := decodeKinds(msg.Payload)
		if err != nil {
			c.reply(msg.ID, WSTypeError, errorBody(err.Error()))
			return
		}
		if msg.Type == WSTypeSubscribe {
			c.kinds.add(kinds)
			c.hub.logger.Info("websocket client subscribed", "kinds", kinds)
			c.reply(msg.ID, WSTypeResponse, map[string]any{"subscribed": kinds})
		} else {
			c.kinds.remove(kinds)
			c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": kinds})
		}
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.reply(msg.ID, WSTypeError, errorBody("unknown message type: "+msg.Type))
	}
}

// decodeKinds resolves the kind names of a subscription payload against the
// catalog.
func decodeKinds(raw json.RawMessage) ([]event.Kind, error) {
	var p WSSubscribePayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errors.New("invalid subscription payload")
		}
	}
	if len(p.Kinds) == 0 {
		return nil, errors.New("kinds must not be empty")
	}
	kinds := make([]event.Kind, 0, len(p.Kinds))
	for _, name := range p.Kinds {
		k, err := event.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func errorBody(message string) map[string]string {
	return map[string]string{"message": message}
}

// reply queues a control frame for the client.
func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}
