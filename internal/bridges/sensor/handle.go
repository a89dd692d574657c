package sensor

import (
	"bytes"
	"context"
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/event"
)

// Handle is a live sensor consuming messages from its state topic.
//
// Payloads on the device topic are JSON objects of readings, e.g.
// {"temperature": 21.5, "battery": 87}. A message on a sub-topic
// (graylogic/state/temperature/therm-1/battery) carries a single bare value
// for the property named by the last level.
type Handle struct {
	device    device.Device
	topic     string
	canonical string
	publisher Publisher
	ctx       context.Context
	logger    Logger

	mu       sync.Mutex
	readings map[string]string // canonical property → last value

	messages atomic.Uint64
	ignored  atomic.Uint64
}

// Device implements device.Handle.
func (h *Handle) Device() device.Device {
	return h.device.DeepCopy()
}

// CanonicalTopic implements device.Handle.
func (h *Handle) CanonicalTopic() string {
	return h.canonical
}

// Readings returns a copy of the last known value of each property.
func (h *Handle) Readings() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return maps.Clone(h.readings)
}

// ProcessMessage implements device.Handle.
func (h *Handle) ProcessMessage(topic string, payload []byte) {
	h.messages.Add(1)
	if payload == nil {
		h.ignored.Add(1)
		h.logger.Debug("empty sensor message", "identity", h.device.Identity.String(), "topic", topic)
		return
	}

	raw, err := h.decode(topic, payload)
	if err != nil {
		h.ignored.Add(1)
		h.logger.Warn("undecodable sensor message",
			"identity", h.device.Identity.String(),
			"topic", topic,
			"error", err,
		)
		return
	}

	// Sorted keys keep event order stable for a given payload.
	for _, key := range slices.Sorted(maps.Keys(raw)) {
		h.apply(key, raw[key])
	}
}

func (h *Handle) decode(topic string, payload []byte) (map[string]any, error) {
	if sub, ok := strings.CutPrefix(topic, h.topic+"/"); ok && sub != "" {
		property := sub
		if i := strings.LastIndexByte(sub, '/'); i >= 0 {
			property = sub[i+1:]
		}
		return map[string]any{property: decodeScalar(payload)}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (h *Handle) apply(key string, raw any) {
	id := h.device.Identity

	p, ok := LookupProperty(key)
	if !ok || !accepts(id.Type, p.Name) {
		h.logger.Debug("ignoring sensor property", "identity", id.String(), "property", key)
		return
	}

	value, err := normalise(p, raw)
	if err != nil {
		h.logger.Warn("invalid sensor reading", "identity", id.String(), "property", p.Name, "error", err)
		return
	}

	h.mu.Lock()
	previous, hasPrevious := h.readings[p.Name]
	if hasPrevious && previous == value {
		h.mu.Unlock()
		return
	}
	h.readings[p.Name] = value
	h.mu.Unlock()

	ev := event.NewPropertyEvent(p.changeKind(value), id, p.Name, value, previous, hasPrevious)
	if err := h.publisher.Publish(h.ctx, ev); err != nil {
		h.logger.Error("publishing sensor event", "identity", id.String(), "kind", ev.Kind, "error", err)
	}
}
