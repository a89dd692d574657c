package event

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Attribute keys used by property events.
const (
	AttrProperty = "property"
	AttrValue    = "value"
	AttrPrevious = "previous"
	AttrError    = "error"
	AttrSource   = "source"
)

// Event is a single domain occurrence travelling over the event bus.
//
// Device is set for device-scoped kinds and nil otherwise. Events are values;
// the With* helpers return modified copies.
type Event struct {
	ID         string           `json:"id"`
	Kind       Kind             `json:"kind"`
	Device     *device.Identity `json:"device,omitempty"`
	Message    string           `json:"message"`
	OccurredAt time.Time        `json:"occurred_at"`

	// HasPrevious is true when a property event replaces an earlier reading.
	// The first reading after start-up has no previous value.
	HasPrevious bool `json:"has_previous,omitempty"`

	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewDeviceEvent creates an event about the device identified by id.
func NewDeviceEvent(kind Kind, id device.Identity, message string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Device:     &id,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
}

// NewSystemEvent creates an event with no device context.
func NewSystemEvent(kind Kind, message string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
}

// NewPropertyEvent creates a property change event carrying the new value and,
// when known, the previous one.
func NewPropertyEvent(kind Kind, id device.Identity, property, value, previous string, hasPrevious bool) Event {
	ev := NewDeviceEvent(kind, id, fmt.Sprintf("%s changed to %s", property, value))
	ev.HasPrevious = hasPrevious
	ev.Attributes = map[string]string{
		AttrProperty: property,
		AttrValue:    value,
	}
	if hasPrevious {
		ev.Attributes[AttrPrevious] = previous
	}
	return ev
}

// Kinds returns every kind this event satisfies, most specific first.
func (e Event) Kinds() []Kind {
	return e.Kind.Lineage()
}

// Is reports whether the event satisfies kind.
func (e Event) Is(kind Kind) bool {
	return e.Kind.Is(kind)
}

// WithMessage returns a copy of e with message replaced.
func (e Event) WithMessage(message string) Event {
	e.Message = message
	return e
}

// WithAttribute returns a copy of e with key set to value.
func (e Event) WithAttribute(key, value string) Event {
	attrs := make(map[string]string, len(e.Attributes)+1)
	maps.Copy(attrs, e.Attributes)
	attrs[key] = value
	e.Attributes = attrs
	return e
}

// Attribute returns the attribute stored under key, or "".
func (e Event) Attribute(key string) string {
	return e.Attributes[key]
}

// Validate checks that the kind is known and that device-scoped kinds carry
// a device identity.
func (e Event) Validate() error {
	if !e.Kind.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if e.Kind.DeviceScoped() && e.Device == nil {
		return fmt.Errorf("%w: kind %s", ErrMissingDevice, e.Kind)
	}
	return nil
}
