package device

import "maps"

// Identity is the composite key naming a device: its external id plus the
// device family type. Identities are comparable and used directly as map keys.
type Identity struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// NewIdentity returns the identity for id within deviceType.
func NewIdentity(id, deviceType string) Identity {
	return Identity{ID: id, Type: deviceType}
}

// String renders the identity as "type/id", the same shape used in MQTT topics.
func (i Identity) String() string {
	return i.Type + "/" + i.ID
}

// Device is a registered device description.
//
// The registry owns every Device it stores and hands out deep copies, so a
// Device obtained from Get or List can be modified freely by the caller.
type Device struct {
	Identity Identity `json:"identity"`

	// DisplayName is the human readable name used in notification titles.
	// It defaults to the external id when a factory has nothing better.
	DisplayName string `json:"display_name"`

	// Parameters are family specific settings (e.g. topic overrides).
	Parameters map[string]string `json:"parameters"`

	// CustomIdentifiers are free-form identifiers supplied by the operator.
	CustomIdentifiers map[string]string `json:"custom_identifiers"`
}

// New returns a Device for identity with empty maps and the id as display name.
func New(identity Identity) Device {
	return Device{
		Identity:          identity,
		DisplayName:       identity.ID,
		Parameters:        map[string]string{},
		CustomIdentifiers: map[string]string{},
	}
}

// DeepCopy creates a complete independent copy of the Device.
// Nil maps are normalised to empty maps so serialised output never contains null.
func (d Device) DeepCopy() Device {
	cpy := d
	cpy.Parameters = copyMap(d.Parameters)
	cpy.CustomIdentifiers = copyMap(d.CustomIdentifiers)
	return cpy
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m)
}

// Handle is a live device instance able to consume transport messages.
//
// Handles are produced by device family factories. The registry stores only
// the Device description; the handle stays with whoever subscribed it to the
// transport.
type Handle interface {
	// Device returns the description to register.
	Device() Device

	// CanonicalTopic is the transport topic filter that carries this device's
	// messages. It may contain MQTT wildcards.
	CanonicalTopic() string

	// ProcessMessage consumes one message. A nil payload means the message
	// carried none.
	ProcessMessage(topic string, payload []byte)
}
