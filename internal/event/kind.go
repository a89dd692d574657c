package event

import (
	"fmt"
	"slices"
	"strings"
)

// Kind names a class of domain occurrence. Kinds form a tree: every kind
// except the two roots has exactly one parent, and an event of kind K also
// satisfies every ancestor of K.
type Kind string

// Root kinds.
const (
	// KindDeviceEvent is the ancestor of every event about a specific device.
	KindDeviceEvent Kind = "DeviceEvent"
	// KindSystemEvent is the ancestor of every event with no device context.
	KindSystemEvent Kind = "SystemEvent"
)

// Device lifecycle.
const (
	KindDeviceRegistered    Kind = "DeviceRegistered"
	KindDevicePropertyEvent Kind = "DevicePropertyEvent"
)

// Measured values.
const (
	KindTemperatureChanged  Kind = "TemperatureChanged"
	KindHumidityChanged     Kind = "HumidityChanged"
	KindIlluminanceChanged  Kind = "IlluminanceChanged"
	KindPowerChanged        Kind = "PowerChanged"
	KindBatteryLevelChanged Kind = "BatteryLevelChanged"
	KindCo2LevelChanged     Kind = "Co2LevelChanged"
)

// Binary states, each with a generic "changed" parent.
const (
	KindRelayStateChanged  Kind = "RelayStateChanged"
	KindRelayTurnedOn      Kind = "RelayTurnedOn"
	KindRelayTurnedOff     Kind = "RelayTurnedOff"
	KindWindowStateChanged Kind = "WindowStateChanged"
	KindWindowOpened       Kind = "WindowOpened"
	KindWindowClosed       Kind = "WindowClosed"
	KindMotionStateChanged Kind = "MotionStateChanged"
	KindMotionDetected     Kind = "MotionDetected"
	KindMotionCleared      Kind = "MotionCleared"
	KindSmokeStateChanged  Kind = "SmokeStateChanged"
	KindSmokeDetected      Kind = "SmokeDetected"
	KindSmokeCleared       Kind = "SmokeCleared"
)

// System events.
const (
	KindDevicesLoaded    Kind = "DevicesLoaded"
	KindConfigSaved      Kind = "ConfigSaved"
	KindConfigSaveFailed Kind = "ConfigSaveFailed"
)

// parents is the closed kind catalog. A root maps to the empty kind.
var parents = map[Kind]Kind{
	KindDeviceEvent: "",
	KindSystemEvent: "",

	KindDeviceRegistered:    KindDeviceEvent,
	KindDevicePropertyEvent: KindDeviceEvent,

	KindTemperatureChanged:  KindDevicePropertyEvent,
	KindHumidityChanged:     KindDevicePropertyEvent,
	KindIlluminanceChanged:  KindDevicePropertyEvent,
	KindPowerChanged:        KindDevicePropertyEvent,
	KindBatteryLevelChanged: KindDevicePropertyEvent,
	KindCo2LevelChanged:     KindDevicePropertyEvent,

	KindRelayStateChanged:  KindDevicePropertyEvent,
	KindRelayTurnedOn:      KindRelayStateChanged,
	KindRelayTurnedOff:     KindRelayStateChanged,
	KindWindowStateChanged: KindDevicePropertyEvent,
	KindWindowOpened:       KindWindowStateChanged,
	KindWindowClosed:       KindWindowStateChanged,
	KindMotionStateChanged: KindDevicePropertyEvent,
	KindMotionDetected:     KindMotionStateChanged,
	KindMotionCleared:      KindMotionStateChanged,
	KindSmokeStateChanged:  KindDevicePropertyEvent,
	KindSmokeDetected:      KindSmokeStateChanged,
	KindSmokeCleared:       KindSmokeStateChanged,

	KindDevicesLoaded:    KindSystemEvent,
	KindConfigSaved:      KindSystemEvent,
	KindConfigSaveFailed: KindSystemEvent,
}

// lineages caches Lineage results; computed once from parents.
var lineages = buildLineages()

// byName indexes the catalog case-insensitively for configuration lookups.
var byName = buildNameIndex()

func buildLineages() map[Kind][]Kind {
	out := make(map[Kind][]Kind, len(parents))
	for k := range parents {
		var chain []Kind
		for cur := k; cur != ""; cur = parents[cur] {
			chain = append(chain, cur)
		}
		out[k] = chain
	}
	return out
}

func buildNameIndex() map[string]Kind {
	out := make(map[string]Kind, len(parents))
	for k := range parents {
		out[strings.ToLower(string(k))] = k
	}
	return out
}

// ParseKind resolves a configured kind name against the catalog.
// Matching ignores case and an optional "Event" suffix, so "windowOpened",
// "WindowOpenedEvent" and "WindowOpened" all resolve to KindWindowOpened.
func ParseKind(name string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if k, ok := byName[key]; ok {
		return k, nil
	}
	if trimmed, found := strings.CutSuffix(key, "event"); found {
		if k, ok := byName[trimmed]; ok {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Known reports whether k is part of the catalog.
func (k Kind) Known() bool {
	_, ok := parents[k]
	return ok
}

// Parent returns the direct supertype of k, or "" for roots and unknown kinds.
func (k Kind) Parent() Kind {
	return parents[k]
}

// Lineage returns every kind k satisfies, most specific first, ending with
// its root. Unknown kinds have no lineage. The returned slice is shared and
// must not be modified.
func (k Kind) Lineage() []Kind {
	return lineages[k]
}

// Is reports whether k equals other or is a subtype of it.
func (k Kind) Is(other Kind) bool {
	return slices.Contains(k.Lineage(), other)
}

// DeviceScoped reports whether events of kind k carry a device identity.
func (k Kind) DeviceScoped() bool {
	return k.Is(KindDeviceEvent)
}

// All returns every catalog kind sorted by name.
func All() []Kind {
	kinds := make([]Kind, 0, len(parents))
	for k := range parents {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
