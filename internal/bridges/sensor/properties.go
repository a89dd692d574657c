package sensor

import (
	"strings"

	"github.com/nerrad567/gray-logic-hub/internal/event"
)

// PropertyDef describes one reading a sensor can report.
type PropertyDef struct {
	Name    string     // Canonical payload key (e.g. "temperature")
	Kind    event.Kind // Event published when the value changes
	Binary  bool       // Value is on/off rather than numeric
	OnKind  event.Kind // Binary only: published for a true value
	OffKind event.Kind // Binary only: published for a false value
	Aliases []string   // Accepted payload keys that normalise to Name
}

// changeKind returns the most specific kind for value.
func (p *PropertyDef) changeKind(value string) event.Kind {
	if !p.Binary {
		return p.Kind
	}
	if value == valueTrue {
		return p.OnKind
	}
	return p.OffKind
}

// TypeDef describes a device type and the readings it accepts.
type TypeDef struct {
	Name       string
	Properties []string
}

// Properties is the exhaustive list of recognised readings.
var Properties = []PropertyDef{
	// ── Measurements ─────────────────────────────────────────
	{Name: "temperature", Kind: event.KindTemperatureChanged, Aliases: []string{"temp", "actual_temperature"}},
	{Name: "humidity", Kind: event.KindHumidityChanged, Aliases: []string{"rh", "relative_humidity"}},
	{Name: "illuminance", Kind: event.KindIlluminanceChanged, Aliases: []string{"lux", "light_level"}},
	{Name: "power", Kind: event.KindPowerChanged, Aliases: []string{"active_power", "watts"}},
	{Name: "co2", Kind: event.KindCo2LevelChanged, Aliases: []string{"carbon_dioxide"}},
	{Name: "battery", Kind: event.KindBatteryLevelChanged, Aliases: []string{"battery_level"}},

	// ── Binary states ────────────────────────────────────────
	{Name: "on", Kind: event.KindRelayStateChanged, Binary: true,
		OnKind: event.KindRelayTurnedOn, OffKind: event.KindRelayTurnedOff, Aliases: []string{"state", "relay"}},
	{Name: "open", Kind: event.KindWindowStateChanged, Binary: true,
		OnKind: event.KindWindowOpened, OffKind: event.KindWindowClosed, Aliases: []string{"contact", "window"}},
	{Name: "motion", Kind: event.KindMotionStateChanged, Binary: true,
		OnKind: event.KindMotionDetected, OffKind: event.KindMotionCleared, Aliases: []string{"presence", "occupancy"}},
	{Name: "smoke", Kind: event.KindSmokeStateChanged, Binary: true,
		OnKind: event.KindSmokeDetected, OffKind: event.KindSmokeCleared, Aliases: []string{"alarm"}},
}

// Types lists every supported device type. Battery is accepted on all of them.
var Types = []TypeDef{
	{Name: "temperature", Properties: []string{"temperature", "humidity"}},
	{Name: "humidity", Properties: []string{"humidity", "temperature"}},
	{Name: "illuminance", Properties: []string{"illuminance"}},
	{Name: "power", Properties: []string{"power", "on"}},
	{Name: "co2", Properties: []string{"co2", "temperature", "humidity"}},
	{Name: "switch", Properties: []string{"on", "power"}},
	{Name: "window", Properties: []string{"open"}},
	{Name: "motion", Properties: []string{"motion", "illuminance"}},
	{Name: "smoke", Properties: []string{"smoke"}},
}

const batteryProperty = "battery"

// Lookup maps built once at init.
var (
	propertyByKey map[string]*PropertyDef     // canonical name or alias → definition
	typeByName    map[string]map[string]bool // type → accepted canonical properties
)

func init() {
	propertyByKey = make(map[string]*PropertyDef)
	for i := range Properties {
		p := &Properties[i]
		propertyByKey[p.Name] = p
		for _, alias := range p.Aliases {
			propertyByKey[alias] = p
		}
	}

	typeByName = make(map[string]map[string]bool, len(Types))
	for _, t := range Types {
		accepted := map[string]bool{batteryProperty: true}
		for _, name := range t.Properties {
			accepted[name] = true
		}
		typeByName[t.Name] = accepted
	}
}

// LookupProperty returns the definition for a canonical name or alias.
// Lookup is case-insensitive.
func LookupProperty(key string) (*PropertyDef, bool) {
	p, ok := propertyByKey[strings.ToLower(strings.TrimSpace(key))]
	return p, ok
}

// Supported reports whether deviceType is a sensor type.
func Supported(deviceType string) bool {
	_, ok := typeByName[deviceType]
	return ok
}

// accepts reports whether deviceType reports the canonical property.
func accepts(deviceType, property string) bool {
	return typeByName[deviceType][property]
}

// TypeNames returns the supported type names in declaration order.
func TypeNames() []string {
	names := make([]string, 0, len(Types))
	for _, t := range Types {
		names = append(names, t.Name)
	}
	return names
}
