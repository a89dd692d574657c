package event

import (
	"errors"
	"slices"
	"testing"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

func TestKind_Lineage(t *testing.T) {
	tests := []struct {
		kind Kind
		want []Kind
	}{
		{KindWindowOpened, []Kind{KindWindowOpened, KindWindowStateChanged, KindDevicePropertyEvent, KindDeviceEvent}},
		{KindTemperatureChanged, []Kind{KindTemperatureChanged, KindDevicePropertyEvent, KindDeviceEvent}},
		{KindDeviceRegistered, []Kind{KindDeviceRegistered, KindDeviceEvent}},
		{KindConfigSaveFailed, []Kind{KindConfigSaveFailed, KindSystemEvent}},
		{KindSystemEvent, []Kind{KindSystemEvent}},
		{Kind("Bogus"), nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got := tt.kind.Lineage()
			if !slices.Equal(got, tt.want) {
				t.Errorf("Lineage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKind_Is(t *testing.T) {
	if !KindWindowClosed.Is(KindWindowStateChanged) {
		t.Error("WindowClosed.Is(WindowStateChanged) = false, want true")
	}
	if KindWindowStateChanged.Is(KindWindowClosed) {
		t.Error("WindowStateChanged.Is(WindowClosed) = true, want false (supertype is not a subtype)")
	}
	if KindRelayTurnedOn.Is(KindWindowStateChanged) {
		t.Error("RelayTurnedOn.Is(WindowStateChanged) = true, want false")
	}
	if !KindDevicesLoaded.Is(KindDevicesLoaded) {
		t.Error("kind must satisfy itself")
	}
}

func TestKind_DeviceScoped(t *testing.T) {
	if !KindSmokeDetected.DeviceScoped() {
		t.Error("SmokeDetected should be device scoped")
	}
	if KindDevicesLoaded.DeviceScoped() {
		t.Error("DevicesLoaded should not be device scoped")
	}
}

func TestCatalog_EveryKindReachesARoot(t *testing.T) {
	for _, k := range All() {
		lineage := k.Lineage()
		if len(lineage) == 0 {
			t.Errorf("%s has empty lineage", k)
			continue
		}
		root := lineage[len(lineage)-1]
		if root != KindDeviceEvent && root != KindSystemEvent {
			t.Errorf("%s ends at %s, want a root kind", k, root)
		}
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		name    string
		want    Kind
		wantErr bool
	}{
		{"WindowOpened", KindWindowOpened, false},
		{"windowopened", KindWindowOpened, false},
		{"WindowOpenedEvent", KindWindowOpened, false},
		{" DevicesLoaded ", KindDevicesLoaded, false},
		{"SystemEvent", KindSystemEvent, false},
		{"com.example.RandomEvent", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKind(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnknownKind) {
				t.Errorf("ParseKind(%q) error = %v, want ErrUnknownKind", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestEvent_Validate(t *testing.T) {
	id := device.NewIdentity("win-1", "window")

	if err := NewDeviceEvent(KindWindowOpened, id, "open").Validate(); err != nil {
		t.Errorf("Validate() device event error = %v", err)
	}
	if err := NewSystemEvent(KindDevicesLoaded, "loaded").Validate(); err != nil {
		t.Errorf("Validate() system event error = %v", err)
	}

	orphan := NewSystemEvent(KindWindowOpened, "no device")
	if err := orphan.Validate(); !errors.Is(err, ErrMissingDevice) {
		t.Errorf("Validate() error = %v, want ErrMissingDevice", err)
	}

	unknown := NewSystemEvent(Kind("Nope"), "")
	if err := unknown.Validate(); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Validate() error = %v, want ErrUnknownKind", err)
	}
}

func TestNewPropertyEvent(t *testing.T) {
	id := device.NewIdentity("therm-1", "temperature")

	first := NewPropertyEvent(KindTemperatureChanged, id, "temperature", "21.5", "", false)
	if first.HasPrevious {
		t.Error("HasPrevious = true for first reading")
	}
	if _, ok := first.Attributes[AttrPrevious]; ok {
		t.Error("first reading should not carry a previous attribute")
	}

	next := NewPropertyEvent(KindTemperatureChanged, id, "temperature", "22", "21.5", true)
	if next.Attribute(AttrPrevious) != "21.5" {
		t.Errorf("previous = %q, want %q", next.Attribute(AttrPrevious), "21.5")
	}
	if next.Message != "temperature changed to 22" {
		t.Errorf("Message = %q", next.Message)
	}
	if next.ID == first.ID {
		t.Error("events share an id")
	}
}

func TestEvent_WithAttributeCopies(t *testing.T) {
	ev := NewSystemEvent(KindConfigSaveFailed, "disk full")
	withErr := ev.WithAttribute(AttrError, "ENOSPC")
	if ev.Attribute(AttrError) != "" {
		t.Error("WithAttribute mutated the original event")
	}
	if withErr.Attribute(AttrError) != "ENOSPC" {
		t.Errorf("Attribute(error) = %q, want ENOSPC", withErr.Attribute(AttrError))
	}
}
