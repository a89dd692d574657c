package deviceconfig

import (
	"context"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/event"
)

type stubHandle struct {
	d device.Device
}

func (h stubHandle) Device() device.Device         { return h.d }
func (h stubHandle) CanonicalTopic() string        { return "graylogic/state/" + h.d.Identity.String() }
func (h stubHandle) ProcessMessage(string, []byte) {}

type stubFactory struct {
	types []string
	err   error
}

func (f stubFactory) SupportedTypes() []string { return f.types }

func (f stubFactory) LoadDevice(d device.Device) (device.Handle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return stubHandle{d: d}, nil
}

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

const sampleDoc = `{
  "version": "1.0",
  "devices": [
    {"type": "temperature", "displayName": "Living room", "id": "therm-1", "parameters": {}, "customIdentifiers": {"room": "living"}},
    {"type": "switch", "displayName": "relay-1", "id": "relay-1", "parameters": {"qos": "1"}, "customIdentifiers": {}}
  ]
}`

func TestLoader_LoadRegistersAndAttaches(t *testing.T) {
	ctx := context.Background()
	path := writeDoc(t, sampleDoc)
	reg := device.NewRegistry()
	bus := newFakeBus()

	loader, err := NewLoader(reg, bus, stubFactory{types: []string{"temperature", "switch"}})
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	var attached []string
	n, err := loader.Load(ctx, path, func(h device.Handle) error {
		attached = append(attached, h.CanonicalTopic())
		return nil
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Load() = %d, want 2", n)
	}
	if len(attached) != 2 {
		t.Errorf("attached = %v, want 2 topics", attached)
	}

	got, ok := reg.Get(therm1)
	if !ok {
		t.Fatal("therm-1 not registered")
	}
	if got.DisplayName != "Living room" {
		t.Errorf("DisplayName = %q, want %q", got.DisplayName, "Living room")
	}
	if got.CustomIdentifiers["room"] != "living" {
		t.Errorf("CustomIdentifiers[room] = %q, want %q", got.CustomIdentifiers["room"], "living")
	}

	kinds := bus.kinds()
	if len(kinds) != 1 || kinds[0] != event.KindDevicesLoaded {
		t.Errorf("published = %v, want [DevicesLoaded]", kinds)
	}
}

func TestLoader_MissingFileStartsEmpty(t *testing.T) {
	reg := device.NewRegistry()
	bus := newFakeBus()
	loader, err := NewLoader(reg, bus, stubFactory{types: []string{"temperature"}})
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	n, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "absent.json"), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if n != 0 || reg.Count() != 0 {
		t.Errorf("Load() = %d, Count() = %d, want 0, 0", n, reg.Count())
	}
	if kinds := bus.kinds(); len(kinds) != 1 || kinds[0] != event.KindDevicesLoaded {
		t.Errorf("published = %v, want [DevicesLoaded]", kinds)
	}
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		factory stubFactory
		wantErr error
	}{
		{
			name:    "unknown type aborts",
			content: sampleDoc,
			factory: stubFactory{types: []string{"temperature"}},
			wantErr: ErrUnknownDeviceType,
		},
		{
			name:    "invalid json",
			content: `{"version": `,
			factory: stubFactory{types: []string{"temperature"}},
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "invalid identity",
			content: `{"version":"1.0","devices":[{"type":"temperature","id":"a/b"}]}`,
			factory: stubFactory{types: []string{"temperature"}},
			wantErr: device.ErrInvalidIdentity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, err := NewLoader(device.NewRegistry(), nil, tt.factory)
			if err != nil {
				t.Fatalf("NewLoader() error = %v", err)
			}
			_, err = loader.Load(context.Background(), writeDoc(t, tt.content), nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoader_FactoryFailureAborts(t *testing.T) {
	boom := errors.New("bad parameters")
	loader, err := NewLoader(device.NewRegistry(), nil, stubFactory{types: []string{"temperature", "switch"}, err: boom})
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	if _, err := loader.Load(context.Background(), writeDoc(t, sampleDoc), nil); !errors.Is(err, boom) {
		t.Errorf("Load() error = %v, want %v", err, boom)
	}
}

func TestNewLoader_DuplicateType(t *testing.T) {
	_, err := NewLoader(device.NewRegistry(), nil,
		stubFactory{types: []string{"temperature"}},
		stubFactory{types: []string{"temperature"}},
	)
	if err == nil {
		t.Error("NewLoader() error = nil, want duplicate type error")
	}
}

func TestWriteThenLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "devices.json")

	source := device.NewRegistry()
	d := device.New(therm1)
	d.DisplayName = "Living room"
	d.Parameters["offset"] = "-0.5"
	d.CustomIdentifiers["room"] = "living"
	source.Register(d)
	source.Register(device.New(relay1))

	w := NewWriter(path, source)
	w.Enable()
	if err := w.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	restored := device.NewRegistry()
	loader, err := NewLoader(restored, nil, stubFactory{types: []string{"temperature", "switch"}})
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	if _, err := loader.Load(ctx, path, nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	for _, want := range source.List() {
		got, ok := restored.Get(want.Identity)
		if !ok {
			t.Errorf("%s missing after round trip", want.Identity)
			continue
		}
		if got.DisplayName != want.DisplayName {
			t.Errorf("%s DisplayName = %q, want %q", want.Identity, got.DisplayName, want.DisplayName)
		}
		if !maps.Equal(got.Parameters, want.Parameters) || !maps.Equal(got.CustomIdentifiers, want.CustomIdentifiers) {
			t.Errorf("%s maps = %v/%v, want %v/%v", want.Identity,
				got.Parameters, got.CustomIdentifiers, want.Parameters, want.CustomIdentifiers)
		}
	}
}
