package deviceconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/eventbus"
)

// fakeBus records subscriptions and delivers synchronously.
type fakeBus struct {
	mu        sync.Mutex
	handlers  map[event.Kind][]func(context.Context, event.Event) error
	published []event.Event
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[event.Kind][]func(context.Context, event.Event) error)}
}

func (b *fakeBus) Subscribe(_ context.Context, kind event.Kind, h func(context.Context, event.Event) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
	return nil
}

func (b *fakeBus) Publish(ctx context.Context, ev event.Event) error {
	b.mu.Lock()
	b.published = append(b.published, ev)
	var hs []func(context.Context, event.Event) error
	for _, k := range ev.Kinds() {
		hs = append(hs, b.handlers[k]...)
	}
	b.mu.Unlock()

	for _, h := range hs {
		_ = h(ctx, ev)
	}
	return nil
}

func (b *fakeBus) kinds() []event.Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]event.Kind, 0, len(b.published))
	for _, ev := range b.published {
		out = append(out, ev.Kind)
	}
	return out
}

func registryWith(t *testing.T, ids ...device.Identity) *device.Registry {
	t.Helper()
	reg := device.NewRegistry()
	for _, id := range ids {
		if !reg.Register(device.New(id)) {
			t.Fatalf("Register(%s) = false", id)
		}
	}
	return reg
}

var (
	therm1 = device.NewIdentity("therm-1", "temperature")
	relay1 = device.NewIdentity("relay-1", "switch")
)

func TestWriter_DisabledSaveDoesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	w := NewWriter(path, registryWith(t, therm1))

	if err := w.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Stat() error = %v, want not exist", err)
	}
	if w.Writes() != 0 {
		t.Errorf("Writes() = %d, want 0", w.Writes())
	}
}

func TestWriter_SaveCreatesDirectoryAndDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "devices.json")
	w := NewWriter(path, registryWith(t, therm1, relay1))
	w.Enable()

	if err := w.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	doc, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if doc.Version != CurrentVersion {
		t.Errorf("Version = %q, want %q", doc.Version, CurrentVersion)
	}
	if len(doc.Devices) != 2 {
		t.Fatalf("len(Devices) = %d, want 2", len(doc.Devices))
	}
	for _, d := range doc.Devices {
		if d.Parameters == nil || d.CustomIdentifiers == nil {
			t.Errorf("device %s has nil maps", d.ID)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (no temp files left)", len(entries))
	}
}

func TestWriter_WriteFailureWrapsPersistenceError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	w := NewWriter(path, registryWith(t, therm1))
	w.Enable()
	w.writeFile = func(string, []byte) error { return errors.New("disk full") }

	err := w.Save()
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Save() error = %v, want ErrPersistence", err)
	}

	// The slot must be free again after a failure.
	w.writeFile = writeFileAtomic
	if err := w.Save(); err != nil {
		t.Fatalf("Save() after failure error = %v", err)
	}
}

func TestWriter_CoalescesConcurrentSaves(t *testing.T) {
	const callers = 16

	path := filepath.Join(t.TempDir(), "devices.json")
	reg := registryWith(t, therm1)
	w := NewWriter(path, reg)
	w.Enable()

	entered := make(chan struct{}, callers+1)
	release := make(chan struct{})
	w.writeFile = func(p string, data []byte) error {
		entered <- struct{}{}
		<-release
		return writeFileAtomic(p, data)
	}

	firstDone := make(chan error, 1)
	go func() { firstDone <- w.Save() }()
	<-entered

	var returned atomic.Int32
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Save(); err != nil {
				t.Errorf("Save() error = %v", err)
			}
			returned.Add(1)
		}()
	}

	// All but the single waiter return without writing.
	deadline := time.Now().Add(5 * time.Second)
	for returned.Load() < callers-1 {
		if time.Now().After(deadline) {
			t.Fatalf("returned = %d, want %d before release", returned.Load(), callers-1)
		}
		time.Sleep(time.Millisecond)
	}

	// Registered while the first write is in flight; the waiter picks it up.
	reg.Register(device.New(relay1))
	close(release)

	if err := <-firstDone; err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	wg.Wait()

	if got := w.Writes(); got != 2 {
		t.Errorf("Writes() = %d, want 2", got)
	}

	doc, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(doc.Devices) != 2 {
		t.Errorf("len(Devices) = %d, want 2", len(doc.Devices))
	}
}

func TestWriter_StartFollowsBusEvents(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "devices.json")
	reg := registryWith(t, therm1)
	w := NewWriter(path, reg)
	bus := newFakeBus()

	if err := w.Start(ctx, bus); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Before DevicesLoaded nothing is written.
	_ = bus.Publish(ctx, event.NewDeviceEvent(event.KindDeviceRegistered, therm1, "registered"))
	w.Wait()
	if w.Writes() != 0 {
		t.Fatalf("Writes() before load = %d, want 0", w.Writes())
	}

	// The registration seen while disabled is saved on enable.
	_ = bus.Publish(ctx, event.NewSystemEvent(event.KindDevicesLoaded, "loaded"))
	w.Wait()
	if !w.Enabled() {
		t.Fatal("Enabled() = false after DevicesLoaded")
	}
	if w.Writes() != 1 {
		t.Errorf("Writes() after DevicesLoaded = %d, want 1", w.Writes())
	}

	reg.Register(device.New(relay1))
	_ = bus.Publish(ctx, event.NewDeviceEvent(event.KindDeviceRegistered, relay1, "registered"))
	w.Wait()
	if w.Writes() != 2 {
		t.Errorf("Writes() = %d, want 2", w.Writes())
	}

	kinds := bus.kinds()
	if last := kinds[len(kinds)-1]; last != event.KindConfigSaved {
		t.Errorf("last published kind = %s, want %s", last, event.KindConfigSaved)
	}
}

func TestWriter_EnableWithoutMissedTriggerDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	w := NewWriter(filepath.Join(t.TempDir(), "devices.json"), registryWith(t, therm1))
	if err := w.Start(ctx, newFakeBus()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	w.Enable()
	w.Enable()
	w.Wait()
	if w.Writes() != 0 {
		t.Errorf("Writes() = %d, want 0", w.Writes())
	}
}

func TestWriter_StartPublishesSaveFailure(t *testing.T) {
	ctx := context.Background()
	w := NewWriter(filepath.Join(t.TempDir(), "devices.json"), registryWith(t, therm1))
	w.writeFile = func(string, []byte) error { return errors.New("read-only filesystem") }
	bus := newFakeBus()

	if err := w.Start(ctx, bus); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	w.Enable()
	_ = bus.Publish(ctx, event.NewDeviceEvent(event.KindDeviceRegistered, therm1, "registered"))
	w.Wait()

	bus.mu.Lock()
	defer bus.mu.Unlock()
	last := bus.published[len(bus.published)-1]
	if last.Kind != event.KindConfigSaveFailed {
		t.Fatalf("last published kind = %s, want %s", last.Kind, event.KindConfigSaveFailed)
	}
	if last.Attribute(event.AttrError) == "" {
		t.Error("ConfigSaveFailed has no error attribute")
	}
}

func TestWriter_StopRefusesTriggers(t *testing.T) {
	ctx := context.Background()
	w := NewWriter(filepath.Join(t.TempDir(), "devices.json"), registryWith(t, therm1))
	bus := newFakeBus()
	if err := w.Start(ctx, bus); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	w.Enable()
	w.Stop()

	_ = bus.Publish(ctx, event.NewDeviceEvent(event.KindDeviceRegistered, therm1, "registered"))
	w.Wait()
	if w.Writes() != 0 {
		t.Errorf("Writes() after Stop = %d, want 0", w.Writes())
	}
}

// waitHandled polls until the bus has handled n events.
func waitHandled(t *testing.T, bus *eventbus.Bus, n uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for bus.Stats().Handled < n {
		if time.Now().After(deadline) {
			t.Fatalf("bus handled %d events, want %d", bus.Stats().Handled, n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWriter_BusRegistrationsAreCoalesced(t *testing.T) {
	const registrations = 10

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := eventbus.New(eventbus.Config{}, nil)
	defer bus.Close()

	path := filepath.Join(t.TempDir(), "devices.json")
	reg := device.NewRegistry()
	w := NewWriter(path, reg)
	w.writeFile = func(p string, data []byte) error {
		time.Sleep(50 * time.Millisecond)
		return writeFileAtomic(p, data)
	}
	if err := w.Start(ctx, bus); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	w.Enable()

	var wg sync.WaitGroup
	for i := range registrations {
		id := device.NewIdentity(fmt.Sprintf("therm-%d", i), "temperature")
		reg.Register(device.New(id))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bus.Publish(ctx, event.NewDeviceEvent(event.KindDeviceRegistered, id, "registered")); err != nil {
				t.Errorf("Publish() error = %v", err)
			}
		}()
	}
	wg.Wait()
	waitHandled(t, bus, registrations)
	w.Wait()

	if got := w.Writes(); got < 1 || got > 2 {
		t.Errorf("Writes() = %d, want 1 or 2 for %d registrations", got, registrations)
	}
	doc, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(doc.Devices) != registrations {
		t.Errorf("len(Devices) = %d, want %d", len(doc.Devices), registrations)
	}
}

func TestWriter_RegistrationRightAfterDevicesLoadedIsSaved(t *testing.T) {
	for range 20 {
		ctx, cancel := context.WithCancel(context.Background())
		bus := eventbus.New(eventbus.Config{}, nil)

		path := filepath.Join(t.TempDir(), "devices.json")
		reg := registryWith(t, therm1)
		w := NewWriter(path, reg)
		if err := w.Start(ctx, bus); err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		reg.Register(device.New(relay1))
		if err := bus.Publish(ctx, event.NewSystemEvent(event.KindDevicesLoaded, "loaded")); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if err := bus.Publish(ctx, event.NewDeviceEvent(event.KindDeviceRegistered, relay1, "registered")); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		waitHandled(t, bus, 2)
		w.Wait()

		doc, err := Read(path)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if len(doc.Devices) != 2 {
			t.Fatalf("len(Devices) = %d, want 2", len(doc.Devices))
		}

		cancel()
		bus.Close()
	}
}
