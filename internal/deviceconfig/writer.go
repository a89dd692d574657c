package deviceconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/event"
)

// Snapshotter supplies the device set to persist. *device.Registry satisfies it.
type Snapshotter interface {
	List() []device.Device
}

// Bus is the part of the event bus the writer uses.
type Bus interface {
	Publish(ctx context.Context, ev event.Event) error
	Subscribe(ctx context.Context, kind event.Kind, handler func(context.Context, event.Event) error) error
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Writer persists the registry's device set to a JSON document.
//
// The writer starts disabled and is enabled once the initial load has
// completed; until then Save is a no-op.
//
// Save coalesces concurrent calls: one caller writes while at most one
// other waits. Any further caller returns immediately, because the waiter
// takes its registry snapshot after it enters and so already includes the
// skipped caller's change. A change made after the last writer's snapshot
// with no further trigger is only persisted by the next Save.
//
// Bus triggers run their save on a goroutine of their own, so a burst of
// registrations reaches Save concurrently and is coalesced. A trigger that
// arrives while the writer is disabled is remembered and saved on Enable.
type Writer struct {
	path     string
	registry Snapshotter
	logger   Logger
	bus      Bus

	enabled atomic.Bool
	missed  atomic.Bool
	waiting atomic.Bool
	mu      sync.Mutex

	// inflight tracks triggered saves; smu orders Add against Wait.
	smu      sync.Mutex
	stopped  bool
	inflight sync.WaitGroup

	writes    atomic.Uint64
	writeFile func(path string, data []byte) error
}

// NewWriter creates a disabled writer for the document at path.
func NewWriter(path string, registry Snapshotter) *Writer {
	return &Writer{
		path:      path,
		registry:  registry,
		logger:    noopLogger{},
		writeFile: writeFileAtomic,
	}
}

// SetLogger sets the logger for the writer.
func (w *Writer) SetLogger(logger Logger) {
	w.logger = logger
}

// Path returns the document path.
func (w *Writer) Path() string {
	return w.path
}

// Enable turns saving on. It is irreversible and safe to call repeatedly.
// A trigger missed while disabled is saved now.
func (w *Writer) Enable() {
	if !w.enabled.CompareAndSwap(false, true) {
		return
	}
	w.logger.Info("device config writer enabled", "path", w.path)
	if w.missed.Swap(false) {
		w.trigger(context.Background(), "enable")
	}
}

// Enabled reports whether Save writes.
func (w *Writer) Enabled() bool {
	return w.enabled.Load()
}

// Writes returns the number of completed physical writes.
func (w *Writer) Writes() uint64 {
	return w.writes.Load()
}

// Save writes the current device set unless the writer is disabled or the
// call is coalesced into a pending one. Failures wrap ErrPersistence and are
// not retried.
func (w *Writer) Save() error {
	_, err := w.save()
	return err
}

func (w *Writer) save() (bool, error) {
	if !w.enabled.Load() {
		return false, nil
	}
	if !w.waiting.CompareAndSwap(false, true) {
		return false, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	// Cleared before the snapshot so a caller skipped from here on is
	// covered by this write.
	w.waiting.Store(false)

	if err := os.MkdirAll(filepath.Dir(w.path), 0o750); err != nil {
		return false, fmt.Errorf("%w: creating directory: %w", ErrPersistence, err)
	}

	devices := w.registry.List()
	data, err := NewDocument(devices).Encode()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := w.writeFile(w.path, data); err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	w.writes.Add(1)
	w.logger.Debug("device config saved", "path", w.path, "devices", len(devices))
	return true, nil
}

// Start wires the writer to the bus: DevicesLoaded enables it and every
// DeviceRegistered event triggers a save. A failed save is logged and
// announced with a ConfigSaveFailed system event.
func (w *Writer) Start(ctx context.Context, bus Bus) error {
	w.bus = bus
	if err := bus.Subscribe(ctx, event.KindDevicesLoaded, func(context.Context, event.Event) error {
		w.Enable()
		return nil
	}); err != nil {
		return fmt.Errorf("subscribing to %s: %w", event.KindDevicesLoaded, err)
	}

	return bus.Subscribe(ctx, event.KindDeviceRegistered, func(ctx context.Context, ev event.Event) error {
		w.trigger(ctx, ev.ID)
		return nil
	})
}

// Wait blocks until every triggered save has finished.
func (w *Writer) Wait() {
	w.smu.Lock()
	defer w.smu.Unlock()
	w.inflight.Wait()
}

// Stop refuses further triggers and waits for the running ones.
func (w *Writer) Stop() {
	w.smu.Lock()
	defer w.smu.Unlock()
	w.stopped = true
	w.inflight.Wait()
}

// trigger starts a save on its own goroutine. While disabled it only records
// the trigger. The store of missed and the load of enabled mirror Enable's
// order, so the trigger is saved by exactly one of the two.
func (w *Writer) trigger(ctx context.Context, cause string) {
	if !w.enabled.Load() {
		w.missed.Store(true)
		if !w.enabled.Load() || !w.missed.Swap(false) {
			return
		}
	}

	w.smu.Lock()
	defer w.smu.Unlock()
	if w.stopped {
		return
	}
	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()
		w.saveAndReport(ctx, cause)
	}()
}

func (w *Writer) saveAndReport(ctx context.Context, cause string) {
	wrote, err := w.save()
	if err != nil {
		w.logger.Error("saving device config", "path", w.path, "trigger", cause, "error", err)
		failed := event.NewSystemEvent(event.KindConfigSaveFailed, fmt.Sprintf("could not save %s: %v", w.path, err)).
			WithAttribute(event.AttrError, err.Error())
		w.announce(ctx, failed)
		return
	}
	if wrote {
		w.announce(ctx, event.NewSystemEvent(event.KindConfigSaved, fmt.Sprintf("device config saved to %s", w.path)))
	}
}

func (w *Writer) announce(ctx context.Context, ev event.Event) {
	if w.bus == nil {
		return
	}
	if err := w.bus.Publish(ctx, ev); err != nil {
		w.logger.Error("publishing config save result", "kind", ev.Kind, "error", err)
	}
}

// writeFileAtomic replaces path with data through a synced temporary file
// in the same directory.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
