package device

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the in-memory set of known devices keyed by Identity.
//
// Registration is first-wins: once an identity is present its entry is never
// replaced. Entries are stored as private deep copies and never mutated after
// insertion, so readers need no lock.
//
// All public methods are thread-safe.
type Registry struct {
	devices sync.Map // Identity -> Device
	count   atomic.Int64
	logger  Logger
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{logger: noopLogger{}}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register inserts d if its identity is not yet known.
//
// It returns true when d was stored and false when an entry already existed
// (the existing entry is left untouched) or d is invalid. A duplicate
// registration is not an error.
func (r *Registry) Register(d Device) bool {
	if err := ValidateDevice(d); err != nil {
		r.logger.Warn("rejecting device registration", "identity", d.Identity.String(), "error", err)
		return false
	}

	_, loaded := r.devices.LoadOrStore(d.Identity, d.DeepCopy())
	if loaded {
		r.logger.Debug("device already registered", "identity", d.Identity.String())
		return false
	}

	r.count.Add(1)
	r.logger.Info("device registered",
		"id", d.Identity.ID,
		"type", d.Identity.Type,
		"display_name", d.DisplayName,
	)
	return true
}

// Get returns a copy of the device registered under id.
func (r *Registry) Get(id Identity) (Device, bool) {
	v, ok := r.devices.Load(id)
	if !ok {
		return Device{}, false
	}
	return v.(Device).DeepCopy(), true //nolint:forcetypeassert // only Register writes the map
}

// Lookup is Get for callers that want an error: it wraps ErrDeviceNotFound
// when id is not registered.
func (r *Registry) Lookup(id Identity) (Device, error) {
	d, ok := r.Get(id)
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d, nil
}

// Contains reports whether id is registered without copying the entry.
func (r *Registry) Contains(id Identity) bool {
	_, ok := r.devices.Load(id)
	return ok
}

// List returns a snapshot of all registered devices ordered by type then id.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) List() []Device {
	devices := make([]Device, 0, r.Count())
	r.devices.Range(func(_, v any) bool {
		devices = append(devices, v.(Device).DeepCopy()) //nolint:forcetypeassert // only Register writes the map
		return true
	})

	slices.SortFunc(devices, func(a, b Device) int {
		return cmp.Or(
			cmp.Compare(a.Identity.Type, b.Identity.Type),
			cmp.Compare(a.Identity.ID, b.Identity.ID),
		)
	})
	return devices
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	return int(r.count.Load())
}
