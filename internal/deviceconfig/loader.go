package deviceconfig

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/event"
)

// Factory rebuilds live devices of the types it supports from their
// stored description.
type Factory interface {
	SupportedTypes() []string
	LoadDevice(d device.Device) (device.Handle, error)
}

// Registrar is the part of the device registry the loader needs.
type Registrar interface {
	Register(d device.Device) bool
}

// Publisher publishes domain events.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event) error
}

// AttachFunc connects a loaded handle to the transport.
type AttachFunc func(h device.Handle) error

// Loader restores the persisted device set at start-up.
type Loader struct {
	factories map[string]Factory
	registry  Registrar
	publisher Publisher
	logger    Logger
}

// NewLoader creates a loader. Two factories claiming the same type is an error.
func NewLoader(registry Registrar, publisher Publisher, factories ...Factory) (*Loader, error) {
	byType := make(map[string]Factory)
	for _, f := range factories {
		for _, t := range f.SupportedTypes() {
			if _, dup := byType[t]; dup {
				return nil, fmt.Errorf("device type %q supported by more than one factory", t)
			}
			byType[t] = f
		}
	}
	return &Loader{
		factories: byType,
		registry:  registry,
		publisher: publisher,
		logger:    noopLogger{},
	}, nil
}

// SetLogger sets the logger for the loader.
func (l *Loader) SetLogger(logger Logger) {
	l.logger = logger
}

// Load reads the document at path, registers every stored device and hands
// each new handle to attach. DevicesLoaded is published once all devices
// are attached, including when the file does not exist yet.
//
// A stored device of an unknown type, or one its factory cannot rebuild,
// aborts the load.
func (l *Loader) Load(ctx context.Context, path string, attach AttachFunc) (int, error) {
	doc, err := Read(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		l.logger.Info("no device config found, starting empty", "path", path)
		doc = Document{Version: CurrentVersion}
	case err != nil:
		return 0, err
	}
	if doc.Version != CurrentVersion {
		l.logger.Warn("device config version differs", "path", path, "version", doc.Version, "current", CurrentVersion)
	}

	loaded := 0
	for _, stored := range doc.Devices {
		d := stored.Device()
		if err := device.ValidateDevice(d); err != nil {
			return loaded, fmt.Errorf("stored device %s: %w", d.Identity, err)
		}

		factory, ok := l.factories[d.Identity.Type]
		if !ok {
			return loaded, fmt.Errorf("%w: %q (device %s)", ErrUnknownDeviceType, d.Identity.Type, d.Identity.ID)
		}
		handle, err := factory.LoadDevice(d)
		if err != nil {
			return loaded, fmt.Errorf("loading device %s: %w", d.Identity, err)
		}

		if !l.registry.Register(handle.Device()) {
			l.logger.Warn("duplicate device in config, skipping", "identity", d.Identity.String())
			continue
		}
		if attach != nil {
			if err := attach(handle); err != nil {
				return loaded, fmt.Errorf("attaching device %s: %w", d.Identity, err)
			}
		}
		loaded++
	}

	l.logger.Info("devices loaded", "path", path, "count", loaded)

	if l.publisher != nil {
		ev := event.NewSystemEvent(event.KindDevicesLoaded, fmt.Sprintf("loaded %d devices", loaded))
		if err := l.publisher.Publish(ctx, ev); err != nil {
			return loaded, fmt.Errorf("publishing devices loaded: %w", err)
		}
	}
	return loaded, nil
}
