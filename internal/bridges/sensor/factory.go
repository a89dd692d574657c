package sensor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
)

// ParamTopic overrides the state topic a device publishes on.
const ParamTopic = "topic"

// Publisher publishes domain events.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event) error
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

// Factory builds sensor handles, both for discovery from
// graylogic/state/{type}/{id} topics and for the persisted device set.
type Factory struct {
	publisher Publisher
	ctx       context.Context
	logger    Logger

	mu      sync.RWMutex
	handles map[device.Identity]*Handle
}

// NewFactory creates a factory whose handles publish through publisher.
// ctx bounds event publishing for the lifetime of every handle.
func NewFactory(ctx context.Context, publisher Publisher) *Factory {
	return &Factory{
		publisher: publisher,
		ctx:       ctx,
		logger:    noopLogger{},
		handles:   make(map[device.Identity]*Handle),
	}
}

// SetLogger sets the logger for the factory and handles it creates afterwards.
func (f *Factory) SetLogger(logger Logger) {
	f.logger = logger
}

// RootTopic returns the discovery root.
func (f *Factory) RootTopic() string {
	return mqtt.TopicPrefixState
}

// IdentityFromTopic extracts {type}/{id} from a state topic. Unsupported
// types still yield an identity; CreateDevice declines them.
func (f *Factory) IdentityFromTopic(topic string) (device.Identity, bool) {
	rest, ok := strings.CutPrefix(topic, mqtt.TopicPrefixState)
	if !ok {
		return device.Identity{}, false
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 {
		return device.Identity{}, false
	}

	id := device.NewIdentity(parts[1], parts[0])
	if id.Validate() != nil {
		return device.Identity{}, false
	}
	return id, true
}

// CreateDevice builds a handle for a newly discovered device.
func (f *Factory) CreateDevice(id device.Identity) (device.Handle, bool) {
	if !Supported(id.Type) {
		return nil, false
	}
	h, err := f.newHandle(device.New(id))
	if err != nil {
		f.logger.Warn("cannot create sensor", "identity", id.String(), "error", err)
		return nil, false
	}
	return h, true
}

// SupportedTypes returns every type this factory loads.
func (f *Factory) SupportedTypes() []string {
	return TypeNames()
}

// LoadDevice rebuilds a handle for a persisted device.
func (f *Factory) LoadDevice(d device.Device) (device.Handle, error) {
	if !Supported(d.Identity.Type) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, d.Identity.Type)
	}
	return f.newHandle(d)
}

// Handle returns the live handle for id, if this factory built one.
func (f *Factory) Handle(id device.Identity) (*Handle, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	h, ok := f.handles[id]
	return h, ok
}

// Readings returns the last known readings of id.
func (f *Factory) Readings(id device.Identity) (map[string]string, bool) {
	h, ok := f.Handle(id)
	if !ok {
		return nil, false
	}
	return h.Readings(), true
}

func (f *Factory) newHandle(d device.Device) (*Handle, error) {
	d = d.DeepCopy()
	if d.DisplayName == "" {
		d.DisplayName = d.Identity.ID
	}

	topic := mqtt.Topics{}.DeviceState(d.Identity.Type, d.Identity.ID)
	if custom := d.Parameters[ParamTopic]; custom != "" {
		if !mqtt.ValidPublishTopic(custom) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTopic, custom)
		}
		topic = strings.TrimSuffix(custom, "/")
	}

	h := &Handle{
		device:    d,
		topic:     topic,
		canonical: topic + "/#",
		publisher: f.publisher,
		ctx:       f.ctx,
		logger:    f.logger,
		readings:  make(map[string]string),
	}

	f.mu.Lock()
	f.handles[d.Identity] = h
	f.mu.Unlock()
	return h, nil
}
