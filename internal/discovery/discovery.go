package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
)

// Factory recognises and builds the devices published under one topic root.
type Factory interface {
	// RootTopic is the prefix every topic of this family starts with,
	// including the trailing separator (e.g. "graylogic/state/").
	RootTopic() string

	// IdentityFromTopic extracts the device identity from topic.
	IdentityFromTopic(topic string) (device.Identity, bool)

	// CreateDevice builds a handle for id, or declines.
	CreateDevice(id device.Identity) (device.Handle, bool)
}

// Transport is the message transport discovery listens on.
type Transport interface {
	Subscribe(filter string, handler func(topic string, payload []byte)) error
}

// Registry is the part of the device registry discovery needs.
// *device.Registry satisfies it.
type Registry interface {
	Register(d device.Device) bool
	Contains(id device.Identity) bool
}

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

// Stats counts what discovery did with the messages it received.
type Stats struct {
	Messages  uint64 `json:"messages"`
	Created   uint64 `json:"created"`
	Declined  uint64 `json:"declined"`
	Discarded uint64 `json:"discarded"`
	Failed    uint64 `json:"failed"`
	Pending   int64  `json:"pending"`
}

// Service turns first messages from unknown devices into registered devices.
type Service struct {
	transport Transport
	registry  Registry
	publisher Publisher
	factories []Factory
	logger    Logger

	seen  sync.Map // device.Identity -> struct{}
	group singleflight.Group

	// pending holds registered handles whose canonical subscription failed.
	pending      sync.Map // device.Identity -> device.Handle
	pendingCount atomic.Int64

	started atomic.Bool
	ctx     context.Context // set by Start; used for event publishing

	messages  atomic.Uint64
	created   atomic.Uint64
	declined  atomic.Uint64
	discarded atomic.Uint64
	failed    atomic.Uint64
}

// New creates a discovery service. Nothing happens until Start.
func New(transport Transport, registry Registry, publisher Publisher, factories ...Factory) *Service {
	return &Service{
		transport: transport,
		registry:  registry,
		publisher: publisher,
		factories: factories,
		logger:    noopLogger{},
		ctx:       context.Background(),
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// Start subscribes every factory's root on the transport. ctx bounds the
// publishing of discovery events.
func (s *Service) Start(ctx context.Context) error {
	if len(s.factories) == 0 {
		return ErrNoFactories
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	s.ctx = ctx

	for _, f := range s.factories {
		filter := f.RootTopic() + "#"
		if err := s.transport.Subscribe(filter, func(topic string, payload []byte) {
			s.handleMessage(f, topic, payload)
		}); err != nil {
			return fmt.Errorf("subscribing %s: %w", filter, err)
		}
		s.logger.Info("device discovery listening", "filter", filter)
	}
	return nil
}

// MarkSeen records id as known so discovery never constructs it. The loader
// calls it for every device it registers.
func (s *Service) MarkSeen(id device.Identity) {
	s.seen.Store(id, struct{}{})
}

func (s *Service) isSeen(id device.Identity) bool {
	if _, ok := s.seen.Load(id); ok {
		return true
	}
	return s.registry.Contains(id)
}

func (s *Service) handleMessage(f Factory, topic string, payload []byte) {
	s.messages.Add(1)

	id, ok := f.IdentityFromTopic(topic)
	if !ok {
		s.discarded.Add(1)
		return
	}
	if s.isSeen(id) {
		if _, ok := s.pending.Load(id); ok {
			s.group.Do(id.String(), func() (any, error) {
				s.attachPending(id, topic, payload)
				return nil, nil
			})
			return
		}
		s.discarded.Add(1)
		return
	}

	// Concurrent callers for the same identity share one execution; the
	// others return once it finishes and their message is dropped.
	_, _, shared := s.group.Do(id.String(), func() (any, error) {
		s.discover(f, id, topic, payload)
		return nil, nil
	})
	if shared {
		s.discarded.Add(1)
	}
}

// discover runs inside the per-identity critical section.
func (s *Service) discover(f Factory, id device.Identity, topic string, payload []byte) {
	if s.isSeen(id) {
		s.discarded.Add(1)
		return
	}

	handle, ok := f.CreateDevice(id)
	if !ok {
		s.declined.Add(1)
		s.logger.Debug("factory declined device", "identity", id.String(), "topic", topic)
		return
	}

	if !s.registry.Register(handle.Device()) {
		// Registered concurrently by the loader; its subscription is in place.
		s.MarkSeen(id)
		s.discarded.Add(1)
		return
	}
	s.created.Add(1)

	ev := event.NewDeviceEvent(event.KindDeviceRegistered, id, fmt.Sprintf("discovered %s", id)).
		WithAttribute(event.AttrSource, topic)
	if err := s.publisher.Publish(s.ctx, ev); err != nil {
		s.logger.Error("publishing device registered event", "identity", id.String(), "error", err)
	}
	s.MarkSeen(id)

	canonical := handle.CanonicalTopic()
	if mqtt.TopicMatches(canonical, topic) {
		handle.ProcessMessage(topic, payload)
	}

	if err := s.transport.Subscribe(canonical, handle.ProcessMessage); err != nil {
		s.failed.Add(1)
		s.pending.Store(id, handle)
		s.pendingCount.Add(1)
		s.logger.Error("subscribing discovered device, will retry",
			"identity", id.String(),
			"topic", canonical,
			"error", err,
		)
		return
	}

	s.logger.Info("device discovered", "identity", id.String(), "topic", canonical)
}

// attachPending retries the canonical subscription of a pending handle. It
// runs inside the identity's critical section. When topic is not empty the
// triggering payload is delivered, since the new subscription missed it.
func (s *Service) attachPending(id device.Identity, topic string, payload []byte) bool {
	v, ok := s.pending.Load(id)
	if !ok {
		return false
	}
	handle := v.(device.Handle) //nolint:errcheck // only handles are stored
	canonical := handle.CanonicalTopic()

	if err := s.transport.Subscribe(canonical, handle.ProcessMessage); err != nil {
		s.failed.Add(1)
		s.logger.Warn("subscribing pending device", "identity", id.String(), "topic", canonical, "error", err)
		return false
	}
	s.pending.Delete(id)
	s.pendingCount.Add(-1)

	if topic != "" && mqtt.TopicMatches(canonical, topic) {
		handle.ProcessMessage(topic, payload)
	}
	s.logger.Info("pending device attached", "identity", id.String(), "topic", canonical)
	return true
}

// RetryPending retries the canonical subscription of every discovered device
// whose first attempt failed. It returns the number attached. The transport's
// reconnect callback calls it.
func (s *Service) RetryPending() int {
	attached := 0
	s.pending.Range(func(k, _ any) bool {
		id := k.(device.Identity) //nolint:errcheck // only identities are stored
		v, _, _ := s.group.Do(id.String(), func() (any, error) {
			return s.attachPending(id, "", nil), nil
		})
		if ok, _ := v.(bool); ok {
			attached++
		}
		return true
	})
	return attached
}

// Stats returns a snapshot of the discovery counters.
func (s *Service) Stats() Stats {
	return Stats{
		Messages:  s.messages.Load(),
		Created:   s.created.Load(),
		Declined:  s.declined.Load(),
		Discarded: s.discarded.Load(),
		Failed:    s.failed.Load(),
		Pending:   s.pendingCount.Load(),
	}
}

// Subscribe attaches an already registered handle to its canonical topic.
// The loader uses it so loaded and discovered devices share one path.
func Subscribe(transport Transport, handle device.Handle) error {
	if transport == nil {
		return errors.New("discovery: nil transport")
	}
	canonical := handle.CanonicalTopic()
	if err := transport.Subscribe(canonical, handle.ProcessMessage); err != nil {
		return fmt.Errorf("subscribing %s: %w", canonical, err)
	}
	return nil
}
