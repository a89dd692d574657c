package notification

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/event"
)

// maxConcurrentSends bounds the per-event fan-out to channels.
const maxConcurrentSends = 4

// DeviceLookup resolves display names for notification titles.
// *device.Registry satisfies it.
type DeviceLookup interface {
	Get(id device.Identity) (device.Device, bool)
}

// Subscriber is the part of the event bus the sender needs.
type Subscriber interface {
	Subscribe(ctx context.Context, kind event.Kind, handler func(context.Context, event.Event) error) error
}

// Sender turns bus events into channel messages.
//
// Device events are routed with Resolve and titled with the device's display
// name; events without a device are routed with ResolveGlobal and titled with
// their kind. A property event carrying the first reading of a value (no
// previous value) is not notified.
type Sender struct {
	router  *Router
	devices DeviceLookup
	logger  Logger
}

// NewSender creates a sender dispatching through router.
func NewSender(router *Router, devices DeviceLookup) *Sender {
	return &Sender{router: router, devices: devices, logger: noopLogger{}}
}

// SetLogger sets the logger for the sender.
func (s *Sender) SetLogger(logger Logger) {
	s.logger = logger
}

// Start subscribes the sender to every device and system event.
func (s *Sender) Start(ctx context.Context, bus Subscriber) error {
	for _, kind := range []event.Kind{event.KindDeviceEvent, event.KindSystemEvent} {
		if err := bus.Subscribe(ctx, kind, s.Handle); err != nil {
			return fmt.Errorf("subscribing to %s: %w", kind, err)
		}
	}
	return nil
}

// Handle dispatches one event. It never fails: delivery problems belong to
// the channels.
func (s *Sender) Handle(ctx context.Context, ev event.Event) error {
	title, targets := s.route(ev)
	if len(targets) == 0 {
		return nil
	}

	s.logger.Debug("dispatching notification",
		"kind", ev.Kind,
		"event_id", ev.ID,
		"channels", len(targets),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSends)
	for _, t := range targets {
		g.Go(func() error {
			t.Channel.SendTextMessage(gctx, title, ev.Message)
			return nil
		})
	}
	return g.Wait()
}

// route picks the title and targets for ev.
func (s *Sender) route(ev event.Event) (string, []Target) {
	if ev.Device == nil {
		return string(ev.Kind), s.router.ResolveGlobal(ev.Kind)
	}
	if ev.Is(event.KindDevicePropertyEvent) && !ev.HasPrevious {
		return "", nil
	}

	title := ev.Device.ID
	if s.devices != nil {
		if d, ok := s.devices.Get(*ev.Device); ok && d.DisplayName != "" {
			title = d.DisplayName
		}
	}
	return title, s.router.Resolve(ev.Kind, *ev.Device)
}
