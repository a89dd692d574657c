package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/nerrad567/gray-logic-hub/internal/event"
)

// DefaultBufferSize is the per-subscriber output buffer.
const DefaultBufferSize = 256

// metadataKind carries the concrete event kind on every message.
const metadataKind = "kind"

// Handler processes one event. Returned errors are logged; the message is
// acked either way.
type Handler = func(ctx context.Context, ev event.Event) error

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

// Config configures the bus.
type Config struct {
	// BufferSize is the per-subscriber channel buffer. Zero uses DefaultBufferSize.
	BufferSize int64
}

// Bus publishes domain events to in-process subscribers.
//
// Thread Safety: all methods are safe for concurrent use.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger Logger

	wg     sync.WaitGroup
	closed atomic.Bool

	published atomic.Uint64
	handled   atomic.Uint64
	failed    atomic.Uint64
}

// Stats is a snapshot of bus counters.
type Stats struct {
	Published uint64 `json:"published"`
	Handled   uint64 `json:"handled"`
	Failed    uint64 `json:"failed"`
}

// New creates a bus. slogger receives watermill's internal logs; nil
// silences them.
func New(cfg Config, slogger *slog.Logger) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}

	var wmLogger watermill.LoggerAdapter = watermill.NopLogger{}
	if slogger != nil {
		wmLogger = watermill.NewSlogLogger(slogger)
	}

	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: cfg.BufferSize}, wmLogger),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for handler failures.
func (b *Bus) SetLogger(logger Logger) {
	b.logger = logger
}

// Topic returns the topic events of kind are published on.
func Topic(kind event.Kind) string {
	return "events." + string(kind)
}

// Publish sends ev to the subscribers of its kind and of every ancestor kind.
func (b *Bus) Publish(ctx context.Context, ev event.Event) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshalling event %s: %w", ev.ID, err)
	}

	for _, kind := range ev.Kinds() {
		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set(metadataKind, string(ev.Kind))
		msg.SetContext(ctx)

		if err := b.pubsub.Publish(Topic(kind), msg); err != nil {
			return fmt.Errorf("publishing %s to %s: %w", ev.Kind, Topic(kind), err)
		}
	}
	b.published.Add(1)
	return nil
}

// Subscribe runs handler for every event of kind or of any of its subtypes
// until ctx is cancelled or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, kind event.Kind, handler Handler) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if !kind.Known() {
		return fmt.Errorf("subscribing: %w", event.ErrUnknownKind)
	}

	messages, err := b.pubsub.Subscribe(ctx, Topic(kind))
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", Topic(kind), err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range messages {
			b.dispatch(kind, msg, handler)
		}
	}()
	return nil
}

func (b *Bus) dispatch(kind event.Kind, msg *message.Message, handler Handler) {
	defer msg.Ack()

	var ev event.Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		b.failed.Add(1)
		b.logger.Error("dropping undecodable event", "topic", Topic(kind), "message_id", msg.UUID, "error", err)
		return
	}

	if err := handler(msg.Context(), ev); err != nil {
		b.failed.Add(1)
		b.logger.Error("event handler failed",
			"subscription", kind,
			"kind", ev.Kind,
			"event_id", ev.ID,
			"error", err,
		)
		return
	}
	b.handled.Add(1)
}

// Stats returns the bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Handled:   b.handled.Load(),
		Failed:    b.failed.Load(),
	}
}

// Close stops accepting events, closes every subscription and waits for
// running handlers to return.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := b.pubsub.Close()
	b.wg.Wait()
	if err != nil {
		return fmt.Errorf("closing pubsub: %w", err)
	}
	return nil
}
