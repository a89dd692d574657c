package statehistory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/influxdb"
)

// Subscriber is the part of the event bus the recorder listens on.
type Subscriber interface {
	Subscribe(ctx context.Context, kind event.Kind, handler func(context.Context, event.Event) error) error
}

// PointWriter mirrors numeric values to a time-series store.
// *influxdb.Client satisfies it.
type PointWriter interface {
	WriteProperty(p influxdb.PropertyPoint)
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

// Options configures a Recorder.
type Options struct {
	Repository Repository
	// Points is optional.
	Points PointWriter
	// Retention is how long values are kept. Zero keeps them forever.
	Retention time.Duration
	// Interval is how often the housekeeper prunes. Defaults to one hour.
	Interval time.Duration
	Logger   Logger
}

// Recorder stores every device property change and prunes old values.
type Recorder struct {
	repo      Repository
	points    PointWriter
	retention time.Duration
	interval  time.Duration
	logger    Logger
	now       func() time.Time

	recorded atomic.Uint64
	failed   atomic.Uint64
	pruned   atomic.Uint64

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// Stats counts recorder activity.
type Stats struct {
	Recorded uint64 `json:"recorded"`
	Failed   uint64 `json:"failed"`
	Pruned   uint64 `json:"pruned"`
}

// NewRecorder creates a recorder. Start subscribes it.
func NewRecorder(opts Options) *Recorder {
	r := &Recorder{
		repo:      opts.Repository,
		points:    opts.Points,
		retention: opts.Retention,
		interval:  opts.Interval,
		logger:    opts.Logger,
		now:       time.Now,
		done:      make(chan struct{}),
	}
	if r.interval <= 0 {
		r.interval = time.Hour
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	return r
}

// Start subscribes to property events and, when a retention is set, starts
// the housekeeper. The housekeeper stops when ctx ends or Stop is called.
func (r *Recorder) Start(ctx context.Context, bus Subscriber) error {
	if err := bus.Subscribe(ctx, event.KindDevicePropertyEvent, r.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", event.KindDevicePropertyEvent, err)
	}

	if r.retention > 0 {
		r.wg.Add(1)
		go r.housekeep(ctx)
	}
	r.logger.Info("state history recorder started", "retention", r.retention.String(), "interval", r.interval.String())
	return nil
}

// Stop halts the housekeeper and waits for it to exit.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

// Stats returns a snapshot of the recorder counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Recorded: r.recorded.Load(),
		Failed:   r.failed.Load(),
		Pruned:   r.pruned.Load(),
	}
}

func (r *Recorder) handle(ctx context.Context, ev event.Event) error {
	if ev.Device == nil {
		return nil
	}
	property := ev.Attribute(event.AttrProperty)
	value := ev.Attribute(event.AttrValue)
	if property == "" {
		return nil
	}

	v := Value{
		Device:     *ev.Device,
		Property:   property,
		Value:      value,
		Numeric:    numericValue(value),
		Kind:       ev.Kind,
		RecordedAt: ev.OccurredAt,
	}
	if _, err := r.repo.Record(ctx, v); err != nil {
		r.failed.Add(1)
		r.logger.Error("recording property value",
			"identity", v.Device.String(),
			"property", property,
			"error", err,
		)
		return err
	}
	r.recorded.Add(1)

	if r.points != nil && v.Numeric != nil {
		r.points.WriteProperty(influxdb.PropertyPoint{
			DeviceType: v.Device.Type,
			DeviceID:   v.Device.ID,
			Property:   property,
			EventKind:  string(ev.Kind),
			Value:      *v.Numeric,
			Time:       ev.OccurredAt,
		})
	}
	return nil
}

// numericValue interprets value as a number; binary states map to 0 and 1.
func numericValue(value string) *float64 {
	var f float64
	switch value {
	case "true":
		f = 1
	case "false":
		f = 0
	default:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil
		}
		f = parsed
	}
	return &f
}

// Prune removes values older than the retention period now.
func (r *Recorder) Prune(ctx context.Context) (int64, error) {
	if r.retention <= 0 {
		return 0, nil
	}
	n, err := r.repo.Prune(ctx, r.now().Add(-r.retention))
	if err != nil {
		return 0, err
	}
	r.pruned.Add(uint64(n)) //nolint:gosec // RowsAffected is never negative
	return n, nil
}

func (r *Recorder) housekeep(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			n, err := r.Prune(ctx)
			if err != nil {
				r.logger.Error("pruning state history", "error", err)
				continue
			}
			if n > 0 {
				r.logger.Info("state history pruned", "rows", n)
			}
		}
	}
}
