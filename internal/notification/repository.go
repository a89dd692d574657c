package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/event"
)

// StoredSubscription is a subscription persisted by a Repository.
type StoredSubscription struct {
	ID int64 `json:"id"`
	Subscription
	CreatedAt time.Time `json:"created_at"`
}

// Repository persists subscriptions added at runtime so they survive a
// restart. Implementations must be thread-safe.
type Repository interface {
	Create(ctx context.Context, sub Subscription) (StoredSubscription, error)
	List(ctx context.Context) ([]StoredSubscription, error)
}

// SQLiteRepository implements Repository on the notification_subscriptions table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository backed by db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts sub and returns it with its assigned id.
func (r *SQLiteRepository) Create(ctx context.Context, sub Subscription) (StoredSubscription, error) {
	devices := sub.Devices
	if devices == nil {
		devices = []device.Identity{}
	}
	devicesJSON, err := json.Marshal(devices)
	if err != nil {
		return StoredSubscription{}, fmt.Errorf("marshalling devices: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO notification_subscriptions (channel_id, event_kind, global, devices, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sub.ChannelID,
		string(sub.Kind),
		sub.Global,
		string(devicesJSON),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return StoredSubscription{}, fmt.Errorf("inserting subscription: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return StoredSubscription{}, fmt.Errorf("reading subscription id: %w", err)
	}
	return StoredSubscription{ID: id, Subscription: sub, CreatedAt: now}, nil
}

// List returns every stored subscription in insertion order.
func (r *SQLiteRepository) List(ctx context.Context) ([]StoredSubscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, channel_id, event_kind, global, devices, created_at
		 FROM notification_subscriptions
		 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []StoredSubscription
	for rows.Next() {
		var (
			s           StoredSubscription
			kind        string
			devicesJSON string
			createdAt   string
		)
		if err := rows.Scan(&s.ID, &s.ChannelID, &kind, &s.Global, &devicesJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		s.Kind = event.Kind(kind)
		if err := json.Unmarshal([]byte(devicesJSON), &s.Devices); err != nil {
			return nil, fmt.Errorf("unmarshalling devices of subscription %d: %w", s.ID, err)
		}
		if len(s.Devices) == 0 {
			s.Devices = nil
		}
		s.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at of subscription %d: %w", s.ID, err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subscriptions: %w", err)
	}
	return subs, nil
}

// Replay applies every stored subscription to router. Entries that no longer
// fit (kind dropped from the catalog, channel no longer configured) are
// logged and skipped.
func Replay(ctx context.Context, repo Repository, router *Router, logger Logger) (int, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	subs, err := repo.List(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, s := range subs {
		if err := Apply(router, s.Subscription); err != nil {
			logger.Warn("skipping stored notification subscription",
				"id", s.ID,
				"kind", s.Kind,
				"channel_id", s.ChannelID,
				"error", err,
			)
			continue
		}
		applied++
	}
	logger.Info("stored notification subscriptions replayed", "count", applied)
	return applied, nil
}

// Add validates sub against router, applies it and persists it. Nothing is
// stored when the router rejects the subscription.
func Add(ctx context.Context, repo Repository, router *Router, sub Subscription) (StoredSubscription, error) {
	if sub.ChannelID == "" {
		return StoredSubscription{}, fmt.Errorf("%w: channel id is required", ErrInvalidSubscription)
	}
	if !sub.Kind.Known() {
		return StoredSubscription{}, fmt.Errorf("%w: %q", ErrUnsupportedEventKind, sub.Kind)
	}
	sub.Global = !sub.Kind.DeviceScoped()
	if sub.Global && len(sub.Devices) > 0 {
		return StoredSubscription{}, fmt.Errorf("%w: kind %s takes no devices", ErrInvalidSubscription, sub.Kind)
	}
	for _, id := range sub.Devices {
		if err := id.Validate(); err != nil {
			return StoredSubscription{}, fmt.Errorf("%w: %w", ErrInvalidSubscription, err)
		}
	}
	if _, ok := router.Channel(sub.ChannelID); !ok {
		return StoredSubscription{}, fmt.Errorf("%w: %q", ErrUnknownChannel, sub.ChannelID)
	}

	stored, err := repo.Create(ctx, sub)
	if err != nil {
		return StoredSubscription{}, err
	}
	if err := Apply(router, sub); err != nil {
		return StoredSubscription{}, err
	}
	return stored, nil
}
