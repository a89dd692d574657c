package statehistory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/event"
)

// Page size bounds for history queries.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Value is one recorded property change.
type Value struct {
	ID         int64           `json:"id"`
	Device     device.Identity `json:"device"`
	Property   string          `json:"property"`
	Value      string          `json:"value"`
	Numeric    *float64        `json:"numeric,omitempty"`
	Kind       event.Kind      `json:"kind"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Filter selects history values of one device.
type Filter struct {
	Device   device.Identity
	Property string    // optional
	Since    time.Time // optional, inclusive
	Until    time.Time // optional, exclusive
	Limit    int       // default 50, max 200
	Offset   int
}

// Page is a page of history values, most recent first.
type Page struct {
	Values []Value `json:"values"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Repository stores property history. Implementations must be thread-safe.
type Repository interface {
	Record(ctx context.Context, v Value) (int64, error)
	List(ctx context.Context, filter Filter) (*Page, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteRepository implements Repository on the device_property_values table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository backed by db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts v and returns its row id. A zero RecordedAt means now.
func (r *SQLiteRepository) Record(ctx context.Context, v Value) (int64, error) {
	if err := v.Device.Validate(); err != nil {
		return 0, err
	}
	if v.RecordedAt.IsZero() {
		v.RecordedAt = time.Now()
	}

	var numeric any
	if v.Numeric != nil {
		numeric = *v.Numeric
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO device_property_values
		 (device_id, device_type, property, value, numeric_value, event_kind, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.Device.ID,
		v.Device.Type,
		v.Property,
		v.Value,
		numeric,
		string(v.Kind),
		v.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting property value: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading property value id: %w", err)
	}
	return id, nil
}

// List returns the values matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*Page, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	conditions := []string{"device_type = ?", "device_id = ?"}
	args := []any{filter.Device.Type, filter.Device.ID}
	if filter.Property != "" {
		conditions = append(conditions, "property = ?")
		args = append(args, filter.Property)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "recorded_at < ?")
		args = append(args, filter.Until.UTC().Format(timeLayout))
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM device_property_values " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting property values: %w", err)
	}

	query := "SELECT id, device_id, device_type, property, value, numeric_value, event_kind, recorded_at " + //nolint:gosec // WHERE built from parameterised conditions
		"FROM device_property_values " + where + " ORDER BY recorded_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying property values: %w", err)
	}
	defer rows.Close()

	values := []Value{}
	for rows.Next() {
		var (
			v          Value
			numeric    sql.NullFloat64
			kind       string
			recordedAt string
		)
		if err := rows.Scan(&v.ID, &v.Device.ID, &v.Device.Type, &v.Property, &v.Value, &numeric, &kind, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning property value: %w", err)
		}
		if numeric.Valid {
			n := numeric.Float64
			v.Numeric = &n
		}
		v.Kind = event.Kind(kind)
		v.RecordedAt, err = time.Parse(timeLayout, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at of value %d: %w", v.ID, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating property values: %w", err)
	}

	return &Page{Values: values, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// Prune deletes every value recorded before the cutoff and returns how many
// rows went.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM device_property_values WHERE recorded_at < ?`,
		before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning property values: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned property values: %w", err)
	}
	return n, nil
}
