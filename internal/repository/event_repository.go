package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/marceau-events/table-reservation/internal/model"
)

// EventRepo provides data access to the events table.  Capacity totals are
// edited by staff; the available_seats/available_tables counters are derived
// and only ever written through RefreshAvailability.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the provided database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, name, starts_at, seating_type, total_seats, total_tables,
               available_seats, available_tables, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Name, &e.StartsAt, &e.SeatingType, &e.TotalSeats, &e.TotalTables,
		&e.AvailableSeats, &e.AvailableTables, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event.  The derived availability counters start at
// the full capacity.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) (uint64, error) {
	const q = `INSERT INTO events (name, starts_at, seating_type, total_seats, total_tables, available_seats, available_tables)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		e.Name, e.StartsAt.UTC(), e.SeatingType, e.TotalSeats, e.TotalTables, e.TotalSeats, e.TotalTables)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches one event.  Returns ErrNotFound when the id is unknown.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	e, err := scanEvent(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// List returns all events ordered by start time ascending.  When no events
// exist it returns an empty slice and nil error.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events ORDER BY starts_at ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Update writes staff-editable fields.  The derived counters are excluded
// on purpose; RefreshAvailability owns them.
func (r *EventRepo) Update(ctx context.Context, e *model.Event) error {
	const q = `UPDATE events
               SET name = ?, starts_at = ?, seating_type = ?, total_seats = ?, total_tables = ?, updated_at = CURRENT_TIMESTAMP
               WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, e.Name, e.StartsAt.UTC(), e.SeatingType, e.TotalSeats, e.TotalTables, e.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either the id is unknown or nothing changed; distinguish so
		// callers can 404 correctly.
		var one int
		if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, e.ID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
	}
	return nil
}

// RefreshAvailability stores freshly computed availability counters for the
// event.  Only the availability calculator calls this.
func (r *EventRepo) RefreshAvailability(ctx context.Context, eventID uint64, seats, tables uint32) error {
	const q = `UPDATE events SET available_seats = ?, available_tables = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, seats, tables, eventID)
	return err
}
