package repository

import (
	"context"
	"strings"

	"github.com/marceau-events/table-reservation/internal/model"
)

// EventSearchQuery filters and paginates the public event search.
type EventSearchQuery struct {
	Name        string
	SeatingType string
	TimeFilter  string // "upcoming" (default), "past", "any"
	Page        int
	PageSize    int
}

// Search returns matching events plus the unpaginated match count.  All
// stored timestamps are UTC, so the time filters compare against
// UTC_TIMESTAMP().
func (r *EventRepo) Search(ctx context.Context, q EventSearchQuery) ([]model.Event, int64, error) {
	where := []string{}
	args := []any{}

	switch strings.ToLower(q.TimeFilter) {
	case "any":
	case "past":
		where = append(where, "starts_at < UTC_TIMESTAMP()")
	default:
		where = append(where, "starts_at >= UTC_TIMESTAMP()")
	}
	if q.Name != "" {
		where = append(where, "LOWER(name) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Name)+"%")
	}
	if q.SeatingType != "" {
		where = append(where, "seating_type = ?")
		args = append(args, q.SeatingType)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT ` + eventColumns + ` FROM events WHERE ` + cond + `
               ORDER BY starts_at ASC LIMIT ? OFFSET ?`
	pageArgs := append(append([]any{}, args...), q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := r.db.QueryContext(ctx, dataSQL, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, *e)
	}
	return events, total, rows.Err()
}
