package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/marceau-events/table-reservation/internal/model"
)

// TableRepo provides read access to the venue's physical tables.  The
// layout is seeded data; nothing in the engine writes to it.
type TableRepo struct {
	db *sql.DB
}

// NewTableRepo returns a new TableRepo bound to the provided database.
func NewTableRepo(db *sql.DB) *TableRepo { return &TableRepo{db: db} }

// GetByID fetches one table.  Returns ErrNotFound when the id is unknown.
func (r *TableRepo) GetByID(ctx context.Context, id uint64) (*model.Table, error) {
	const q = `SELECT id, number, section, capacity FROM venue_tables WHERE id = ?`
	var t model.Table
	err := r.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.Number, &t.Section, &t.Capacity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// List returns every table ordered by section then number.
func (r *TableRepo) List(ctx context.Context) ([]model.Table, error) {
	const q = `SELECT id, number, section, capacity FROM venue_tables ORDER BY section, number`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tables := []model.Table{}
	for rows.Next() {
		var t model.Table
		if err := rows.Scan(&t.ID, &t.Number, &t.Section, &t.Capacity); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}
