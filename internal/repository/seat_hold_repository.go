package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/marceau-events/table-reservation/internal/model"
)

// SeatHoldRepo provides data access to the seat_holds table.  Expiry
// decisions are made by the caller against an injected clock; this layer
// only persists the transitions.  The uq_active_hold generated-column index
// guarantees at most one active hold per (event_id, table_id) even when two
// writers race past the application-level check.
type SeatHoldRepo struct {
	db *sql.DB
}

// NewSeatHoldRepo returns a new SeatHoldRepo bound to the provided database.
func NewSeatHoldRepo(db *sql.DB) *SeatHoldRepo { return &SeatHoldRepo{db: db} }

const seatHoldColumns = `id, event_id, table_id, seat_numbers, user_id, session_id,
               lock_token, selections, status, held_at, expires_at, created_at`

func scanSeatHold(row interface{ Scan(...any) error }) (*model.SeatHold, error) {
	var (
		h        model.SeatHold
		seatsRaw []byte
		selsRaw  []byte
	)
	err := row.Scan(&h.ID, &h.EventID, &h.TableID, &seatsRaw, &h.UserID, &h.SessionID,
		&h.LockToken, &selsRaw, &h.Status, &h.HeldAt, &h.ExpiresAt, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := scanJSON(seatsRaw, &h.SeatNumbers); err != nil {
		return nil, err
	}
	if err := scanJSON(selsRaw, &h.Selections); err != nil {
		return nil, err
	}
	return &h, nil
}

// Create inserts a hold with status=active.  When the unique index over
// active holds rejects the insert because another active hold already owns
// the pair, it returns ErrTableTaken; the caller reports unavailable, it
// does not retry.
func (r *SeatHoldRepo) Create(ctx context.Context, h *model.SeatHold) (uint64, error) {
	seats, err := jsonColumn(h.SeatNumbers)
	if err != nil {
		return 0, err
	}
	sels, err := jsonColumn(h.Selections)
	if err != nil {
		return 0, err
	}
	const q = `INSERT INTO seat_holds (event_id, table_id, seat_numbers, user_id, session_id, lock_token, selections, status, held_at, expires_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		h.EventID, h.TableID, seats, h.UserID, h.SessionID, h.LockToken, sels,
		model.HoldActive, h.HeldAt.UTC(), h.ExpiresAt.UTC())
	if err != nil {
		if isDuplicateKey(err, "uq_active_hold") {
			return 0, ErrTableTaken
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByToken fetches a hold by its lock token regardless of status.
// Returns ErrNotFound for an unknown token.
func (r *SeatHoldRepo) GetByToken(ctx context.Context, token string) (*model.SeatHold, error) {
	const q = `SELECT ` + seatHoldColumns + ` FROM seat_holds WHERE lock_token = ?`
	h, err := scanSeatHold(r.db.QueryRowContext(ctx, q, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return h, nil
}

// ActiveByEventAndTable returns every hold with status=active for the pair,
// including holds already past their TTL that no sweep or read has
// transitioned yet.  Callers apply lazy expiry against their own clock.
func (r *SeatHoldRepo) ActiveByEventAndTable(ctx context.Context, eventID, tableID uint64) ([]model.SeatHold, error) {
	const q = `SELECT ` + seatHoldColumns + ` FROM seat_holds
               WHERE event_id = ? AND table_id = ? AND status = ?`
	rows, err := r.db.QueryContext(ctx, q, eventID, tableID, model.HoldActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	holds := []model.SeatHold{}
	for rows.Next() {
		h, err := scanSeatHold(rows)
		if err != nil {
			return nil, err
		}
		holds = append(holds, *h)
	}
	return holds, rows.Err()
}

// Expire transitions one hold from active to expired.  Expiring a hold
// that already left active is a no-op, so concurrent lazy-expiry readers
// cannot clobber a completion.
func (r *SeatHoldRepo) Expire(ctx context.Context, id uint64) error {
	const q = `UPDATE seat_holds SET status = ? WHERE id = ? AND status = ?`
	_, err := r.db.ExecContext(ctx, q, model.HoldExpired, id, model.HoldActive)
	return err
}

// Complete transitions the hold with this token from active to completed.
// It reports whether this call performed the transition; completing a
// missing, completed or expired hold returns false and no error.
func (r *SeatHoldRepo) Complete(ctx context.Context, token string) (bool, error) {
	const q = `UPDATE seat_holds SET status = ? WHERE lock_token = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, model.HoldCompleted, token, model.HoldActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CompleteTx is Complete inside an existing transaction, for callers that
// must pair the completion with a booking insert atomically.  The caller
// commits or rolls back.
func (r *SeatHoldRepo) CompleteTx(ctx context.Context, tx *sql.Tx, token string) (bool, error) {
	const q = `UPDATE seat_holds SET status = ? WHERE lock_token = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, model.HoldCompleted, token, model.HoldActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExpireStale bulk-transitions every active hold whose TTL elapsed at or
// before now.  Returns the number of holds transitioned.  Storage hygiene
// only; reads never trust an active status without checking expiry.
func (r *SeatHoldRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	const q = `UPDATE seat_holds SET status = ? WHERE status = ? AND expires_at <= ?`
	res, err := r.db.ExecContext(ctx, q, model.HoldExpired, model.HoldActive, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
