package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/marceau-events/table-reservation/internal/model"
)

// BookingRepo provides data access to the bookings table.  Rows are never
// hard deleted; cancellations and refunds are status writes.  All
// mutations go through compare-and-swap on the version column so admin
// edits racing each other surface as ErrVersionConflict instead of lost
// updates.  The uq_blocking_booking generated-column index enforces at most
// one blocking-status booking per (event_id, table_id).
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, event_id, table_id, user_id, party_size, guest_name, guest_email,
               selections, payment_ref, amount_cents, refund_cents, refund_ref, status,
               disputed, lock_token, version, modified_by, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var (
		b       model.Booking
		selsRaw []byte
	)
	err := row.Scan(&b.ID, &b.EventID, &b.TableID, &b.UserID, &b.PartySize, &b.GuestName, &b.GuestEmail,
		&selsRaw, &b.PaymentRef, &b.AmountCents, &b.RefundCents, &b.RefundRef, &b.Status,
		&b.Disputed, &b.LockToken, &b.Version, &b.ModifiedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := scanJSON(selsRaw, &b.Selections); err != nil {
		return nil, err
	}
	return &b, nil
}

const insertBookingSQL = `INSERT INTO bookings
               (event_id, table_id, user_id, party_size, guest_name, guest_email, selections,
                payment_ref, amount_cents, status, lock_token, modified_by)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertBooking(ctx context.Context, ex interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, b *model.Booking) (uint64, error) {
	sels, err := jsonColumn(b.Selections)
	if err != nil {
		return 0, err
	}
	res, err := ex.ExecContext(ctx, insertBookingSQL,
		b.EventID, b.TableID, b.UserID, b.PartySize, b.GuestName, b.GuestEmail, sels,
		b.PaymentRef, b.AmountCents, b.Status, b.LockToken, b.ModifiedBy)
	if err != nil {
		if isDuplicateKey(err, "uq_blocking_booking") {
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

// Create inserts a booking in the status carried on b.  A blocking-status
// insert that collides with an existing blocking booking for the same
// (event_id, table_id) returns ErrTableTaken.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) (uint64, error) {
	return insertBooking(ctx, r.db, b)
}

// GetByID fetches one booking.  Returns ErrNotFound when the id is unknown.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// GetByPaymentRef fetches the booking carrying this gateway payment
// reference, any status.  Returns ErrNotFound when none exists.
func (r *BookingRepo) GetByPaymentRef(ctx context.Context, ref string) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_ref = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, ref))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// BlockingForTable returns the booking that currently occupies the pair
// with a blocking status, or nil when the table carries none.  Pass a
// non-zero excludeID to ignore the booking being edited during
// reassignment checks.
func (r *BookingRepo) BlockingForTable(ctx context.Context, eventID, tableID, excludeID uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
               WHERE event_id = ? AND table_id = ?
                 AND status IN (?, ?, ?, ?)
                 AND id <> ?
               LIMIT 1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, eventID, tableID,
		model.BookingConfirmed, model.BookingReserved, model.BookingComp, model.BookingModified,
		excludeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// ActiveByUserAndEvent returns the user's bookings for the event that have
// not been canceled or refunded.  User id 0 marks guest checkouts and is
// never queried; callers skip the duplicate check for guests.
func (r *BookingRepo) ActiveByUserAndEvent(ctx context.Context, userID, eventID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
               WHERE user_id = ? AND event_id = ? AND status NOT IN (?, ?)`
	rows, err := r.db.QueryContext(ctx, q, userID, eventID, model.BookingCanceled, model.BookingRefunded)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bookings := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// CountBookedSeats sums party sizes over every booking for the event that
// still counts toward seats (not canceled, not refunded).
func (r *BookingRepo) CountBookedSeats(ctx context.Context, eventID uint64) (uint32, error) {
	const q = `SELECT COALESCE(SUM(party_size), 0) FROM bookings
               WHERE event_id = ? AND status NOT IN (?, ?)`
	var n uint32
	err := r.db.QueryRowContext(ctx, q, eventID, model.BookingCanceled, model.BookingRefunded).Scan(&n)
	return n, err
}

// CountBookedTables counts distinct tables occupied by blocking-status
// bookings for the event.
func (r *BookingRepo) CountBookedTables(ctx context.Context, eventID uint64) (uint32, error) {
	const q = `SELECT COUNT(DISTINCT table_id) FROM bookings
               WHERE event_id = ? AND table_id IS NOT NULL AND status IN (?, ?, ?, ?)`
	var n uint32
	err := r.db.QueryRowContext(ctx, q, eventID,
		model.BookingConfirmed, model.BookingReserved, model.BookingComp, model.BookingModified).Scan(&n)
	return n, err
}

// UpdateCAS writes every mutable field of the booking and bumps its
// version, guarded by the version the caller read.  Zero affected rows
// means the row moved underneath the caller (ErrVersionConflict) or never
// existed (ErrNotFound); the caller re-reads and retries the edit.
func (r *BookingRepo) UpdateCAS(ctx context.Context, b *model.Booking) error {
	sels, err := jsonColumn(b.Selections)
	if err != nil {
		return err
	}
	const q = `UPDATE bookings
               SET table_id = ?, party_size = ?, guest_name = ?, guest_email = ?, selections = ?,
                   payment_ref = ?, amount_cents = ?, refund_cents = ?, refund_ref = ?, status = ?,
                   disputed = ?, modified_by = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
               WHERE id = ? AND version = ?`
	res, err := r.db.ExecContext(ctx, q,
		b.TableID, b.PartySize, b.GuestName, b.GuestEmail, sels,
		b.PaymentRef, b.AmountCents, b.RefundCents, b.RefundRef, b.Status,
		b.Disputed, b.ModifiedBy,
		b.ID, b.Version)
	if err != nil {
		if isDuplicateKey(err, "uq_blocking_booking") {
			return ErrTableTaken
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, b.ID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrVersionConflict
	}
	b.Version++
	return nil
}

// CreateConfirmedTx inserts a confirmed booking and completes the
// originating hold in one transaction, so a crash between the two cannot
// leave a confirmed booking with a still-active hold.  Returns the new
// booking id and whether this call completed the hold.
func (r *BookingRepo) CreateConfirmedTx(ctx context.Context, b *model.Booking, lockToken string) (uint64, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b.Status = model.BookingConfirmed
	id, err := insertBooking(ctx, tx, b)
	if err != nil {
		return 0, false, err
	}

	completed := false
	if lockToken != "" {
		res, err := tx.ExecContext(ctx,
			`UPDATE seat_holds SET status = ? WHERE lock_token = ? AND status = ?`,
			model.HoldCompleted, lockToken, model.HoldActive)
		if err != nil {
			return 0, false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, false, err
		}
		completed = n == 1
	}

	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	committed = true
	return id, completed, nil
}

// ConfirmPendingTx moves a pending booking to confirmed, stamps the
// gateway payment reference and completes the originating hold in one
// transaction.  The version guard applies; zero affected rows rolls back
// and returns ErrVersionConflict.
func (r *BookingRepo) ConfirmPendingTx(ctx context.Context, bookingID, version uint64, paymentRef, lockToken string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, payment_ref = NULLIF(?, ''), version = version + 1,
                updated_at = CURRENT_TIMESTAMP
          WHERE id = ? AND version = ? AND status = ?`,
		model.BookingConfirmed, paymentRef, bookingID, version, model.BookingPending)
	if err != nil {
		if isDuplicateKey(err, "uq_blocking_booking") {
			return ErrTableTaken
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}

	if lockToken != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE seat_holds SET status = ? WHERE lock_token = ? AND status = ?`,
			model.HoldCompleted, lockToken, model.HoldActive); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
