package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/marceau-events/table-reservation/internal/model"
)

// PaymentEventRepo is the durable dedup log for gateway webhooks.  The
// unique index on gateway_event_id is what makes at-least-once delivery
// safe: the first writer records the event, every later delivery of the
// same id sees ErrDuplicateEvent and reads back the recorded outcome.
type PaymentEventRepo struct {
	db *sql.DB
}

// NewPaymentEventRepo returns a new PaymentEventRepo bound to the provided
// database.
func NewPaymentEventRepo(db *sql.DB) *PaymentEventRepo { return &PaymentEventRepo{db: db} }

const paymentEventColumns = `id, gateway_event_id, kind, outcome, booking_id, note, amount_cents, created_at`

func scanPaymentEvent(row interface{ Scan(...any) error }) (*model.PaymentEvent, error) {
	var pe model.PaymentEvent
	err := row.Scan(&pe.ID, &pe.GatewayEventID, &pe.Kind, &pe.Outcome, &pe.BookingID,
		&pe.Note, &pe.AmountCents, &pe.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &pe, nil
}

// Record inserts the event with outcome=received, claiming it for
// processing.  Returns ErrDuplicateEvent when the gateway event id was
// already recorded.
func (r *PaymentEventRepo) Record(ctx context.Context, gatewayEventID, kind string, amountCents uint32) (uint64, error) {
	const q = `INSERT INTO payment_events (gateway_event_id, kind, outcome, amount_cents) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, gatewayEventID, kind, model.OutcomeReceived, amountCents)
	if err != nil {
		if isDuplicateKey(err, "") {
			return 0, ErrDuplicateEvent
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByGatewayID fetches the recorded event for a gateway event id.
// Returns ErrNotFound when the id has never been seen.
func (r *PaymentEventRepo) GetByGatewayID(ctx context.Context, gatewayEventID string) (*model.PaymentEvent, error) {
	const q = `SELECT ` + paymentEventColumns + ` FROM payment_events WHERE gateway_event_id = ?`
	pe, err := scanPaymentEvent(r.db.QueryRowContext(ctx, q, gatewayEventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return pe, nil
}

// Resolve stores the final outcome of processing, with an optional booking
// link and a note for the review queue.
func (r *PaymentEventRepo) Resolve(ctx context.Context, id uint64, outcome model.PaymentOutcome, bookingID *uint64, note string) error {
	const q = `UPDATE payment_events SET outcome = ?, booking_id = ?, note = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, outcome, bookingID, note, id)
	return err
}

// ListByOutcome returns events with the given outcome, newest first.  The
// admin review queue reads orphaned events through this.
func (r *PaymentEventRepo) ListByOutcome(ctx context.Context, outcome model.PaymentOutcome) ([]model.PaymentEvent, error) {
	const q = `SELECT ` + paymentEventColumns + ` FROM payment_events WHERE outcome = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, outcome)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []model.PaymentEvent{}
	for rows.Next() {
		pe, err := scanPaymentEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *pe)
	}
	return events, rows.Err()
}
