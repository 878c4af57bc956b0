package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/marceau-events/table-reservation/internal/model"
)

// Store bundles the per-entity repositories behind the single persistence
// surface the service layer depends on.  The repos stay reachable as fields
// for callers that want one of them directly.
type Store struct {
	Events   *EventRepo
	Tables   *TableRepo
	Bookings *BookingRepo
	Holds    *SeatHoldRepo
	Payments *PaymentEventRepo
}

// NewStore wires every repository onto one connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{
		Events:   NewEventRepo(db),
		Tables:   NewTableRepo(db),
		Bookings: NewBookingRepo(db),
		Holds:    NewSeatHoldRepo(db),
		Payments: NewPaymentEventRepo(db),
	}
}

func (s *Store) CreateEvent(ctx context.Context, e *model.Event) (uint64, error) {
	return s.Events.Create(ctx, e)
}

func (s *Store) GetEventByID(ctx context.Context, id uint64) (*model.Event, error) {
	return s.Events.GetByID(ctx, id)
}

func (s *Store) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.Events.List(ctx)
}

func (s *Store) UpdateEvent(ctx context.Context, e *model.Event) error {
	return s.Events.Update(ctx, e)
}

func (s *Store) RefreshEventAvailability(ctx context.Context, eventID uint64, seats, tables uint32) error {
	return s.Events.RefreshAvailability(ctx, eventID, seats, tables)
}

func (s *Store) GetTableByID(ctx context.Context, id uint64) (*model.Table, error) {
	return s.Tables.GetByID(ctx, id)
}

func (s *Store) ListTables(ctx context.Context) ([]model.Table, error) {
	return s.Tables.List(ctx)
}

func (s *Store) CreateBooking(ctx context.Context, b *model.Booking) (uint64, error) {
	return s.Bookings.Create(ctx, b)
}

func (s *Store) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return s.Bookings.GetByID(ctx, id)
}

func (s *Store) GetBookingByPaymentRef(ctx context.Context, ref string) (*model.Booking, error) {
	return s.Bookings.GetByPaymentRef(ctx, ref)
}

func (s *Store) UpdateBooking(ctx context.Context, b *model.Booking) error {
	return s.Bookings.UpdateCAS(ctx, b)
}

func (s *Store) BlockingBookingForTable(ctx context.Context, eventID, tableID, excludeID uint64) (*model.Booking, error) {
	return s.Bookings.BlockingForTable(ctx, eventID, tableID, excludeID)
}

func (s *Store) BookingsByUserAndEvent(ctx context.Context, userID, eventID uint64) ([]model.Booking, error) {
	return s.Bookings.ActiveByUserAndEvent(ctx, userID, eventID)
}

func (s *Store) CountBookedSeats(ctx context.Context, eventID uint64) (uint32, error) {
	return s.Bookings.CountBookedSeats(ctx, eventID)
}

func (s *Store) CountBookedTables(ctx context.Context, eventID uint64) (uint32, error) {
	return s.Bookings.CountBookedTables(ctx, eventID)
}

func (s *Store) CreateConfirmedBooking(ctx context.Context, b *model.Booking, lockToken string) (uint64, bool, error) {
	return s.Bookings.CreateConfirmedTx(ctx, b, lockToken)
}

func (s *Store) ConfirmPendingBooking(ctx context.Context, bookingID, version uint64, paymentRef, lockToken string) error {
	return s.Bookings.ConfirmPendingTx(ctx, bookingID, version, paymentRef, lockToken)
}

func (s *Store) CreateSeatHold(ctx context.Context, h *model.SeatHold) (uint64, error) {
	return s.Holds.Create(ctx, h)
}

func (s *Store) GetSeatHoldByToken(ctx context.Context, token string) (*model.SeatHold, error) {
	return s.Holds.GetByToken(ctx, token)
}

func (s *Store) GetActiveSeatHolds(ctx context.Context, eventID, tableID uint64) ([]model.SeatHold, error) {
	return s.Holds.ActiveByEventAndTable(ctx, eventID, tableID)
}

func (s *Store) ExpireSeatHold(ctx context.Context, id uint64) error {
	return s.Holds.Expire(ctx, id)
}

func (s *Store) CompleteSeatHold(ctx context.Context, token string) (bool, error) {
	return s.Holds.Complete(ctx, token)
}

func (s *Store) ExpireStaleSeatHolds(ctx context.Context, now time.Time) (int64, error) {
	return s.Holds.ExpireStale(ctx, now)
}

func (s *Store) RecordPaymentEvent(ctx context.Context, gatewayEventID, kind string, amountCents uint32) (uint64, error) {
	return s.Payments.Record(ctx, gatewayEventID, kind, amountCents)
}

func (s *Store) GetPaymentEventByGatewayID(ctx context.Context, gatewayEventID string) (*model.PaymentEvent, error) {
	return s.Payments.GetByGatewayID(ctx, gatewayEventID)
}

func (s *Store) ResolvePaymentEvent(ctx context.Context, id uint64, outcome model.PaymentOutcome, bookingID *uint64, note string) error {
	return s.Payments.Resolve(ctx, id, outcome, bookingID, note)
}

func (s *Store) PaymentEventsByOutcome(ctx context.Context, outcome model.PaymentOutcome) ([]model.PaymentEvent, error) {
	return s.Payments.ListByOutcome(ctx, outcome)
}
