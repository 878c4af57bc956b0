package service

import (
	"context"
	"time"

	"github.com/marceau-events/table-reservation/internal/model"
)

// Store is the engine's only contract with persistence.  The MySQL
// implementation lives in internal/repository; tests substitute an
// in-memory fake.  Every method that reports absence does so with
// repository.ErrNotFound, and the two race-arbitration methods
// (CreateSeatHold, CreateBooking and friends) surface unique-index
// collisions as repository.ErrTableTaken.
type Store interface {
	// Events.
	CreateEvent(ctx context.Context, e *model.Event) (uint64, error)
	GetEventByID(ctx context.Context, id uint64) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	UpdateEvent(ctx context.Context, e *model.Event) error
	RefreshEventAvailability(ctx context.Context, eventID uint64, seats, tables uint32) error

	// Venue tables.
	GetTableByID(ctx context.Context, id uint64) (*model.Table, error)
	ListTables(ctx context.Context) ([]model.Table, error)

	// Bookings.
	CreateBooking(ctx context.Context, b *model.Booking) (uint64, error)
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	GetBookingByPaymentRef(ctx context.Context, ref string) (*model.Booking, error)
	UpdateBooking(ctx context.Context, b *model.Booking) error
	BlockingBookingForTable(ctx context.Context, eventID, tableID, excludeID uint64) (*model.Booking, error)
	BookingsByUserAndEvent(ctx context.Context, userID, eventID uint64) ([]model.Booking, error)
	CountBookedSeats(ctx context.Context, eventID uint64) (uint32, error)
	CountBookedTables(ctx context.Context, eventID uint64) (uint32, error)
	CreateConfirmedBooking(ctx context.Context, b *model.Booking, lockToken string) (uint64, bool, error)
	ConfirmPendingBooking(ctx context.Context, bookingID, version uint64, paymentRef, lockToken string) error

	// Seat holds.
	CreateSeatHold(ctx context.Context, h *model.SeatHold) (uint64, error)
	GetSeatHoldByToken(ctx context.Context, token string) (*model.SeatHold, error)
	GetActiveSeatHolds(ctx context.Context, eventID, tableID uint64) ([]model.SeatHold, error)
	ExpireSeatHold(ctx context.Context, id uint64) error
	CompleteSeatHold(ctx context.Context, token string) (bool, error)
	ExpireStaleSeatHolds(ctx context.Context, now time.Time) (int64, error)

	// Payment event dedup log.
	RecordPaymentEvent(ctx context.Context, gatewayEventID, kind string, amountCents uint32) (uint64, error)
	GetPaymentEventByGatewayID(ctx context.Context, gatewayEventID string) (*model.PaymentEvent, error)
	ResolvePaymentEvent(ctx context.Context, id uint64, outcome model.PaymentOutcome, bookingID *uint64, note string) error
	PaymentEventsByOutcome(ctx context.Context, outcome model.PaymentOutcome) ([]model.PaymentEvent, error)
}
