package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/marceau-events/table-reservation/internal/model"
	"github.com/marceau-events/table-reservation/internal/monitoring"
	"github.com/marceau-events/table-reservation/internal/repository"
)

// AdminService backs the staff surface: event setup, manual bookings,
// edits, cancellations and refunds.  Every seat or table change re-runs
// the same live-state guard the checkout path uses, so staff cannot
// double-sell a table a guest is paying for; refusals carry the SOLD /
// ON HOLD wording the admin UI shows verbatim.
type AdminService struct {
	store        Store
	validator    *BookingValidator
	availability *AvailabilityService
	log          zerolog.Logger
}

func NewAdminService(store Store, validator *BookingValidator, availability *AvailabilityService, log zerolog.Logger) *AdminService {
	return &AdminService{store: store, validator: validator, availability: availability, log: log}
}

// CreateEventInput describes a new event's inventory.
type CreateEventInput struct {
	Name        string
	StartsAt    time.Time
	SeatingType model.SeatingType
	TotalSeats  uint32
	TotalTables uint32
}

func (in CreateEventInput) validate() error {
	if in.Name == "" {
		return fmt.Errorf("event name is required")
	}
	if in.StartsAt.IsZero() {
		return fmt.Errorf("event start time is required")
	}
	switch in.SeatingType {
	case model.SeatingTables:
		if in.TotalTables == 0 {
			return fmt.Errorf("a table event needs at least one table")
		}
	case model.SeatingTickets:
		if in.TotalTables != 0 {
			return fmt.Errorf("a ticket-only event carries no table inventory")
		}
	default:
		return fmt.Errorf("unknown seating type %q", in.SeatingType)
	}
	if in.TotalSeats == 0 {
		return fmt.Errorf("an event needs at least one seat")
	}
	return nil
}

// CreateEvent persists a new event with its full inventory available.
func (s *AdminService) CreateEvent(ctx context.Context, in CreateEventInput, adminID uint64) (*model.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	e := &model.Event{
		Name:            in.Name,
		StartsAt:        in.StartsAt.UTC(),
		SeatingType:     in.SeatingType,
		TotalSeats:      in.TotalSeats,
		TotalTables:     in.TotalTables,
		AvailableSeats:  in.TotalSeats,
		AvailableTables: in.TotalTables,
	}
	id, err := s.store.CreateEvent(ctx, e)
	if err != nil {
		return nil, err
	}
	e.ID = id
	s.log.Info().Uint64("admin_id", adminID).Uint64("event_id", id).Str("name", e.Name).
		Msg("event created")
	return e, nil
}

// UpdateEvent edits an event's name, start time or inventory totals and
// recomputes availability against the new totals.
func (s *AdminService) UpdateEvent(ctx context.Context, eventID uint64, in CreateEventInput, adminID uint64) (*model.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	e, err := s.store.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if in.SeatingType != e.SeatingType {
		return nil, conflict(CodeInvalidTransition, "event %d is sold as %s; the seating type cannot change after creation", eventID, e.SeatingType)
	}
	e.Name = in.Name
	e.StartsAt = in.StartsAt.UTC()
	e.TotalSeats = in.TotalSeats
	e.TotalTables = in.TotalTables
	if err := s.store.UpdateEvent(ctx, e); err != nil {
		return nil, err
	}
	s.refreshAvailability(ctx, eventID)
	s.log.Info().Uint64("admin_id", adminID).Uint64("event_id", eventID).Msg("event updated")
	return e, nil
}

func (s *AdminService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.store.ListEvents(ctx)
}

func (s *AdminService) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	return s.store.GetEventByID(ctx, id)
}

// ManualBookingInput describes a staff-created booking.  Manual bookings
// start unpaid: reserved expects payment later, comp never does.
type ManualBookingInput struct {
	EventID    uint64
	TableID    *uint64
	UserID     uint64
	PartySize  uint32
	GuestName  string
	GuestEmail string
	Selections []model.Selection
	Status     model.BookingStatus
	AdminID    uint64
}

// CreateManualBooking seats a guest by hand.  The table guard runs against
// live state first, and the blocking-pair index settles any write that
// races past it.
func (s *AdminService) CreateManualBooking(ctx context.Context, in ManualBookingInput) (*model.Booking, error) {
	if in.Status != model.BookingReserved && in.Status != model.BookingComp {
		return nil, conflict(CodeInvalidTransition, "manual bookings start as reserved or comp, not %s", in.Status)
	}
	if err := model.ValidateSelections(in.Selections); err != nil {
		return nil, err
	}
	if in.PartySize == 0 {
		in.PartySize = 1
	}

	event, err := s.store.GetEventByID(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if event.TicketOnly() {
		if in.TableID != nil {
			return nil, conflict(CodeTableUnavailable, "event %d is ticket-only and seats no tables", in.EventID)
		}
		avail, err := s.availability.Refresh(ctx, in.EventID)
		if err != nil {
			return nil, err
		}
		if avail.AvailableSeats < in.PartySize {
			return nil, conflict(CodeTableUnavailable, "only %d of %d seats remain for event %d",
				avail.AvailableSeats, event.TotalSeats, in.EventID)
		}
	} else {
		if in.TableID == nil {
			return nil, conflict(CodeTableUnavailable, "event %d seats whole tables; a table is required", in.EventID)
		}
		check, err := s.validator.ValidateTableReassignment(ctx, *in.TableID, in.EventID, 0)
		if err != nil {
			return nil, err
		}
		if !check.Valid {
			monitoring.AdminConflicts.Inc()
			return nil, conflict(CodeTableUnavailable, "%s", check.Reason)
		}
		fits, err := s.validator.PartyFitsTable(ctx, *in.TableID, in.PartySize)
		if err != nil {
			return nil, err
		}
		if !fits {
			return nil, conflict(CodePartyTooLarge, "party of %d does not fit table %d", in.PartySize, *in.TableID)
		}
	}

	b := &model.Booking{
		EventID:    in.EventID,
		TableID:    in.TableID,
		UserID:     in.UserID,
		PartySize:  in.PartySize,
		GuestName:  in.GuestName,
		GuestEmail: in.GuestEmail,
		Selections: in.Selections,
		Status:     in.Status,
		ModifiedBy: &in.AdminID,
	}
	id, err := s.store.CreateBooking(ctx, b)
	if err != nil {
		if errors.Is(err, repository.ErrTableTaken) {
			monitoring.AdminConflicts.Inc()
			return nil, conflict(CodeTableUnavailable, "table %d was taken while saving", deref(in.TableID))
		}
		return nil, err
	}
	b.ID = id

	s.refreshAvailability(ctx, in.EventID)
	s.log.Info().Uint64("admin_id", in.AdminID).Uint64("booking_id", id).
		Uint64("event_id", in.EventID).Str("status", string(in.Status)).
		Msg("manual booking created")
	return b, nil
}

// UpdateBookingInput carries an admin edit.  Version is the version the
// admin read; the write fails with VERSION_CONFLICT if the row moved.
// Nil pointers and zero values mean "keep the current value".
type UpdateBookingInput struct {
	BookingID  uint64
	Version    uint64
	TableID    *uint64
	PartySize  uint32
	GuestName  *string
	GuestEmail *string
	Selections []model.Selection
	AdminID    uint64
}

// UpdateBooking applies a staff edit.  Table reassignment re-runs the
// live-state guard; a blocking booking moves to modified.
func (s *AdminService) UpdateBooking(ctx context.Context, in UpdateBookingInput) (*model.Booking, error) {
	b, err := s.store.GetBooking(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if b.Status.Terminal() {
		return nil, conflict(CodeInvalidTransition, "booking %d is %s and can no longer be edited", b.ID, b.Status)
	}
	if in.Version != b.Version {
		return nil, conflict(CodeVersionConflict, "booking %d is at version %d, not %d; reload and retry", b.ID, b.Version, in.Version)
	}

	moving := in.TableID != nil && (b.TableID == nil || *in.TableID != *b.TableID)
	if moving {
		event, err := s.store.GetEventByID(ctx, b.EventID)
		if err != nil {
			return nil, err
		}
		if event.TicketOnly() {
			return nil, conflict(CodeTableUnavailable, "event %d is ticket-only and seats no tables", b.EventID)
		}
		check, err := s.validator.ValidateTableReassignment(ctx, *in.TableID, b.EventID, b.ID)
		if err != nil {
			return nil, err
		}
		if !check.Valid {
			monitoring.AdminConflicts.Inc()
			return nil, conflict(CodeTableUnavailable, "%s", check.Reason)
		}
		b.TableID = in.TableID
	}

	if in.PartySize != 0 {
		if b.TableID != nil {
			fits, err := s.validator.PartyFitsTable(ctx, *b.TableID, in.PartySize)
			if err != nil {
				return nil, err
			}
			if !fits {
				return nil, conflict(CodePartyTooLarge, "party of %d does not fit table %d", in.PartySize, *b.TableID)
			}
		}
		b.PartySize = in.PartySize
	}
	if in.GuestName != nil {
		b.GuestName = *in.GuestName
	}
	if in.GuestEmail != nil {
		b.GuestEmail = *in.GuestEmail
	}
	if in.Selections != nil {
		if err := model.ValidateSelections(in.Selections); err != nil {
			return nil, err
		}
		b.Selections = in.Selections
	}

	// Pending bookings stay pending through edits; everything else that
	// can move to modified does.
	if b.Status.CanTransitionTo(model.BookingModified) {
		b.Status = model.BookingModified
	}
	b.ModifiedBy = &in.AdminID

	if err := s.saveBooking(ctx, b); err != nil {
		return nil, err
	}
	s.refreshAvailability(ctx, b.EventID)
	s.log.Info().Uint64("admin_id", in.AdminID).Uint64("booking_id", b.ID).
		Bool("table_moved", moving).Msg("booking updated")
	return b, nil
}

// MarkReservedPaid records an out-of-band payment against a pending or
// reserved booking and confirms it.  A pending booking does not block
// inventory yet, so its table is re-checked before it starts to.
func (s *AdminService) MarkReservedPaid(ctx context.Context, bookingID, version uint64, amountCents uint32, paymentRef string, adminID uint64) (*model.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Version != version {
		return nil, conflict(CodeVersionConflict, "booking %d is at version %d, not %d; reload and retry", b.ID, b.Version, version)
	}
	if !b.Status.CanTransitionTo(model.BookingConfirmed) {
		return nil, conflict(CodeInvalidTransition, "booking %d is %s; only pending or reserved bookings can be marked paid", b.ID, b.Status)
	}

	if b.Status == model.BookingPending && b.TableID != nil {
		free, err := s.validator.tableFree(ctx, b.EventID, *b.TableID, b.ID, derefStr(b.LockToken))
		if err != nil {
			return nil, err
		}
		if !free {
			monitoring.AdminConflicts.Inc()
			check, cerr := s.validator.ValidateTableReassignment(ctx, *b.TableID, b.EventID, b.ID)
			if cerr == nil && !check.Valid {
				return nil, conflict(CodeTableUnavailable, "%s", check.Reason)
			}
			return nil, conflict(CodeTableUnavailable, "table %d is no longer available for event %d", *b.TableID, b.EventID)
		}
	}

	b.Status = model.BookingConfirmed
	b.AmountCents = amountCents
	if paymentRef != "" {
		ref := paymentRef
		b.PaymentRef = &ref
	}
	b.ModifiedBy = &adminID

	if err := s.saveBooking(ctx, b); err != nil {
		return nil, err
	}
	if b.LockToken != nil {
		if _, err := s.store.CompleteSeatHold(ctx, *b.LockToken); err != nil {
			s.log.Warn().Err(err).Uint64("booking_id", b.ID).Msg("originating hold completion failed")
		}
	}
	s.refreshAvailability(ctx, b.EventID)
	s.log.Info().Uint64("admin_id", adminID).Uint64("booking_id", b.ID).
		Uint32("amount_cents", amountCents).Msg("booking marked paid")
	return b, nil
}

// CancelBooking releases the booking's inventory.  Canceled is terminal.
func (s *AdminService) CancelBooking(ctx context.Context, bookingID, version, adminID uint64) (*model.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Version != version {
		return nil, conflict(CodeVersionConflict, "booking %d is at version %d, not %d; reload and retry", b.ID, b.Version, version)
	}
	if !b.Status.CanTransitionTo(model.BookingCanceled) {
		return nil, conflict(CodeInvalidTransition, "booking %d is already %s", b.ID, b.Status)
	}

	b.Status = model.BookingCanceled
	b.ModifiedBy = &adminID
	if err := s.saveBooking(ctx, b); err != nil {
		return nil, err
	}
	s.refreshAvailability(ctx, b.EventID)
	s.log.Info().Uint64("admin_id", adminID).Uint64("booking_id", b.ID).Msg("booking canceled")
	return b, nil
}

// RefundBooking records a refund and closes the booking.  refundCents of
// zero means a full refund.  Refunded is terminal and releases inventory.
func (s *AdminService) RefundBooking(ctx context.Context, bookingID, version uint64, refundCents uint32, refundRef string, adminID uint64) (*model.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Version != version {
		return nil, conflict(CodeVersionConflict, "booking %d is at version %d, not %d; reload and retry", b.ID, b.Version, version)
	}
	if !b.Status.CanTransitionTo(model.BookingRefunded) {
		return nil, conflict(CodeInvalidTransition, "booking %d is %s and cannot be refunded", b.ID, b.Status)
	}
	if refundCents == 0 {
		refundCents = b.AmountCents
	}
	if refundCents > b.AmountCents {
		return nil, conflict(CodeRefundExceedsPayment, "refund of %d cents exceeds the %d cents paid on booking %d", refundCents, b.AmountCents, b.ID)
	}

	b.Status = model.BookingRefunded
	b.RefundCents = refundCents
	if refundRef != "" {
		ref := refundRef
		b.RefundRef = &ref
	}
	b.ModifiedBy = &adminID
	if err := s.saveBooking(ctx, b); err != nil {
		return nil, err
	}
	s.refreshAvailability(ctx, b.EventID)
	s.log.Info().Uint64("admin_id", adminID).Uint64("booking_id", b.ID).
		Uint32("refund_cents", refundCents).Msg("booking refunded")
	return b, nil
}

func (s *AdminService) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

// OrphanedPayments lists paid webhook events awaiting manual
// reconciliation, oldest first.
func (s *AdminService) OrphanedPayments(ctx context.Context) ([]model.PaymentEvent, error) {
	return s.store.PaymentEventsByOutcome(ctx, model.OutcomeOrphaned)
}

// saveBooking runs the versioned update and maps storage refusals to the
// conflicts staff screens understand.
func (s *AdminService) saveBooking(ctx context.Context, b *model.Booking) error {
	err := s.store.UpdateBooking(ctx, b)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrVersionConflict):
		return conflict(CodeVersionConflict, "booking %d was changed by someone else; reload and retry", b.ID)
	case errors.Is(err, repository.ErrTableTaken):
		monitoring.AdminConflicts.Inc()
		return conflict(CodeTableUnavailable, "table %d was taken while saving", deref(b.TableID))
	default:
		return err
	}
}

func (s *AdminService) refreshAvailability(ctx context.Context, eventID uint64) {
	s.availability.Invalidate(ctx, eventID)
	if _, err := s.availability.Refresh(ctx, eventID); err != nil {
		s.log.Warn().Err(err).Uint64("event_id", eventID).Msg("availability refresh after admin change failed")
	}
}

func deref(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
