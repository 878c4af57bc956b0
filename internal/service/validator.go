package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/marceau-events/table-reservation/internal/clock"
	"github.com/marceau-events/table-reservation/internal/model"
	"github.com/marceau-events/table-reservation/internal/monitoring"
)

// BookingValidator is the set of pre-commit conflict checks.  Each check
// is a decision over current storage state; the only side effect any of
// them has is lazy expiry, persisting the expired status of holds they
// find past TTL.  Expected business outcomes come back as values, never
// as errors.
type BookingValidator struct {
	store Store
	clk   clock.Clock
	log   zerolog.Logger
}

// NewBookingValidator returns a validator reading through the given store.
func NewBookingValidator(store Store, clk clock.Clock, log zerolog.Logger) *BookingValidator {
	return &BookingValidator{store: store, clk: clk, log: log}
}

// TableAvailableForBooking reports whether the pair is free of blocking
// bookings and active holds.  Holds found past their TTL are lazily
// expired and do not block.
func (v *BookingValidator) TableAvailableForBooking(ctx context.Context, eventID, tableID uint64) (bool, error) {
	return v.tableFree(ctx, eventID, tableID, 0, "")
}

// tableFree is the shared availability core.  excludeBookingID ignores the
// booking being edited; exemptToken treats the caller's own hold as
// non-blocking (the reconciler's final re-check runs while the paying
// guest's hold is still active).
func (v *BookingValidator) tableFree(ctx context.Context, eventID, tableID, excludeBookingID uint64, exemptToken string) (bool, error) {
	b, err := v.store.BlockingBookingForTable(ctx, eventID, tableID, excludeBookingID)
	if err != nil {
		return false, err
	}
	if b != nil {
		return false, nil
	}
	hold, err := v.activeHold(ctx, eventID, tableID)
	if err != nil {
		return false, err
	}
	if hold != nil && hold.LockToken != exemptToken {
		return false, nil
	}
	return true, nil
}

// activeHold returns the live (non-expired) active hold on the pair, lazily
// expiring any stale ones it reads past, or nil when the pair is unheld.
func (v *BookingValidator) activeHold(ctx context.Context, eventID, tableID uint64) (*model.SeatHold, error) {
	holds, err := v.store.GetActiveSeatHolds(ctx, eventID, tableID)
	if err != nil {
		return nil, err
	}
	now := v.clk.Now()
	for i := range holds {
		h := &holds[i]
		if h.IsExpired(now) {
			if err := v.store.ExpireSeatHold(ctx, h.ID); err != nil {
				// The hold still reads as stale to every caller, so
				// failing to persist the transition is not blocking.
				v.log.Warn().Err(err).Uint64("hold_id", h.ID).Msg("lazy hold expiry failed")
			} else {
				monitoring.HoldsExpired.WithLabelValues("lazy").Inc()
			}
			continue
		}
		return h, nil
	}
	return nil, nil
}

// NoDuplicateBooking reports whether the user holds no live booking for
// the event.  One booking per user per event; guest checkouts (user id 0)
// are exempt because they share no identity to key on.
func (v *BookingValidator) NoDuplicateBooking(ctx context.Context, userID, eventID uint64) (bool, error) {
	if userID == 0 {
		return true, nil
	}
	existing, err := v.store.BookingsByUserAndEvent(ctx, userID, eventID)
	if err != nil {
		return false, err
	}
	return len(existing) == 0, nil
}

// WithinTicketCutoff reports whether sales are still open: now must be no
// later than the event start minus cutoffDays.
func (v *BookingValidator) WithinTicketCutoff(eventStart time.Time, cutoffDays int) bool {
	deadline := eventStart.AddDate(0, 0, -cutoffDays)
	return !v.clk.Now().After(deadline)
}

// PartyFitsTable reports whether the party physically fits at the table.
func (v *BookingValidator) PartyFitsTable(ctx context.Context, tableID uint64, partySize uint32) (bool, error) {
	t, err := v.store.GetTableByID(ctx, tableID)
	if err != nil {
		return false, err
	}
	return partySize <= t.Capacity, nil
}

// ReassignmentCheck is the admin guard verdict.  When invalid, Reason is
// the human-readable explanation shown to staff verbatim: who the table
// is SOLD to, or how many minutes of ON HOLD remain.
type ReassignmentCheck struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ValidateTableReassignment checks whether moving a booking onto the
// target table would collide with a blocking booking or an active hold.
// Pass a non-zero excludeBookingID so a booking can keep its own table
// through an edit.
func (v *BookingValidator) ValidateTableReassignment(ctx context.Context, newTableID, eventID, excludeBookingID uint64) (*ReassignmentCheck, error) {
	label := fmt.Sprintf("table %d", newTableID)
	if t, err := v.store.GetTableByID(ctx, newTableID); err == nil {
		label = fmt.Sprintf("table %d (%s)", t.Number, t.Section)
	}

	occupant, err := v.store.BlockingBookingForTable(ctx, eventID, newTableID, excludeBookingID)
	if err != nil {
		return nil, err
	}
	if occupant != nil {
		owner := occupant.GuestName
		if owner == "" {
			owner = occupant.GuestEmail
		}
		if owner == "" {
			owner = fmt.Sprintf("booking %d", occupant.ID)
		}
		return &ReassignmentCheck{
			Valid:  false,
			Reason: fmt.Sprintf("%s is SOLD to %s (booking %d, %s)", label, owner, occupant.ID, occupant.Status),
		}, nil
	}

	hold, err := v.activeHold(ctx, eventID, newTableID)
	if err != nil {
		return nil, err
	}
	if hold != nil {
		return &ReassignmentCheck{
			Valid:  false,
			Reason: fmt.Sprintf("%s is ON HOLD by another guest for %d more minutes", label, hold.RemainingMinutes(v.clk.Now())),
		}, nil
	}

	return &ReassignmentCheck{Valid: true}, nil
}
