package model

import "time"

// BookingStatus is the lifecycle state of a booking.  Transitions are
// restricted; use CanTransitionTo before persisting a status change.
type BookingStatus string

const (
	// BookingPending is a checkout that was initiated but not yet paid.
	// Only the payment reconciler moves a booking out of pending.
	BookingPending BookingStatus = "pending"
	// BookingReserved is an unpaid manual booking created by an admin,
	// awaiting an offline or external payment.
	BookingReserved BookingStatus = "reserved"
	// BookingComp is a complimentary admin-created booking; it occupies
	// inventory exactly like a paid one.
	BookingComp BookingStatus = "comp"
	// BookingConfirmed is a paid booking.
	BookingConfirmed BookingStatus = "confirmed"
	// BookingModified is a confirmed/reserved/comp booking after an admin
	// edit; re-enterable, further edits keep the status.
	BookingModified BookingStatus = "modified"
	// BookingRefunded is terminal; the table is released.
	BookingRefunded BookingStatus = "refunded"
	// BookingCanceled is terminal; the table is released.
	BookingCanceled BookingStatus = "canceled"
)

// transitions maps each status to the set of statuses it may move to.
// canceled and refunded are terminal; modified re-enters itself so repeated
// admin edits stay legal.
var transitions = map[BookingStatus]map[BookingStatus]bool{
	BookingPending: {
		BookingReserved:  true,
		BookingComp:      true,
		BookingConfirmed: true,
		BookingCanceled:  true,
		BookingRefunded:  true,
	},
	BookingReserved: {
		BookingConfirmed: true,
		BookingModified:  true,
		BookingCanceled:  true,
		BookingRefunded:  true,
	},
	BookingComp: {
		BookingModified: true,
		BookingCanceled: true,
		BookingRefunded: true,
	},
	BookingConfirmed: {
		BookingModified: true,
		BookingCanceled: true,
		BookingRefunded: true,
	},
	BookingModified: {
		BookingModified: true,
		BookingCanceled: true,
		BookingRefunded: true,
	},
	BookingRefunded: {},
	BookingCanceled: {},
}

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transition is allowed from s.
func (s BookingStatus) Terminal() bool {
	return s == BookingCanceled || s == BookingRefunded
}

// Blocks reports whether a booking in this status occupies its table for
// the purposes of the core invariant.  One uniform set everywhere: the
// availability calculator, the validator and the database unique index all
// agree on it.
func (s BookingStatus) Blocks() bool {
	switch s {
	case BookingConfirmed, BookingReserved, BookingComp, BookingModified:
		return true
	}
	return false
}

// CountsTowardSeats reports whether the booking's party size counts as
// booked seats.  Cancellations and refunds release seats; everything else,
// including pending checkouts, keeps them counted.
func (s BookingStatus) CountsTowardSeats() bool {
	return s != BookingCanceled && s != BookingRefunded
}

// CanTransitionTo reports whether moving from s to next is a legal
// transition.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	return transitions[s][next]
}

// Booking is a party's claim on event inventory.  Bookings are never hard
// deleted; cancellation and refund set the status and keep the row for
// audit.  Version increments on every mutation and backs the
// compare-and-swap update used for admin edits.
type Booking struct {
	ID          uint64        // bookings.id
	EventID     uint64        // bookings.event_id
	TableID     *uint64       // bookings.table_id (NULL for ticket-only events)
	UserID      uint64        // bookings.user_id (0 for guest checkout)
	PartySize   uint32        // bookings.party_size
	GuestName   string        // bookings.guest_name
	GuestEmail  string        // bookings.guest_email
	Selections  []Selection   // bookings.selections (JSON)
	PaymentRef  *string       // bookings.payment_ref (nullable)
	AmountCents uint32        // bookings.amount_cents
	RefundCents uint32        // bookings.refund_cents
	RefundRef   *string       // bookings.refund_ref (nullable)
	Status      BookingStatus // bookings.status
	Disputed    bool          // bookings.disputed (chargeback flag, admin review)
	LockToken   *string       // bookings.lock_token (originating hold, nullable)
	Version     uint64        // bookings.version (optimistic concurrency)
	ModifiedBy  *uint64       // bookings.modified_by (admin id, nullable)
	CreatedAt   time.Time     // bookings.created_at
	UpdatedAt   time.Time     // bookings.updated_at
}
