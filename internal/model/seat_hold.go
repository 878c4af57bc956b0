package model

import "time"

// HoldStatus is the lifecycle state of a seat hold.  A hold leaves active
// exactly once; completed and expired are terminal.
type HoldStatus string

const (
	HoldActive    HoldStatus = "active"
	HoldCompleted HoldStatus = "completed"
	HoldExpired   HoldStatus = "expired"
)

// SeatHold is a time-boxed soft lock on a table for one party, taken before
// payment.  The lock token is the opaque credential returned to the caller;
// all later operations on the hold are keyed by it.  Expiry is enforced
// lazily wherever the hold is read, so correctness never depends on the
// periodic sweep having run.
type SeatHold struct {
	ID          uint64      // seat_holds.id
	EventID     uint64      // seat_holds.event_id
	TableID     uint64      // seat_holds.table_id
	SeatNumbers []uint32    // seat_holds.seat_numbers (JSON array)
	UserID      uint64      // seat_holds.user_id (0 for guest checkout)
	SessionID   string      // seat_holds.session_id
	LockToken   string      // seat_holds.lock_token (opaque, unique)
	Selections  []Selection // seat_holds.selections (JSON)
	Status      HoldStatus  // seat_holds.status
	HeldAt      time.Time   // seat_holds.held_at (UTC)
	ExpiresAt   time.Time   // seat_holds.expires_at (held_at + TTL, UTC)
	CreatedAt   time.Time   // seat_holds.created_at
}

// IsExpired reports whether the hold's TTL has elapsed at the given instant.
// The boundary itself counts as expired.  Pure; the caller decides whether
// to persist the transition to expired.
func (h *SeatHold) IsExpired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// Remaining returns how long the hold is still good for at the given
// instant, never negative.
func (h *SeatHold) Remaining(now time.Time) time.Duration {
	if h.IsExpired(now) {
		return 0
	}
	return h.ExpiresAt.Sub(now)
}

// RemainingMinutes is Remaining rounded up to whole minutes, for
// human-readable conflict reasons.
func (h *SeatHold) RemainingMinutes(now time.Time) int {
	rem := h.Remaining(now)
	if rem == 0 {
		return 0
	}
	return int((rem + time.Minute - 1) / time.Minute)
}
