package model

import "time"

// SeatingType distinguishes events sold as whole tables from events sold
// as a pooled ticket allocation with no table assignment.
type SeatingType string

const (
	SeatingTables  SeatingType = "tables"
	SeatingTickets SeatingType = "tickets"
)

// Event is a scheduled dinner event with a fixed seat and table inventory.
// AvailableSeats and AvailableTables are derived counters maintained by the
// availability calculator; they are refreshed from bookings, never edited
// by hand, and must not be read as authoritative.
type Event struct {
	ID              uint64      // events.id
	Name            string      // events.name
	StartsAt        time.Time   // events.starts_at (UTC)
	SeatingType     SeatingType // events.seating_type
	TotalSeats      uint32      // events.total_seats
	TotalTables     uint32      // events.total_tables
	AvailableSeats  uint32      // events.available_seats (derived)
	AvailableTables uint32      // events.available_tables (derived)
	CreatedAt       time.Time   // events.created_at
	UpdatedAt       time.Time   // events.updated_at
}

// TicketOnly reports whether the event has no table inventory.  Ticket-only
// events count availability in seats alone and never carry seat holds.
func (e *Event) TicketOnly() bool { return e.SeatingType == SeatingTickets }
