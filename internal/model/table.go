package model

// Table is a physical table in the venue.  The customer-facing number and
// section layout are data owned by the venue; bookings and holds reference
// tables but never change them.
type Table struct {
	ID       uint64 // venue_tables.id
	Number   uint32 // venue_tables.number (customer facing)
	Section  string // venue_tables.section (e.g. "floor", "mezzanine")
	Capacity uint32 // venue_tables.capacity (seats at this table)
}
