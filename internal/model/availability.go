package model

// Availability is the computed seat and table picture for one event.
// Derived entirely from bookings; safe to cache and always safe to throw
// away, because write paths re-check live state before committing.
type Availability struct {
	EventID         uint64 `json:"event_id"`
	TotalSeats      uint32 `json:"total_seats"`
	TotalTables     uint32 `json:"total_tables"`
	AvailableSeats  uint32 `json:"available_seats"`
	AvailableTables uint32 `json:"available_tables"`
	SoldOut         bool   `json:"sold_out"`
}
