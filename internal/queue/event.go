// Package queue moves booking lifecycle events over the message broker.
package queue

// Queue names.  Both are durable; messages are published persistent so a
// broker restart loses nothing.
const (
	BookingConfirmedQueue    = "booking.confirmed"
	ReconciliationAlertQueue = "reconciliation.alert"
)

// BookingConfirmedEvent is published when a booking reaches confirmed.
// It carries enough for downstream consumers to notify the guest or feed
// analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID   uint64  `json:"booking_id"`
	EventID     uint64  `json:"event_id"`
	EventName   string  `json:"event_name"`
	StartsAt    string  `json:"starts_at"`
	TableID     *uint64 `json:"table_id,omitempty"`
	GuestName   string  `json:"guest_name"`
	GuestEmail  string  `json:"guest_email"`
	PartySize   uint32  `json:"party_size"`
	AmountCents uint32  `json:"amount_cents"`
	ConfirmedAt string  `json:"confirmed_at"`
}

// ReconciliationAlertEvent is published when a paid gateway event could
// not be seated and was escalated for manual review.
type ReconciliationAlertEvent struct {
	GatewayEventID string `json:"gateway_event_id"`
	Reason         string `json:"reason"`
	RaisedAt       string `json:"raised_at"`
}
