package model

import "time"

// PaymentOutcome records how a gateway webhook event was resolved.  The
// row is written with OutcomeReceived before any side effect, so a crash
// mid-processing leaves a non-final outcome that a gateway retry is allowed
// to pick up again; final outcomes make redelivery a no-op.
type PaymentOutcome string

const (
	OutcomeReceived  PaymentOutcome = "received"  // accepted, processing not finished
	OutcomeProcessed PaymentOutcome = "processed" // booking created or confirmed
	OutcomeOrphaned  PaymentOutcome = "orphaned"  // paid but lost the seat race; manual review
	OutcomeDisputed  PaymentOutcome = "disputed"  // chargeback flagged for review
	OutcomeIgnored   PaymentOutcome = "ignored"   // unknown or irrelevant event kind
)

// Final reports whether redelivery of the same gateway event should be
// acknowledged without reprocessing.
func (o PaymentOutcome) Final() bool { return o != OutcomeReceived }

// PaymentEvent is the durable dedup log entry for one gateway webhook
// event.  GatewayEventID carries a unique index; it is the idempotency
// anchor for at-least-once delivery.
type PaymentEvent struct {
	ID             uint64         // payment_events.id
	GatewayEventID string         // payment_events.gateway_event_id (unique)
	Kind           string         // payment_events.kind (gateway event type)
	Outcome        PaymentOutcome // payment_events.outcome
	BookingID      *uint64        // payment_events.booking_id (nullable)
	Note           string         // payment_events.note (reason detail for review)
	AmountCents    uint32         // payment_events.amount_cents
	CreatedAt      time.Time      // payment_events.created_at
}
