package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/marceau-events/table-reservation/internal/model"
	"github.com/marceau-events/table-reservation/internal/monitoring"
	"github.com/marceau-events/table-reservation/internal/payment"
	"github.com/marceau-events/table-reservation/internal/repository"
)

// EventPublisher fans booking lifecycle events out to the broker.  Both
// calls are fire-and-forget from the reconciler's point of view: failures
// are logged, never allowed to fail or roll back a booking.
type EventPublisher interface {
	BookingConfirmed(ctx context.Context, b *model.Booking, e *model.Event) error
	ReconciliationAlert(ctx context.Context, gatewayEventID, reason string) error
}

// PaymentReconciler consumes authenticated gateway webhook events and
// drives booking state exactly once per real-world payment.  Dedup is
// anchored to the stored gateway event id; a nil error from HandleEvent
// means "acknowledged" and the gateway must not redeliver, so expected
// business outcomes (duplicates, lost races, unknown kinds) all return
// nil after being recorded.  Only infrastructure failures return an
// error, which the webhook handler turns into a retryable 5xx.
type PaymentReconciler struct {
	store        Store
	validator    *BookingValidator
	availability *AvailabilityService
	publisher    EventPublisher // may be nil when the broker is disabled
	log          zerolog.Logger
}

// NewPaymentReconciler wires the reconciler.  publisher may be nil.
func NewPaymentReconciler(store Store, validator *BookingValidator, availability *AvailabilityService, publisher EventPublisher, log zerolog.Logger) *PaymentReconciler {
	return &PaymentReconciler{
		store:        store,
		validator:    validator,
		availability: availability,
		publisher:    publisher,
		log:          log,
	}
}

// HandleEvent processes one verified webhook delivery.
func (r *PaymentReconciler) HandleEvent(ctx context.Context, env *payment.Envelope) error {
	amountCents, amountErr := env.Data.AmountCents()

	// Record before any side effect.  The unique index on the gateway
	// event id makes this the idempotency gate: a final outcome on file
	// means redelivery, acknowledged with no further work.  A non-final
	// outcome is a crashed attempt this delivery is allowed to finish.
	peID, err := r.store.RecordPaymentEvent(ctx, env.ID, env.Kind, amountCents)
	if err != nil {
		if !errors.Is(err, repository.ErrDuplicateEvent) {
			return err
		}
		prior, err := r.store.GetPaymentEventByGatewayID(ctx, env.ID)
		if err != nil {
			return err
		}
		if prior.Outcome.Final() {
			monitoring.WebhookEvents.WithLabelValues(env.Kind, "duplicate").Inc()
			r.log.Info().Str("gateway_event_id", env.ID).Str("outcome", string(prior.Outcome)).
				Msg("duplicate webhook acknowledged")
			return nil
		}
		peID = prior.ID
	}

	if amountErr != nil {
		if env.Kind == payment.KindPaymentSucceeded {
			return r.escalate(ctx, peID, env, fmt.Sprintf("unparseable amount on paid event: %v", amountErr))
		}
		return r.ignore(ctx, peID, env, fmt.Sprintf("unparseable amount: %v", amountErr))
	}

	switch env.Kind {
	case payment.KindPaymentSucceeded:
		return r.paymentSucceeded(ctx, peID, env, amountCents)
	case payment.KindChargeDisputed:
		return r.chargeDisputed(ctx, peID, env)
	default:
		return r.ignore(ctx, peID, env, "unhandled event kind")
	}
}

func (r *PaymentReconciler) paymentSucceeded(ctx context.Context, peID uint64, env *payment.Envelope, amountCents uint32) error {
	// A booking already anchored to this payment means an earlier attempt
	// finished the write and crashed before resolving the log entry.
	if env.Data.PaymentRef != "" {
		b, err := r.store.GetBookingByPaymentRef(ctx, env.Data.PaymentRef)
		if err == nil {
			return r.processed(ctx, peID, env, b, false)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}

	cm, err := env.Data.CheckoutMetadata()
	if err != nil {
		return r.escalate(ctx, peID, env, fmt.Sprintf("checkout metadata invalid: %v", err))
	}

	if cm.BookingID != 0 {
		return r.confirmPending(ctx, peID, env, cm)
	}

	// Final availability re-check before the write; the guest's own hold
	// does not block their payment landing.
	if cm.TableID != 0 {
		free, err := r.validator.tableFree(ctx, cm.EventID, cm.TableID, 0, cm.LockToken)
		if err != nil {
			return err
		}
		if !free {
			return r.escalate(ctx, peID, env,
				fmt.Sprintf("table %d for event %d was taken before the payment landed", cm.TableID, cm.EventID))
		}
	}

	booking := &model.Booking{
		EventID:     cm.EventID,
		UserID:      cm.UserID,
		PartySize:   cm.PartySize,
		GuestName:   cm.GuestName,
		GuestEmail:  cm.GuestEmail,
		Selections:  cm.Selections,
		AmountCents: amountCents,
		Status:      model.BookingConfirmed,
	}
	if cm.TableID != 0 {
		tableID := cm.TableID
		booking.TableID = &tableID
	}
	if env.Data.PaymentRef != "" {
		ref := env.Data.PaymentRef
		booking.PaymentRef = &ref
	}
	if cm.LockToken != "" {
		token := cm.LockToken
		booking.LockToken = &token
	}

	id, holdCompleted, err := r.store.CreateConfirmedBooking(ctx, booking, cm.LockToken)
	if err != nil {
		if errors.Is(err, repository.ErrTableTaken) {
			// Two paid events racing for one table; the index picked the
			// winner and this one goes to a human.
			return r.escalate(ctx, peID, env,
				fmt.Sprintf("lost the race for table %d on event %d at the storage layer", cm.TableID, cm.EventID))
		}
		return err
	}
	booking.ID = id
	if holdCompleted {
		monitoring.HoldsCompleted.Inc()
	}

	return r.processed(ctx, peID, env, booking, true)
}

func (r *PaymentReconciler) confirmPending(ctx context.Context, peID uint64, env *payment.Envelope, cm *payment.CheckoutMetadata) error {
	booking, err := r.store.GetBooking(ctx, cm.BookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return r.escalate(ctx, peID, env, fmt.Sprintf("pending booking %d no longer exists", cm.BookingID))
		}
		return err
	}

	switch booking.Status {
	case model.BookingConfirmed:
		return r.processed(ctx, peID, env, booking, false)
	case model.BookingPending:
	default:
		return r.escalate(ctx, peID, env,
			fmt.Sprintf("booking %d is %s and cannot be confirmed by payment", booking.ID, booking.Status))
	}

	// Pending bookings do not block inventory, so the table must be
	// re-checked; the booking's own hold and row are exempt.
	if booking.TableID != nil {
		free, err := r.validator.tableFree(ctx, booking.EventID, *booking.TableID, booking.ID, cm.LockToken)
		if err != nil {
			return err
		}
		if !free {
			return r.escalate(ctx, peID, env,
				fmt.Sprintf("table %d for event %d was taken while booking %d awaited payment",
					*booking.TableID, booking.EventID, booking.ID))
		}
	}

	if err := r.store.ConfirmPendingBooking(ctx, booking.ID, booking.Version, env.Data.PaymentRef, cm.LockToken); err != nil {
		switch {
		case errors.Is(err, repository.ErrTableTaken):
			return r.escalate(ctx, peID, env,
				fmt.Sprintf("table for booking %d was taken while confirming", booking.ID))
		case errors.Is(err, repository.ErrVersionConflict):
			// One concurrent edit is worth absorbing here; beyond that
			// the gateway retry gets a fresh run.
			fresh, rerr := r.store.GetBooking(ctx, booking.ID)
			if rerr != nil {
				return rerr
			}
			if fresh.Status == model.BookingConfirmed {
				return r.processed(ctx, peID, env, fresh, false)
			}
			if fresh.Status != model.BookingPending {
				return r.escalate(ctx, peID, env,
					fmt.Sprintf("booking %d moved to %s before payment confirmation", fresh.ID, fresh.Status))
			}
			if err := r.store.ConfirmPendingBooking(ctx, fresh.ID, fresh.Version, env.Data.PaymentRef, cm.LockToken); err != nil {
				if errors.Is(err, repository.ErrTableTaken) {
					return r.escalate(ctx, peID, env,
						fmt.Sprintf("table for booking %d was taken while confirming", booking.ID))
				}
				return err
			}
		default:
			return err
		}
	}

	confirmed, err := r.store.GetBooking(ctx, booking.ID)
	if err != nil {
		return err
	}
	return r.processed(ctx, peID, env, confirmed, true)
}

func (r *PaymentReconciler) chargeDisputed(ctx context.Context, peID uint64, env *payment.Envelope) error {
	if env.Data.PaymentRef == "" {
		return r.ignore(ctx, peID, env, "dispute without a payment reference")
	}
	booking, err := r.store.GetBookingByPaymentRef(ctx, env.Data.PaymentRef)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return r.ignore(ctx, peID, env, fmt.Sprintf("no booking for disputed payment %s", env.Data.PaymentRef))
		}
		return err
	}

	// Flag for admin review.  A chargeback never cancels on its own; the
	// guest may still be seated while the dispute plays out.
	if !booking.Disputed {
		booking.Disputed = true
		if err := r.store.UpdateBooking(ctx, booking); err != nil {
			if !errors.Is(err, repository.ErrVersionConflict) {
				return err
			}
			fresh, rerr := r.store.GetBooking(ctx, booking.ID)
			if rerr != nil {
				return rerr
			}
			if !fresh.Disputed {
				fresh.Disputed = true
				if err := r.store.UpdateBooking(ctx, fresh); err != nil {
					return err
				}
			}
			booking = fresh
		}
	}

	if err := r.store.ResolvePaymentEvent(ctx, peID, model.OutcomeDisputed, &booking.ID, "chargeback flagged for review"); err != nil {
		return err
	}
	monitoring.WebhookEvents.WithLabelValues(env.Kind, string(model.OutcomeDisputed)).Inc()
	r.log.Warn().Uint64("booking_id", booking.ID).Str("gateway_event_id", env.ID).
		Msg("booking flagged disputed")
	return nil
}

// processed resolves the log entry, refreshes availability and, for a
// first-time confirmation, fans out the confirmation event.
func (r *PaymentReconciler) processed(ctx context.Context, peID uint64, env *payment.Envelope, booking *model.Booking, firstConfirmation bool) error {
	if err := r.store.ResolvePaymentEvent(ctx, peID, model.OutcomeProcessed, &booking.ID, ""); err != nil {
		return err
	}
	monitoring.WebhookEvents.WithLabelValues(env.Kind, string(model.OutcomeProcessed)).Inc()

	r.availability.Invalidate(ctx, booking.EventID)
	if _, err := r.availability.Refresh(ctx, booking.EventID); err != nil {
		r.log.Warn().Err(err).Uint64("event_id", booking.EventID).Msg("availability refresh after confirmation failed")
	}

	if !firstConfirmation {
		return nil
	}
	monitoring.BookingsConfirmed.Inc()
	r.log.Info().Uint64("booking_id", booking.ID).Str("gateway_event_id", env.ID).
		Uint64("event_id", booking.EventID).Msg("booking confirmed by payment")

	if r.publisher != nil {
		event, err := r.store.GetEventByID(ctx, booking.EventID)
		if err != nil {
			r.log.Warn().Err(err).Msg("confirmation event skipped: event lookup failed")
			return nil
		}
		if err := r.publisher.BookingConfirmed(ctx, booking, event); err != nil {
			r.log.Warn().Err(err).Uint64("booking_id", booking.ID).Msg("confirmation event publish failed")
		}
	}
	return nil
}

// escalate records a paid-but-unseated outcome for manual reconciliation.
// Money moved and inventory did not; a human finishes this one.  The
// delivery is still acknowledged.
func (r *PaymentReconciler) escalate(ctx context.Context, peID uint64, env *payment.Envelope, reason string) error {
	if err := r.store.ResolvePaymentEvent(ctx, peID, model.OutcomeOrphaned, nil, reason); err != nil {
		return err
	}
	monitoring.OrphanedPayments.Inc()
	monitoring.WebhookEvents.WithLabelValues(env.Kind, string(model.OutcomeOrphaned)).Inc()
	r.log.Error().Str("gateway_event_id", env.ID).Str("payment_ref", env.Data.PaymentRef).
		Str("reason", reason).Msg("paid event requires manual reconciliation")

	if r.publisher != nil {
		if err := r.publisher.ReconciliationAlert(ctx, env.ID, reason); err != nil {
			r.log.Warn().Err(err).Msg("reconciliation alert publish failed")
		}
	}
	return nil
}

func (r *PaymentReconciler) ignore(ctx context.Context, peID uint64, env *payment.Envelope, note string) error {
	if err := r.store.ResolvePaymentEvent(ctx, peID, model.OutcomeIgnored, nil, note); err != nil {
		return err
	}
	monitoring.WebhookEvents.WithLabelValues(env.Kind, string(model.OutcomeIgnored)).Inc()
	r.log.Info().Str("gateway_event_id", env.ID).Str("note", note).Msg("webhook event ignored")
	return nil
}
