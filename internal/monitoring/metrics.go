// Package monitoring exposes the engine's Prometheus metrics.  Counters
// are package level so any layer can record without threading a registry
// through constructors.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HoldsCreated counts successfully created seat holds.
	HoldsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seat_holds_created_total",
		Help: "Seat holds successfully created",
	})

	// HoldConflicts counts hold attempts rejected with a conflict code.
	HoldConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_hold_conflicts_total",
		Help: "Seat hold attempts rejected, by conflict code",
	}, []string{"code"})

	// HoldsExpired counts holds transitioned to expired, by trigger
	// (lazy read or sweep).
	HoldsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_holds_expired_total",
		Help: "Seat holds transitioned to expired, by trigger",
	}, []string{"trigger"})

	// HoldsCompleted counts holds completed by a successful payment.
	HoldsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seat_holds_completed_total",
		Help: "Seat holds completed by payment",
	})

	// AvailabilityCacheReads counts snapshot reads, by result (hit or
	// miss).
	AvailabilityCacheReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_cache_reads_total",
		Help: "Availability snapshot reads, by cache result",
	}, []string{"result"})

	// WebhookEvents counts gateway webhook deliveries, by kind and
	// recorded outcome (duplicate deliveries count under "duplicate").
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Payment gateway webhook deliveries, by kind and outcome",
	}, []string{"kind", "outcome"})

	// BookingsConfirmed counts bookings confirmed by the reconciler.
	BookingsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_confirmed_total",
		Help: "Bookings confirmed by payment reconciliation",
	})

	// OrphanedPayments counts paid events that lost the seat race and
	// went to manual review.
	OrphanedPayments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orphaned_payments_total",
		Help: "Paid webhook events escalated for manual reconciliation",
	})

	// AdminConflicts counts admin edits rejected by the conflict guard.
	AdminConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "admin_edit_conflicts_total",
		Help: "Admin edits rejected because the target table is sold or held",
	})
)
