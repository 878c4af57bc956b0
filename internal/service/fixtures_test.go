package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/marceau-events/table-reservation/internal/cache"
	"github.com/marceau-events/table-reservation/internal/clock"
	"github.com/marceau-events/table-reservation/internal/model"
)

// rig wires the full service stack over a memStore and a frozen clock.
type rig struct {
	store *memStore
	clk   *clock.Frozen
	avail *AvailabilityService
	valid *BookingValidator
	holds *HoldService
	admin *AdminService
}

func newRig() *rig {
	st := newMemStore()
	clk := clock.NewFrozen(time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC))
	log := zerolog.Nop()
	avail := NewAvailabilityService(st, cache.NewMemory(5*time.Minute, clk), log)
	valid := NewBookingValidator(st, clk, log)
	return &rig{
		store: st,
		clk:   clk,
		avail: avail,
		valid: valid,
		holds: NewHoldService(st, valid, clk, 0, log),
		admin: NewAdminService(st, valid, avail, log),
	}
}

func (r *rig) reconciler(pub EventPublisher) *PaymentReconciler {
	return NewPaymentReconciler(r.store, r.valid, r.avail, pub, zerolog.Nop())
}

// seedTableEvent creates a table-seated event two weeks out with the given
// inventory and one venue table per table slot.
func (r *rig) seedTableEvent(totalTables, seatsPerTable uint32) (uint64, []uint64) {
	eventID := r.store.seedEvent(model.Event{
		Name:            "Spring Gala",
		StartsAt:        r.clk.Now().AddDate(0, 0, 14),
		SeatingType:     model.SeatingTables,
		TotalSeats:      totalTables * seatsPerTable,
		TotalTables:     totalTables,
		AvailableSeats:  totalTables * seatsPerTable,
		AvailableTables: totalTables,
	})
	tableIDs := make([]uint64, 0, totalTables)
	for i := uint32(1); i <= totalTables; i++ {
		tableIDs = append(tableIDs, r.store.seedTable(model.Table{
			Number:   i,
			Section:  "floor",
			Capacity: seatsPerTable,
		}))
	}
	return eventID, tableIDs
}

// seedTicketEvent creates a ticket-only event two weeks out.
func (r *rig) seedTicketEvent(totalSeats uint32) uint64 {
	return r.store.seedEvent(model.Event{
		Name:           "Jazz Night",
		StartsAt:       r.clk.Now().AddDate(0, 0, 14),
		SeatingType:    model.SeatingTickets,
		TotalSeats:     totalSeats,
		AvailableSeats: totalSeats,
	})
}

var errPublishDown = errors.New("broker unavailable")

// fakePublisher records events the reconciler fans out.
type fakePublisher struct {
	confirmed []uint64
	alerts    []string
	fail      bool
}

func (p *fakePublisher) BookingConfirmed(_ context.Context, b *model.Booking, _ *model.Event) error {
	if p.fail {
		return errPublishDown
	}
	p.confirmed = append(p.confirmed, b.ID)
	return nil
}

func (p *fakePublisher) ReconciliationAlert(_ context.Context, gatewayEventID, reason string) error {
	if p.fail {
		return errPublishDown
	}
	p.alerts = append(p.alerts, gatewayEventID+": "+reason)
	return nil
}
