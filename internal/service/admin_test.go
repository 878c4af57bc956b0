package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marceau-events/table-reservation/internal/model"
)

const adminID = 99

func manualInput(eventID uint64, tableID *uint64, status model.BookingStatus) ManualBookingInput {
	return ManualBookingInput{
		EventID:    eventID,
		TableID:    tableID,
		PartySize:  4,
		GuestName:  "Sameen Shaw",
		GuestEmail: "shaw@example.com",
		Status:     status,
		AdminID:    adminID,
	}
}

func TestCreateManualBooking(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	b, err := r.admin.CreateManualBooking(ctx, manualInput(eventID, &tables[0], model.BookingReserved))
	require.NoError(t, err)
	assert.Equal(t, model.BookingReserved, b.Status)
	require.NotNil(t, b.ModifiedBy)
	assert.Equal(t, uint64(adminID), *b.ModifiedBy)

	e, err := r.store.GetEventByID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), e.AvailableTables, "a reserved booking blocks its table")

	_, err = r.admin.CreateManualBooking(ctx, manualInput(eventID, &tables[1], model.BookingComp))
	assert.NoError(t, err)

	_, err = r.admin.CreateManualBooking(ctx, manualInput(eventID, &tables[2], model.BookingConfirmed))
	requireConflict(t, err, CodeInvalidTransition)
}

func TestCreateManualBookingSoldTable(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	b := confirmedBooking(eventID, tables[0], 4)
	b.GuestName = "Harold Finch"
	_, err := r.store.CreateBooking(ctx, b)
	require.NoError(t, err)

	_, err = r.admin.CreateManualBooking(ctx, manualInput(eventID, &tables[0], model.BookingReserved))
	ce := requireConflict(t, err, CodeTableUnavailable)
	assert.Contains(t, ce.Reason, "SOLD to Harold Finch")
}

func TestCreateManualBookingHeldTable(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	_, err := r.holds.CreateHold(ctx, holdInput(eventID, tables[0]))
	require.NoError(t, err)

	_, err = r.admin.CreateManualBooking(ctx, manualInput(eventID, &tables[0], model.BookingComp))
	ce := requireConflict(t, err, CodeTableUnavailable)
	assert.Contains(t, ce.Reason, "ON HOLD by another guest for 20 more minutes")
}

func TestCreateManualBookingPartyTooLarge(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	in := manualInput(eventID, &tables[0], model.BookingReserved)
	in.PartySize = 6
	_, err := r.admin.CreateManualBooking(ctx, in)
	requireConflict(t, err, CodePartyTooLarge)
}

func TestCreateManualBookingTicketEvent(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID := r.seedTicketEvent(10)

	in := manualInput(eventID, nil, model.BookingReserved)
	in.PartySize = 8
	_, err := r.admin.CreateManualBooking(ctx, in)
	require.NoError(t, err)

	in.PartySize = 4
	_, err = r.admin.CreateManualBooking(ctx, in)
	ce := requireConflict(t, err, CodeTableUnavailable)
	assert.Contains(t, ce.Reason, "only 2 of 10 seats remain")

	tid := uint64(1)
	in.TableID = &tid
	in.PartySize = 2
	_, err = r.admin.CreateManualBooking(ctx, in)
	requireConflict(t, err, CodeTableUnavailable)
}

func TestUpdateBookingReassignment(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	a, err := r.admin.CreateManualBooking(ctx, manualInput(eventID, &tables[0], model.BookingReserved))
	require.NoError(t, err)
	bIn := manualInput(eventID, &tables[1], model.BookingReserved)
	bIn.GuestName = "Harold Finch"
	_, err = r.admin.CreateManualBooking(ctx, bIn)
	require.NoError(t, err)

	// Moving A onto B's table is refused with the live reason.
	_, err = r.admin.UpdateBooking(ctx, UpdateBookingInput{
		BookingID: a.ID,
		Version:   a.Version,
		TableID:   &tables[1],
		AdminID:   adminID,
	})
	ce := requireConflict(t, err, CodeTableUnavailable)
	assert.Contains(t, ce.Reason, "SOLD to Harold Finch")

	// A free table is fine; the edit marks the booking modified.
	moved, err := r.admin.UpdateBooking(ctx, UpdateBookingInput{
		BookingID: a.ID,
		Version:   a.Version,
		TableID:   &tables[2],
		AdminID:   adminID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingModified, moved.Status)
	require.NotNil(t, moved.TableID)
	assert.Equal(t, tables[2], *moved.TableID)
	assert.Equal(t, a.Version+1, moved.Version)

	free, err := r.valid.TableAvailableForBooking(ctx, eventID, tables[0])
	require.NoError(t, err)
	assert.True(t, free, "the old table is released by the move")
}

func TestUpdateBookingStaleVersion(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	b, err := r.admin.CreateManualBooking(ctx, manualInput(eventID, &tables[0], model.BookingReserved))
	require.NoError(t, err)

	party := uint32(3)
	_, err = r.admin.UpdateBooking(ctx, UpdateBookingInput{
		BookingID: b.ID, Version: b.Version, PartySize: party, AdminID: adminID,
	})
	require.NoError(t, err)

	// A second edit from the same stale read loses.
	_, err = r.admin.UpdateBooking(ctx, UpdateBookingInput{
		BookingID: b.ID, Version: b.Version, PartySize: 2, AdminID: adminID,
	})
	ce := requireConflict(t, err, CodeVersionConflict)
	assert.Contains(t, ce.Reason, "reload")
}

func TestUpdateBookingTerminalRefused(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	b, err := r.admin.CreateManualBooking(ctx, manualInput(eventID, &tables[0], model.BookingReserved))
	require.NoError(t, err)
	canceled, err := r.admin.CancelBooking(ctx, b.ID, b.Version, adminID)
	require.NoError(t, err)

	_, err = r.admin.UpdateBooking(ctx, UpdateBookingInput{
		BookingID: b.ID, Version: canceled.Version, PartySize: 2, AdminID: adminID,
	})
	requireConflict(t, err, CodeInvalidTransition)
}

func TestUpdateBookingKeepsOwnTable(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	b, err := r.admin.CreateManualBooking(ctx, manualInput(eventID, &tables[0], model.BookingReserved))
	require.NoError(t, err)

	// Re-sending the current table is not a move and trips no guard.
	same, err := r.admin.UpdateBooking(ctx, UpdateBookingInput{
		BookingID: b.ID, Version: b.Version, TableID: &tables[0], PartySize: 2, AdminID: adminID,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), same.PartySize)
	assert.Equal(t, model.BookingModified, same.Status)
}

func TestUpdateBookingPendingStaysPending(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	tid := tables[0]
	id, err := r.store.CreateBooking(ctx, &model.Booking{
		EventID: eventID, TableID: &tid, PartySize: 4, Status: model.BookingPending,
	})
	require.NoError(t, err)

	got, err := r.admin.UpdateBooking(ctx, UpdateBookingInput{
		BookingID: id, Version: 1, PartySize: 2, AdminID: adminID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, got.Status,
		"an unpaid booking does not become modified by an edit")
}

func TestMarkReservedPaid(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	b, err := r.admin.CreateManualBooking(ctx, manualInput(eventID, &tables[0], model.BookingReserved))
	require.NoError(t, err)

	paid, err := r.admin.MarkReservedPaid(ctx, b.ID, b.Version, 15000, "pos-receipt-1", adminID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, paid.Status)
	assert.Equal(t, uint32(15000), paid.AmountCents)
	require.NotNil(t, paid.PaymentRef)
	assert.Equal(t, "pos-receipt-1", *paid.PaymentRef)

	// Comp bookings are free and never become paid.
	c, err := r.admin.CreateManualBooking(ctx, manualInput(eventID, &tables[1], model.BookingComp))
	require.NoError(t, err)
	_, err = r.admin.MarkReservedPaid(ctx, c.ID, c.Version, 1000, "", adminID)
	requireConflict(t, err, CodeInvalidTransition)
}

func TestMarkPendingPaidRechecksTable(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	tid := tables[0]
	id, err := r.store.CreateBooking(ctx, &model.Booking{
		EventID: eventID, TableID: &tid, PartySize: 4, Status: model.BookingPending,
	})
	require.NoError(t, err)

	// Another guest holds the table by the time staff record the payment.
	_, err = r.holds.CreateHold(ctx, holdInput(eventID, tables[0]))
	require.NoError(t, err)

	_, err = r.admin.MarkReservedPaid(ctx, id, 1, 15000, "", adminID)
	ce := requireConflict(t, err, CodeTableUnavailable)
	assert.Contains(t, ce.Reason, "ON HOLD")
}

func TestMarkPendingPaidExemptsOwnHold(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	grant, err := r.holds.CreateHold(ctx, holdInput(eventID, tables[0]))
	require.NoError(t, err)

	tid := tables[0]
	token := grant.LockToken
	id, err := r.store.CreateBooking(ctx, &model.Booking{
		EventID: eventID, TableID: &tid, PartySize: 4,
		Status: model.BookingPending, LockToken: &token,
	})
	require.NoError(t, err)

	paid, err := r.admin.MarkReservedPaid(ctx, id, 1, 15000, "", adminID)
	require.NoError(t, err, "the booking's own hold does not block its payment")
	assert.Equal(t, model.BookingConfirmed, paid.Status)
	assert.Equal(t, model.HoldCompleted, r.store.holdByID(grant.HoldID).Status,
		"the originating hold is retired with the confirmation")
}

func TestCancelBooking(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	b, err := r.admin.CreateManualBooking(ctx, manualInput(eventID, &tables[0], model.BookingReserved))
	require.NoError(t, err)

	e, err := r.store.GetEventByID(ctx, eventID)
	require.NoError(t, err)
	require.Equal(t, uint32(9), e.AvailableTables)

	canceled, err := r.admin.CancelBooking(ctx, b.ID, b.Version, adminID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCanceled, canceled.Status)

	e, err = r.store.GetEventByID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), e.AvailableTables, "cancellation releases the table")

	_, err = r.admin.CancelBooking(ctx, b.ID, canceled.Version, adminID)
	ce := requireConflict(t, err, CodeInvalidTransition)
	assert.Contains(t, ce.Reason, "already canceled")

	_, err = r.admin.RefundBooking(ctx, b.ID, canceled.Version, 0, "", adminID)
	requireConflict(t, err, CodeInvalidTransition)
}

func TestRefundBooking(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	b, err := r.admin.CreateManualBooking(ctx, manualInput(eventID, &tables[0], model.BookingReserved))
	require.NoError(t, err)
	paid, err := r.admin.MarkReservedPaid(ctx, b.ID, b.Version, 12000, "pos-1", adminID)
	require.NoError(t, err)

	_, err = r.admin.RefundBooking(ctx, paid.ID, paid.Version, 15000, "", adminID)
	requireConflict(t, err, CodeRefundExceedsPayment)

	refunded, err := r.admin.RefundBooking(ctx, paid.ID, paid.Version, 0, "rfnd-1", adminID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingRefunded, refunded.Status)
	assert.Equal(t, uint32(12000), refunded.RefundCents, "zero means refund in full")
	require.NotNil(t, refunded.RefundRef)
	assert.Equal(t, "rfnd-1", *refunded.RefundRef)

	e, err := r.store.GetEventByID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), e.AvailableTables, "a refund releases the table")
}

func TestPartialRefund(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	b, err := r.admin.CreateManualBooking(ctx, manualInput(eventID, &tables[0], model.BookingReserved))
	require.NoError(t, err)
	paid, err := r.admin.MarkReservedPaid(ctx, b.ID, b.Version, 12000, "pos-1", adminID)
	require.NoError(t, err)

	refunded, err := r.admin.RefundBooking(ctx, paid.ID, paid.Version, 5000, "rfnd-2", adminID)
	require.NoError(t, err)
	assert.Equal(t, uint32(5000), refunded.RefundCents)
	assert.Equal(t, uint32(12000), refunded.AmountCents, "the original charge stays on record")
}

func TestOrphanedPaymentsListing(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)
	rec := r.reconciler(nil)

	grant, err := r.holds.CreateHold(ctx, holdInput(eventID, tables[0]))
	require.NoError(t, err)
	require.NoError(t, rec.HandleEvent(ctx,
		succeededEnv("evt_1", "pay_1", "150.00", checkoutMeta(eventID, tables[0], grant.LockToken, 4))))
	require.NoError(t, rec.HandleEvent(ctx,
		succeededEnv("evt_2", "pay_2", "150.00", checkoutMeta(eventID, tables[0], "", 4))))

	orphans, err := r.admin.OrphanedPayments(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "evt_2", orphans[0].GatewayEventID)
	assert.Equal(t, uint32(15000), orphans[0].AmountCents)
}

func TestEventCRUD(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	starts := r.clk.Now().AddDate(0, 1, 0)

	_, err := r.admin.CreateEvent(ctx, CreateEventInput{
		Name: "New Year Gala", StartsAt: starts, SeatingType: model.SeatingTickets,
		TotalSeats: 120, TotalTables: 5,
	}, adminID)
	require.Error(t, err, "ticket-only events carry no table inventory")

	_, err = r.admin.CreateEvent(ctx, CreateEventInput{
		Name: "New Year Gala", StartsAt: starts, SeatingType: "cabaret",
		TotalSeats: 120,
	}, adminID)
	require.Error(t, err)

	e, err := r.admin.CreateEvent(ctx, CreateEventInput{
		Name: "New Year Gala", StartsAt: starts, SeatingType: model.SeatingTables,
		TotalSeats: 120, TotalTables: 30,
	}, adminID)
	require.NoError(t, err)
	assert.Equal(t, uint32(120), e.AvailableSeats)
	assert.Equal(t, uint32(30), e.AvailableTables)

	_, err = r.admin.UpdateEvent(ctx, e.ID, CreateEventInput{
		Name: "New Year Gala", StartsAt: starts, SeatingType: model.SeatingTickets,
		TotalSeats: 120,
	}, adminID)
	requireConflict(t, err, CodeInvalidTransition)

	updated, err := r.admin.UpdateEvent(ctx, e.ID, CreateEventInput{
		Name: "New Year's Eve Gala", StartsAt: starts.Add(2 * time.Hour), SeatingType: model.SeatingTables,
		TotalSeats: 128, TotalTables: 32,
	}, adminID)
	require.NoError(t, err)
	assert.Equal(t, "New Year's Eve Gala", updated.Name)
	assert.Equal(t, uint32(32), updated.TotalTables)

	events, err := r.admin.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got, err := r.admin.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(128), got.AvailableSeats, "availability recomputed for the new totals")
}
