package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marceau-events/table-reservation/internal/model"
)

func confirmedBooking(eventID, tableID uint64, party uint32) *model.Booking {
	tid := tableID
	return &model.Booking{
		EventID:   eventID,
		TableID:   &tid,
		PartySize: party,
		Status:    model.BookingConfirmed,
	}
}

func TestSnapshotComputesFromLiveBookings(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	_, err := r.store.CreateBooking(ctx, confirmedBooking(eventID, tables[0], 4))
	require.NoError(t, err)

	snap, err := r.avail.Snapshot(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, uint32(40), snap.TotalSeats)
	assert.Equal(t, uint32(36), snap.AvailableSeats)
	assert.Equal(t, uint32(9), snap.AvailableTables)
	assert.False(t, snap.SoldOut)

	// The event row counters follow the computed snapshot.
	e, err := r.store.GetEventByID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, uint32(36), e.AvailableSeats)
	assert.Equal(t, uint32(9), e.AvailableTables)
}

func TestSnapshotClampsAtZero(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(2, 2)

	// Staff can overbook seats past capacity; the published number floors
	// at zero instead of going negative.
	_, err := r.store.CreateBooking(ctx, confirmedBooking(eventID, tables[0], 3))
	require.NoError(t, err)
	_, err = r.store.CreateBooking(ctx, confirmedBooking(eventID, tables[1], 3))
	require.NoError(t, err)

	snap, err := r.avail.Snapshot(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), snap.AvailableSeats)
	assert.Equal(t, uint32(0), snap.AvailableTables)
	assert.True(t, snap.SoldOut)
}

func TestSnapshotTicketOnly(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID := r.seedTicketEvent(100)

	for i := 0; i < 2; i++ {
		_, err := r.store.CreateBooking(ctx, &model.Booking{
			EventID:   eventID,
			PartySize: 30,
			Status:    model.BookingConfirmed,
		})
		require.NoError(t, err)
	}

	snap, err := r.avail.Snapshot(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, uint32(40), snap.AvailableSeats)
	assert.Equal(t, uint32(0), snap.AvailableTables)
	assert.False(t, snap.SoldOut, "a ticket-only event with seats left is not sold out")

	_, err = r.store.CreateBooking(ctx, &model.Booking{
		EventID:   eventID,
		PartySize: 40,
		Status:    model.BookingConfirmed,
	})
	require.NoError(t, err)

	r.avail.Invalidate(ctx, eventID)
	snap, err = r.avail.Snapshot(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), snap.AvailableSeats)
	assert.True(t, snap.SoldOut)
}

func TestPendingCountsSeatsNotTables(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	b := confirmedBooking(eventID, tables[0], 4)
	b.Status = model.BookingPending
	_, err := r.store.CreateBooking(ctx, b)
	require.NoError(t, err)

	snap, err := r.avail.Snapshot(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, uint32(36), snap.AvailableSeats, "pending seats are spoken for")
	assert.Equal(t, uint32(10), snap.AvailableTables, "a pending booking does not lock its table")
}

func TestSnapshotServedFromCacheUntilStale(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	snap, err := r.avail.Snapshot(ctx, eventID)
	require.NoError(t, err)
	require.Equal(t, uint32(10), snap.AvailableTables)

	// A write that skips invalidation is invisible until the TTL lapses.
	_, err = r.store.CreateBooking(ctx, confirmedBooking(eventID, tables[0], 4))
	require.NoError(t, err)

	snap, err = r.avail.Snapshot(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), snap.AvailableTables, "cached snapshot still served")

	r.clk.Advance(5*time.Minute + time.Second)
	snap, err = r.avail.Snapshot(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), snap.AvailableTables, "stale snapshot recomputed")
}

func TestInvalidateForcesRecompute(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	_, err := r.avail.Snapshot(ctx, eventID)
	require.NoError(t, err)

	_, err = r.store.CreateBooking(ctx, confirmedBooking(eventID, tables[3], 2))
	require.NoError(t, err)
	r.avail.Invalidate(ctx, eventID)

	snap, err := r.avail.Snapshot(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), snap.AvailableTables)
	assert.Equal(t, uint32(38), snap.AvailableSeats)
}

func TestCanceledAndRefundedFreeInventory(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	id, err := r.store.CreateBooking(ctx, confirmedBooking(eventID, tables[0], 4))
	require.NoError(t, err)

	snap, err := r.avail.Refresh(ctx, eventID)
	require.NoError(t, err)
	require.Equal(t, uint32(9), snap.AvailableTables)

	b, err := r.store.GetBooking(ctx, id)
	require.NoError(t, err)
	b.Status = model.BookingCanceled
	require.NoError(t, r.store.UpdateBooking(ctx, b))

	snap, err = r.avail.Refresh(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), snap.AvailableTables)
	assert.Equal(t, uint32(40), snap.AvailableSeats)
}

func TestIsTableAvailableIgnoresCache(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	eventID, tables := r.seedTableEvent(10, 4)

	// Warm the cache while the table is free.
	_, err := r.avail.Snapshot(ctx, eventID)
	require.NoError(t, err)

	_, err = r.store.CreateBooking(ctx, confirmedBooking(eventID, tables[0], 4))
	require.NoError(t, err)

	free, err := r.avail.IsTableAvailable(ctx, eventID, tables[0])
	require.NoError(t, err)
	assert.False(t, free, "table checks read live state, never the snapshot")

	free, err = r.avail.IsTableAvailable(ctx, eventID, tables[1])
	require.NoError(t, err)
	assert.True(t, free)
}
