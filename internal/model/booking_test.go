package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookingStatus_CanTransitionTo(t *testing.T) {
	allowed := []struct {
		from, to BookingStatus
	}{
		{BookingPending, BookingConfirmed},
		{BookingPending, BookingReserved},
		{BookingPending, BookingComp},
		{BookingPending, BookingCanceled},
		{BookingReserved, BookingConfirmed},
		{BookingReserved, BookingModified},
		{BookingComp, BookingModified},
		{BookingConfirmed, BookingModified},
		{BookingConfirmed, BookingCanceled},
		{BookingConfirmed, BookingRefunded},
		{BookingModified, BookingModified},
		{BookingModified, BookingRefunded},
	}
	for _, tr := range allowed {
		assert.True(t, tr.from.CanTransitionTo(tr.to), "%s to %s should be allowed", tr.from, tr.to)
	}

	denied := []struct {
		from, to BookingStatus
	}{
		{BookingConfirmed, BookingPending},
		{BookingConfirmed, BookingReserved},
		{BookingCanceled, BookingConfirmed},
		{BookingCanceled, BookingModified},
		{BookingRefunded, BookingConfirmed},
		{BookingRefunded, BookingCanceled},
		{BookingModified, BookingConfirmed},
		{BookingComp, BookingConfirmed},
	}
	for _, tr := range denied {
		assert.False(t, tr.from.CanTransitionTo(tr.to), "%s to %s should be denied", tr.from, tr.to)
	}
}

func TestBookingStatus_Terminal(t *testing.T) {
	assert.True(t, BookingCanceled.Terminal())
	assert.True(t, BookingRefunded.Terminal())
	for _, s := range []BookingStatus{BookingPending, BookingReserved, BookingComp, BookingConfirmed, BookingModified} {
		assert.False(t, s.Terminal(), "%s is not terminal", s)
	}
}

func TestBookingStatus_Blocks(t *testing.T) {
	// The blocking set must be uniform: confirmed, reserved, comp, modified.
	for _, s := range []BookingStatus{BookingConfirmed, BookingReserved, BookingComp, BookingModified} {
		assert.True(t, s.Blocks(), "%s blocks inventory", s)
	}
	for _, s := range []BookingStatus{BookingPending, BookingCanceled, BookingRefunded} {
		assert.False(t, s.Blocks(), "%s does not block inventory", s)
	}
}

func TestBookingStatus_CountsTowardSeats(t *testing.T) {
	for _, s := range []BookingStatus{BookingPending, BookingReserved, BookingComp, BookingConfirmed, BookingModified} {
		assert.True(t, s.CountsTowardSeats(), "%s counts booked seats", s)
	}
	assert.False(t, BookingCanceled.CountsTowardSeats())
	assert.False(t, BookingRefunded.CountsTowardSeats())
}

func TestBookingStatus_Valid(t *testing.T) {
	assert.True(t, BookingConfirmed.Valid())
	assert.False(t, BookingStatus("paid").Valid())
	assert.False(t, BookingStatus("").Valid())
}
