package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/marceau-events/table-reservation/internal/cache"
	"github.com/marceau-events/table-reservation/internal/model"
	"github.com/marceau-events/table-reservation/internal/monitoring"
)

// AvailabilityService computes the seat and table picture for events.
// Snapshots are served from the injected cache while fresh; a stale
// snapshot is never a correctness problem because every write path
// re-checks live state before committing, but every status-changing write
// still invalidates so readers converge fast.
type AvailabilityService struct {
	store Store
	cache cache.AvailabilityCache
	log   zerolog.Logger
}

// NewAvailabilityService returns an AvailabilityService using the given
// store and snapshot cache.
func NewAvailabilityService(store Store, c cache.AvailabilityCache, log zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{store: store, cache: c, log: log}
}

// Snapshot returns the availability picture for the event, from cache when
// fresh, otherwise computed live and cached.
func (s *AvailabilityService) Snapshot(ctx context.Context, eventID uint64) (*model.Availability, error) {
	if snap, ok := s.cache.Get(ctx, eventID); ok {
		monitoring.AvailabilityCacheReads.WithLabelValues("hit").Inc()
		return snap, nil
	}
	monitoring.AvailabilityCacheReads.WithLabelValues("miss").Inc()
	return s.Refresh(ctx, eventID)
}

// Refresh computes availability from live booking state, stores the result
// in the cache and on the event row, and returns it.
func (s *AvailabilityService) Refresh(ctx context.Context, eventID uint64) (*model.Availability, error) {
	event, err := s.store.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	bookedSeats, err := s.store.CountBookedSeats(ctx, eventID)
	if err != nil {
		return nil, err
	}
	bookedTables, err := s.store.CountBookedTables(ctx, eventID)
	if err != nil {
		return nil, err
	}

	snap := compute(event, bookedSeats, bookedTables)
	s.cache.Set(ctx, eventID, snap)

	// The event row counters are a derived convenience for reporting;
	// failing to refresh them must not fail the read.
	if err := s.store.RefreshEventAvailability(ctx, eventID, snap.AvailableSeats, snap.AvailableTables); err != nil {
		s.log.Warn().Err(err).Uint64("event_id", eventID).Msg("availability counter refresh failed")
	}
	return snap, nil
}

// Invalidate drops the cached snapshot for the event.  Every booking or
// hold mutation for the event calls this before readers are told anything.
func (s *AvailabilityService) Invalidate(ctx context.Context, eventID uint64) {
	s.cache.Invalidate(ctx, eventID)
}

// IsTableAvailable reports whether no blocking-status booking occupies the
// pair.  Always a live read, never cached; hold creation and admin edits
// depend on it.
func (s *AvailabilityService) IsTableAvailable(ctx context.Context, eventID, tableID uint64) (bool, error) {
	b, err := s.store.BlockingBookingForTable(ctx, eventID, tableID, 0)
	if err != nil {
		return false, err
	}
	return b == nil, nil
}

// compute derives the snapshot.  Availability is total minus booked,
// clamped at zero, so it never goes negative even when admin bookings push
// booked past total.
func compute(event *model.Event, bookedSeats, bookedTables uint32) *model.Availability {
	snap := &model.Availability{
		EventID:     event.ID,
		TotalSeats:  event.TotalSeats,
		TotalTables: event.TotalTables,
	}
	if bookedSeats < event.TotalSeats {
		snap.AvailableSeats = event.TotalSeats - bookedSeats
	}
	if bookedTables < event.TotalTables {
		snap.AvailableTables = event.TotalTables - bookedTables
	}
	if event.TicketOnly() {
		snap.SoldOut = snap.AvailableSeats == 0
	} else {
		snap.SoldOut = snap.AvailableSeats == 0 || snap.AvailableTables == 0
	}
	return snap
}
