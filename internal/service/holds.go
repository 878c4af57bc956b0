package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/marceau-events/table-reservation/internal/clock"
	"github.com/marceau-events/table-reservation/internal/model"
	"github.com/marceau-events/table-reservation/internal/monitoring"
	"github.com/marceau-events/table-reservation/internal/repository"
	"github.com/marceau-events/table-reservation/internal/utils"
)

// DefaultHoldTTL is how long a seat hold protects its table before payment
// must land.
const DefaultHoldTTL = 20 * time.Minute

// HoldService owns the seat hold lifecycle: create, validate, complete,
// sweep.  A hold leaves active exactly once.  Validation applies lazy
// expiry, so callers always see the truth regardless of the sweep.
type HoldService struct {
	store     Store
	validator *BookingValidator
	clk       clock.Clock
	ttl       time.Duration
	log       zerolog.Logger
}

// NewHoldService returns a HoldService with the given TTL; pass 0 to use
// DefaultHoldTTL.
func NewHoldService(store Store, validator *BookingValidator, clk clock.Clock, ttl time.Duration, log zerolog.Logger) *HoldService {
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	return &HoldService{store: store, validator: validator, clk: clk, ttl: ttl, log: log}
}

// CreateHoldInput carries everything a reservation attempt pins down.
type CreateHoldInput struct {
	EventID     uint64
	TableID     uint64
	SeatNumbers []uint32
	PartySize   uint32
	UserID      uint64 // 0 for guest checkout
	SessionID   string
	Selections  []model.Selection
	CutoffDays  int
}

// HoldGrant is the successful result of CreateHold.  The lock token is
// the caller's only credential for the hold.
type HoldGrant struct {
	HoldID    uint64        `json:"-"`
	LockToken string        `json:"lock_token"`
	ExpiresAt time.Time     `json:"expires_at"`
	ExpiresIn time.Duration `json:"-"`
}

// ExpiresInMS is the grant lifetime in milliseconds, the shape clients
// count down from.
func (g *HoldGrant) ExpiresInMS() int64 { return g.ExpiresIn.Milliseconds() }

// CreateHold validates the attempt and persists an active hold on the
// table.  Business refusals come back as *ConflictError; any other error
// is infrastructure and callers present "try again".  The unique index on
// active holds arbitrates writers that race past validation: exactly one
// wins, the rest get CodeTableUnavailable.
func (s *HoldService) CreateHold(ctx context.Context, in CreateHoldInput) (*HoldGrant, error) {
	if err := model.ValidateSelections(in.Selections); err != nil {
		return nil, err
	}

	event, err := s.store.GetEventByID(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if event.TicketOnly() {
		return nil, s.refuse(CodeTableUnavailable, "event %q has no table seating", event.Name)
	}
	if !s.validator.WithinTicketCutoff(event.StartsAt, in.CutoffDays) {
		return nil, s.refuse(CodeCutoffPassed, "bookings for %q closed %d day(s) before the event", event.Name, in.CutoffDays)
	}

	if ok, err := s.validator.NoDuplicateBooking(ctx, in.UserID, in.EventID); err != nil {
		return nil, err
	} else if !ok {
		return nil, s.refuse(CodeDuplicateBooking, "you already have a booking for %q", event.Name)
	}

	if ok, err := s.validator.PartyFitsTable(ctx, in.TableID, in.PartySize); err != nil {
		return nil, err
	} else if !ok {
		return nil, s.refuse(CodePartyTooLarge, "party of %d does not fit this table", in.PartySize)
	}

	// Last read-side check before the write; the insert below is the
	// authoritative arbiter.
	if ok, err := s.validator.TableAvailableForBooking(ctx, in.EventID, in.TableID); err != nil {
		return nil, err
	} else if !ok {
		return nil, s.refuse(CodeTableUnavailable, "table is no longer available")
	}

	token, err := utils.NewLockToken()
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	hold := &model.SeatHold{
		EventID:     in.EventID,
		TableID:     in.TableID,
		SeatNumbers: in.SeatNumbers,
		UserID:      in.UserID,
		SessionID:   in.SessionID,
		LockToken:   token,
		Selections:  in.Selections,
		Status:      model.HoldActive,
		HeldAt:      now,
		ExpiresAt:   now.Add(s.ttl),
	}
	id, err := s.store.CreateSeatHold(ctx, hold)
	if err != nil {
		if errors.Is(err, repository.ErrTableTaken) {
			return nil, s.refuse(CodeTableUnavailable, "table is no longer available")
		}
		return nil, err
	}

	monitoring.HoldsCreated.Inc()
	s.log.Info().
		Uint64("hold_id", id).
		Uint64("event_id", in.EventID).
		Uint64("table_id", in.TableID).
		Time("expires_at", hold.ExpiresAt).
		Msg("seat hold created")

	return &HoldGrant{
		HoldID:    id,
		LockToken: token,
		ExpiresAt: hold.ExpiresAt,
		ExpiresIn: s.ttl,
	}, nil
}

// ValidateHold reports whether the token still protects the given pair.
// Reading an active hold past its TTL transitions it to expired on the
// spot, so a hold can never be reported active merely because no sweep
// has run.
func (s *HoldService) ValidateHold(ctx context.Context, token string, eventID, tableID uint64) (bool, ConflictCode, error) {
	hold, err := s.store.GetSeatHoldByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, CodeHoldNotFound, nil
		}
		return false, "", err
	}

	switch hold.Status {
	case model.HoldCompleted:
		return false, CodeHoldCompleted, nil
	case model.HoldExpired:
		return false, CodeHoldExpired, nil
	}

	if hold.IsExpired(s.clk.Now()) {
		if err := s.store.ExpireSeatHold(ctx, hold.ID); err != nil {
			s.log.Warn().Err(err).Uint64("hold_id", hold.ID).Msg("lazy hold expiry failed")
		} else {
			monitoring.HoldsExpired.WithLabelValues("lazy").Inc()
		}
		return false, CodeHoldExpired, nil
	}

	if hold.EventID != eventID || hold.TableID != tableID {
		return false, CodeHoldNotFound, nil
	}
	return true, "", nil
}

// CompleteHold transitions the hold to completed.  Idempotent: completing
// a missing, already-completed or expired hold reports false and no
// error, which is what makes duplicate webhook delivery harmless here.
func (s *HoldService) CompleteHold(ctx context.Context, token string) (bool, error) {
	done, err := s.store.CompleteSeatHold(ctx, token)
	if err != nil {
		return false, err
	}
	if done {
		monitoring.HoldsCompleted.Inc()
	}
	return done, nil
}

// ExpireStaleHolds bulk-transitions every active hold past its TTL.
// Storage hygiene on a timer; correctness never waits for it.
func (s *HoldService) ExpireStaleHolds(ctx context.Context) (int64, error) {
	n, err := s.store.ExpireStaleSeatHolds(ctx, s.clk.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		monitoring.HoldsExpired.WithLabelValues("sweep").Add(float64(n))
		s.log.Info().Int64("count", n).Msg("stale holds expired")
	}
	return n, nil
}

func (s *HoldService) refuse(code ConflictCode, format string, args ...any) *ConflictError {
	monitoring.HoldConflicts.WithLabelValues(string(code)).Inc()
	return conflict(code, format, args...)
}
