package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marceau-events/table-reservation/internal/model"
	"github.com/marceau-events/table-reservation/internal/repository"
)

// memStore is an in-memory Store for the service tests.  It enforces the
// same arbitration the schema does: at most one active hold and one
// blocking booking per (event, table), version CAS on booking updates,
// and a unique gateway event id per payment event.  All methods are safe
// for concurrent use, so races resolve here the way the database resolves
// them.
type memStore struct {
	mu sync.Mutex

	events        map[uint64]model.Event
	tables        map[uint64]model.Table
	bookings      map[uint64]model.Booking
	holds         map[uint64]model.SeatHold
	paymentEvents map[uint64]model.PaymentEvent

	nextEventID   uint64
	nextTableID   uint64
	nextBookingID uint64
	nextHoldID    uint64
	nextPaymentID uint64
}

func newMemStore() *memStore {
	return &memStore{
		events:        make(map[uint64]model.Event),
		tables:        make(map[uint64]model.Table),
		bookings:      make(map[uint64]model.Booking),
		holds:         make(map[uint64]model.SeatHold),
		paymentEvents: make(map[uint64]model.PaymentEvent),
	}
}

var _ Store = (*memStore)(nil)

// --- events ---

func (m *memStore) CreateEvent(_ context.Context, e *model.Event) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventID++
	cp := *e
	cp.ID = m.nextEventID
	m.events[cp.ID] = cp
	return cp.ID, nil
}

func (m *memStore) GetEventByID(_ context.Context, id uint64) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (m *memStore) ListEvents(_ context.Context) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateEvent(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; !ok {
		return repository.ErrNotFound
	}
	m.events[e.ID] = *e
	return nil
}

func (m *memStore) RefreshEventAvailability(_ context.Context, eventID uint64, seats, tables uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return repository.ErrNotFound
	}
	e.AvailableSeats = seats
	e.AvailableTables = tables
	m.events[eventID] = e
	return nil
}

// --- tables ---

func (m *memStore) GetTableByID(_ context.Context, id uint64) (*model.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (m *memStore) ListTables(_ context.Context) ([]model.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Table, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- bookings ---

// blockingConflict reports whether a blocking booking other than excludeID
// already occupies the pair.  Mirrors uq_blocking_booking.
func (m *memStore) blockingConflict(eventID uint64, tableID *uint64, excludeID uint64) bool {
	if tableID == nil {
		return false
	}
	for _, b := range m.bookings {
		if b.ID == excludeID || b.EventID != eventID || b.TableID == nil {
			continue
		}
		if *b.TableID == *tableID && b.Status.Blocks() {
			return true
		}
	}
	return false
}

func (m *memStore) CreateBooking(_ context.Context, b *model.Booking) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.Status.Blocks() && m.blockingConflict(b.EventID, b.TableID, 0) {
		return 0, repository.ErrTableTaken
	}
	m.nextBookingID++
	cp := *b
	cp.ID = m.nextBookingID
	if cp.Version == 0 {
		cp.Version = 1
	}
	m.bookings[cp.ID] = cp
	return cp.ID, nil
}

func (m *memStore) GetBooking(_ context.Context, id uint64) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (m *memStore) GetBookingByPaymentRef(_ context.Context, ref string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.PaymentRef != nil && *b.PaymentRef == ref {
			cp := b
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) UpdateBooking(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.bookings[b.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != b.Version {
		return repository.ErrVersionConflict
	}
	if b.Status.Blocks() && m.blockingConflict(b.EventID, b.TableID, b.ID) {
		return repository.ErrTableTaken
	}
	cp := *b
	cp.Version++
	m.bookings[cp.ID] = cp
	b.Version = cp.Version
	return nil
}

func (m *memStore) BlockingBookingForTable(_ context.Context, eventID, tableID, excludeID uint64) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.ID == excludeID || b.EventID != eventID || b.TableID == nil {
			continue
		}
		if *b.TableID == tableID && b.Status.Blocks() {
			cp := b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) BookingsByUserAndEvent(_ context.Context, userID, eventID uint64) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.UserID == userID && b.EventID == eventID && b.Status.CountsTowardSeats() {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CountBookedSeats(_ context.Context, eventID uint64) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum uint32
	for _, b := range m.bookings {
		if b.EventID == eventID && b.Status.CountsTowardSeats() {
			sum += b.PartySize
		}
	}
	return sum, nil
}

func (m *memStore) CountBookedTables(_ context.Context, eventID uint64) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uint64]struct{})
	for _, b := range m.bookings {
		if b.EventID == eventID && b.TableID != nil && b.Status.Blocks() {
			seen[*b.TableID] = struct{}{}
		}
	}
	return uint32(len(seen)), nil
}

func (m *memStore) CreateConfirmedBooking(_ context.Context, b *model.Booking, lockToken string) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.Status = model.BookingConfirmed
	if m.blockingConflict(b.EventID, b.TableID, 0) {
		return 0, false, repository.ErrTableTaken
	}
	m.nextBookingID++
	cp := *b
	cp.ID = m.nextBookingID
	cp.Version = 1
	m.bookings[cp.ID] = cp
	return cp.ID, m.completeHoldLocked(lockToken), nil
}

func (m *memStore) ConfirmPendingBooking(_ context.Context, bookingID, version uint64, paymentRef, lockToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.bookings[bookingID]
	if !ok || cur.Version != version || cur.Status != model.BookingPending {
		return repository.ErrVersionConflict
	}
	if m.blockingConflict(cur.EventID, cur.TableID, cur.ID) {
		return repository.ErrTableTaken
	}
	cur.Status = model.BookingConfirmed
	if paymentRef != "" {
		ref := paymentRef
		cur.PaymentRef = &ref
	}
	cur.Version++
	m.bookings[bookingID] = cur
	m.completeHoldLocked(lockToken)
	return nil
}

// --- seat holds ---

func (m *memStore) CreateSeatHold(_ context.Context, h *model.SeatHold) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// One active hold per pair, expired-but-unswept rows included, exactly
	// as the uq_active_hold index sees them.
	for _, ex := range m.holds {
		if ex.EventID == h.EventID && ex.TableID == h.TableID && ex.Status == model.HoldActive {
			return 0, repository.ErrTableTaken
		}
	}
	m.nextHoldID++
	cp := *h
	cp.ID = m.nextHoldID
	m.holds[cp.ID] = cp
	return cp.ID, nil
}

func (m *memStore) GetSeatHoldByToken(_ context.Context, token string) (*model.SeatHold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.holds {
		if h.LockToken == token {
			cp := h
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) GetActiveSeatHolds(_ context.Context, eventID, tableID uint64) ([]model.SeatHold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SeatHold
	for _, h := range m.holds {
		if h.EventID == eventID && h.TableID == tableID && h.Status == model.HoldActive {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ExpireSeatHold(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[id]
	if !ok || h.Status != model.HoldActive {
		return nil
	}
	h.Status = model.HoldExpired
	m.holds[id] = h
	return nil
}

func (m *memStore) CompleteSeatHold(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeHoldLocked(token), nil
}

func (m *memStore) completeHoldLocked(token string) bool {
	if token == "" {
		return false
	}
	for id, h := range m.holds {
		if h.LockToken == token && h.Status == model.HoldActive {
			h.Status = model.HoldCompleted
			m.holds[id] = h
			return true
		}
	}
	return false
}

func (m *memStore) ExpireStaleSeatHolds(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, h := range m.holds {
		if h.Status == model.HoldActive && h.IsExpired(now) {
			h.Status = model.HoldExpired
			m.holds[id] = h
			n++
		}
	}
	return n, nil
}

// --- payment events ---

func (m *memStore) RecordPaymentEvent(_ context.Context, gatewayEventID, kind string, amountCents uint32) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pe := range m.paymentEvents {
		if pe.GatewayEventID == gatewayEventID {
			return 0, repository.ErrDuplicateEvent
		}
	}
	m.nextPaymentID++
	pe := model.PaymentEvent{
		ID:             m.nextPaymentID,
		GatewayEventID: gatewayEventID,
		Kind:           kind,
		Outcome:        model.OutcomeReceived,
		AmountCents:    amountCents,
	}
	m.paymentEvents[pe.ID] = pe
	return pe.ID, nil
}

func (m *memStore) GetPaymentEventByGatewayID(_ context.Context, gatewayEventID string) (*model.PaymentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pe := range m.paymentEvents {
		if pe.GatewayEventID == gatewayEventID {
			cp := pe
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) ResolvePaymentEvent(_ context.Context, id uint64, outcome model.PaymentOutcome, bookingID *uint64, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pe, ok := m.paymentEvents[id]
	if !ok {
		return repository.ErrNotFound
	}
	pe.Outcome = outcome
	pe.BookingID = bookingID
	pe.Note = note
	m.paymentEvents[id] = pe
	return nil
}

func (m *memStore) PaymentEventsByOutcome(_ context.Context, outcome model.PaymentOutcome) ([]model.PaymentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PaymentEvent
	for _, pe := range m.paymentEvents {
		if pe.Outcome == outcome {
			out = append(out, pe)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- seeding helpers ---

func (m *memStore) seedEvent(e model.Event) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventID++
	e.ID = m.nextEventID
	m.events[e.ID] = e
	return e.ID
}

func (m *memStore) seedTable(t model.Table) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTableID++
	t.ID = m.nextTableID
	m.tables[t.ID] = t
	return t.ID
}

func (m *memStore) bookingByID(id uint64) model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

func (m *memStore) holdByID(id uint64) model.SeatHold {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holds[id]
}

func (m *memStore) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}
