package cache

import (
	"context"
	"sync"
	"time"

	"github.com/marceau-events/table-reservation/internal/clock"
	"github.com/marceau-events/table-reservation/internal/model"
)

type memoryEntry struct {
	snap     model.Availability
	storedAt time.Time
}

// Memory is an in-process AvailabilityCache.  Suitable for a single
// instance deployment or as the fallback when Redis is unreachable.
type Memory struct {
	mu      sync.RWMutex
	entries map[uint64]memoryEntry
	ttl     time.Duration
	clk     clock.Clock
}

// NewMemory returns a Memory cache whose entries stay fresh for ttl.
func NewMemory(ttl time.Duration, clk clock.Clock) *Memory {
	return &Memory{
		entries: make(map[uint64]memoryEntry),
		ttl:     ttl,
		clk:     clk,
	}
}

func (m *Memory) Get(_ context.Context, eventID uint64) (*model.Availability, bool) {
	m.mu.RLock()
	e, ok := m.entries[eventID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.clk.Now().Sub(e.storedAt) >= m.ttl {
		// Stale entries are dropped on read rather than by a janitor.
		m.mu.Lock()
		if cur, still := m.entries[eventID]; still && cur.storedAt.Equal(e.storedAt) {
			delete(m.entries, eventID)
		}
		m.mu.Unlock()
		return nil, false
	}
	snap := e.snap
	return &snap, true
}

func (m *Memory) Set(_ context.Context, eventID uint64, snap *model.Availability) {
	if snap == nil {
		return
	}
	m.mu.Lock()
	m.entries[eventID] = memoryEntry{snap: *snap, storedAt: m.clk.Now()}
	m.mu.Unlock()
}

func (m *Memory) Invalidate(_ context.Context, eventID uint64) {
	m.mu.Lock()
	delete(m.entries, eventID)
	m.mu.Unlock()
}
