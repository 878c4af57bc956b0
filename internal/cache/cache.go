// Package cache holds the availability snapshot cache behind an explicit
// abstraction injected into the availability calculator.  Implementations
// are best effort: a broken cache degrades to recomputation, never to an
// error surfaced to callers.
package cache

import (
	"context"

	"github.com/marceau-events/table-reservation/internal/model"
)

// AvailabilityCache stores availability snapshots keyed by event id with a
// freshness TTL.  Get reports a hit only while the entry is fresh.
type AvailabilityCache interface {
	Get(ctx context.Context, eventID uint64) (*model.Availability, bool)
	Set(ctx context.Context, eventID uint64, snap *model.Availability)
	Invalidate(ctx context.Context, eventID uint64)
}
