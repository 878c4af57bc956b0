package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/marceau-events/table-reservation/internal/model"
)

// Redis is an AvailabilityCache on a shared Redis instance, so every
// server replica sees the same snapshots and invalidations.  Freshness is
// delegated to Redis key expiry.  Failures degrade to misses.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    zerolog.Logger
}

// NewRedis returns a Redis cache whose entries expire after ttl.
func NewRedis(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *Redis {
	return &Redis{rdb: rdb, ttl: ttl, prefix: "avail", log: log}
}

func (r *Redis) key(eventID uint64) string {
	return fmt.Sprintf("%s:%d", r.prefix, eventID)
}

func (r *Redis) Get(ctx context.Context, eventID uint64) (*model.Availability, bool) {
	bs, err := r.rdb.Get(ctx, r.key(eventID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.Warn().Err(err).Uint64("event_id", eventID).Msg("availability cache read failed")
		}
		return nil, false
	}
	var snap model.Availability
	if err := json.Unmarshal(bs, &snap); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		_ = r.rdb.Del(ctx, r.key(eventID)).Err()
		return nil, false
	}
	return &snap, true
}

func (r *Redis) Set(ctx context.Context, eventID uint64, snap *model.Availability) {
	if snap == nil {
		return
	}
	bs, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := r.rdb.SetEx(ctx, r.key(eventID), bs, r.ttl).Err(); err != nil {
		r.log.Warn().Err(err).Uint64("event_id", eventID).Msg("availability cache write failed")
	}
}

func (r *Redis) Invalidate(ctx context.Context, eventID uint64) {
	if err := r.rdb.Del(ctx, r.key(eventID)).Err(); err != nil {
		r.log.Warn().Err(err).Uint64("event_id", eventID).Msg("availability cache invalidation failed")
	}
}
