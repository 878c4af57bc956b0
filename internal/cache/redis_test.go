package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marceau-events/table-reservation/internal/model"
)

func TestRedis_GetHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewRedis(rdb, 5*time.Minute, zerolog.Nop())

	snap := model.Availability{EventID: 42, TotalSeats: 40, AvailableSeats: 36, TotalTables: 10, AvailableTables: 9}
	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	mock.ExpectGet("avail:42").SetVal(string(raw))

	got, ok := c.Get(context.Background(), 42)
	require.True(t, ok)
	assert.Equal(t, snap, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_GetMiss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewRedis(rdb, 5*time.Minute, zerolog.Nop())

	mock.ExpectGet("avail:7").RedisNil()

	_, ok := c.Get(context.Background(), 7)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_GetCorruptEntryDropped(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewRedis(rdb, 5*time.Minute, zerolog.Nop())

	mock.ExpectGet("avail:9").SetVal("{not json")
	mock.ExpectDel("avail:9").SetVal(1)

	_, ok := c.Get(context.Background(), 9)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_SetAndInvalidate(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewRedis(rdb, 5*time.Minute, zerolog.Nop())

	snap := &model.Availability{EventID: 42, TotalSeats: 40, AvailableSeats: 40, TotalTables: 10, AvailableTables: 10}
	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	mock.ExpectSetEx("avail:42", raw, 5*time.Minute).SetVal("OK")
	c.Set(context.Background(), 42, snap)

	mock.ExpectDel("avail:42").SetVal(1)
	c.Invalidate(context.Background(), 42)

	assert.NoError(t, mock.ExpectationsWereMet())
}
