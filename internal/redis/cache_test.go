package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careslot/hospital-booking/internal/booking"
	"github.com/careslot/hospital-booking/pkg/logging"
)

func newTestCache(t *testing.T) (*SlotCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSlotCache(client, time.Minute, logging.New("error")), mr
}

func TestSlotCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	doctorID := uuid.New()

	_, ok := cache.GetOpenSlots(ctx, doctorID)
	assert.False(t, ok, "empty cache must miss")

	slots := []booking.Slot{
		{
			ID:        uuid.New(),
			DoctorID:  doctorID,
			Date:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			StartTime: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
		},
	}
	cache.SetOpenSlots(ctx, doctorID, slots)

	got, ok := cache.GetOpenSlots(ctx, doctorID)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, slots[0].ID, got[0].ID)
	assert.True(t, slots[0].StartTime.Equal(got[0].StartTime))
}

func TestSlotCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	doctorID := uuid.New()

	cache.SetOpenSlots(ctx, doctorID, []booking.Slot{{ID: uuid.New()}})
	cache.Invalidate(ctx, doctorID)

	_, ok := cache.GetOpenSlots(ctx, doctorID)
	assert.False(t, ok)
}

func TestSlotCacheExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	doctorID := uuid.New()

	cache.SetOpenSlots(ctx, doctorID, []booking.Slot{{ID: uuid.New()}})
	mr.FastForward(2 * time.Minute)

	_, ok := cache.GetOpenSlots(ctx, doctorID)
	assert.False(t, ok)
}

func TestSlotCacheCorruptEntry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	doctorID := uuid.New()

	require.NoError(t, mr.Set(openSlotsKey(doctorID), "{not json"))

	_, ok := cache.GetOpenSlots(ctx, doctorID)
	assert.False(t, ok)
	// Corrupt entries are dropped so the next write starts clean.
	assert.False(t, mr.Exists(openSlotsKey(doctorID)))
}
