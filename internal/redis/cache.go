package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/careslot/hospital-booking/internal/booking"
	"github.com/careslot/hospital-booking/pkg/logging"
)

// SlotCache caches open-slot listings per doctor. All failures degrade to a
// cache miss; the datastore stays authoritative.
type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewSlotCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *SlotCache {
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func openSlotsKey(doctorID uuid.UUID) string {
	return "slots:open:" + doctorID.String()
}

func (c *SlotCache) GetOpenSlots(ctx context.Context, doctorID uuid.UUID) ([]booking.Slot, bool) {
	data, err := c.client.Get(ctx, openSlotsKey(doctorID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("slot cache read failed", "doctor_id", doctorID, "error", err)
		}
		return nil, false
	}

	var slots []booking.Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		c.logger.Warn("slot cache entry corrupt, dropping", "doctor_id", doctorID, "error", err)
		_ = c.client.Del(ctx, openSlotsKey(doctorID)).Err()
		return nil, false
	}
	return slots, true
}

func (c *SlotCache) SetOpenSlots(ctx context.Context, doctorID uuid.UUID, slots []booking.Slot) {
	data, err := json.Marshal(slots)
	if err != nil {
		c.logger.Warn("slot cache marshal failed", "doctor_id", doctorID, "error", err)
		return
	}
	if err := c.client.Set(ctx, openSlotsKey(doctorID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("slot cache write failed", "doctor_id", doctorID, "error", err)
	}
}

func (c *SlotCache) Invalidate(ctx context.Context, doctorID uuid.UUID) {
	if err := c.client.Del(ctx, openSlotsKey(doctorID)).Err(); err != nil {
		c.logger.Warn("slot cache invalidate failed", "doctor_id", doctorID, "error", err)
	}
}
