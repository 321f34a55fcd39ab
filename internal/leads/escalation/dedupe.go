package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "escalation:notified"

// RedisDeduper claims a per-lead notification slot for a fixed window.
type RedisDeduper struct {
	client redis.Cmdable
	window time.Duration
}

// NewRedisDeduper returns nil when the client is missing or the window is zero,
// which turns deduplication off.
func NewRedisDeduper(client redis.Cmdable, window time.Duration) *RedisDeduper {
	if client == nil || window <= 0 {
		return nil
	}
	return &RedisDeduper{client: client, window: window}
}

func (d *RedisDeduper) key(tenantID, leadID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", dedupeKeyPrefix, tenantID, leadID)
}

// Claim reports whether the caller may notify for this lead now. A false
// result means another notification went out inside the window.
func (d *RedisDeduper) Claim(ctx context.Context, tenantID, leadID uuid.UUID) (bool, error) {
	if d == nil {
		return true, nil
	}
	ok, err := d.client.SetNX(ctx, d.key(tenantID, leadID), time.Now().UTC().Format(time.RFC3339), d.window).Result()
	if err != nil {
		return true, fmt.Errorf("claim notification slot: %w", err)
	}
	return ok, nil
}

// Release frees the slot so the next pass inside the window may alert again.
func (d *RedisDeduper) Release(ctx context.Context, tenantID, leadID uuid.UUID) error {
	if d == nil {
		return nil
	}
	if err := d.client.Del(ctx, d.key(tenantID, leadID)).Err(); err != nil {
		return fmt.Errorf("release notification slot: %w", err)
	}
	return nil
}
