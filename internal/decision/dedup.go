package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DeliveryHistory is the store surface used for authoritative dedup.
type DeliveryHistory interface {
	LastByDedupeKey(ctx context.Context, key string) (*time.Time, error)
}

// Deduper suppresses repeat deliveries of the same underlying condition
// within the cooldown window. Redis holds a fast-path TTL key armed at
// delivery time; the deliveries table is the source of truth. Redis
// being down never blocks a decision, it only loses the fast path.
type Deduper struct {
	rdb     *redis.Client // nil disables the fast path
	history DeliveryHistory
	ttl     time.Duration
	logger  *zap.Logger
}

func NewDeduper(rdb *redis.Client, history DeliveryHistory, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{rdb: rdb, history: history, ttl: ttl, logger: logger}
}

func cooldownKey(dedupeKey string) string {
	return fmt.Sprintf("cooldown:%s", dedupeKey)
}

// SeenRecently reports whether the dedupe key was delivered within the
// cooldown window ending at now.
func (d *Deduper) SeenRecently(ctx context.Context, dedupeKey string, now time.Time) bool {
	if dedupeKey == "" || d.ttl <= 0 {
		return false
	}

	if d.rdb != nil {
		n, err := d.rdb.Exists(ctx, cooldownKey(dedupeKey)).Result()
		if err == nil && n > 0 {
			return true
		}
		if err != nil {
			d.logger.Warn("Redis dedup check failed, falling back to store",
				zap.String("dedupe_key", dedupeKey),
				zap.Error(err),
			)
		}
	}

	last, err := d.history.LastByDedupeKey(ctx, dedupeKey)
	if err != nil {
		// Store unavailable: allow rather than silently drop.
		d.logger.Warn("Dedup history lookup failed, allowing delivery",
			zap.String("dedupe_key", dedupeKey),
			zap.Error(err),
		)
		return false
	}
	return last != nil && now.Sub(*last) < d.ttl
}

// Arm starts the cooldown for a key. Called after a successful delivery.
func (d *Deduper) Arm(ctx context.Context, dedupeKey string) {
	if dedupeKey == "" || d.rdb == nil || d.ttl <= 0 {
		return
	}
	if err := d.rdb.Set(ctx, cooldownKey(dedupeKey), 1, d.ttl).Err(); err != nil {
		d.logger.Warn("Failed to arm dedup cooldown",
			zap.String("dedupe_key", dedupeKey),
			zap.Error(err),
		)
	}
}
