// Package dedup implements the idempotency gate that shields the router
// from the platform's at-least-once webhook delivery.
//
// The gate marks every event id in a shared Redis instance with a short
// TTL using SET NX, which makes the create-if-absent check and the expiry
// a single atomic operation across concurrent deliveries and across
// process instances. When Redis is unconfigured or unreachable the gate
// fails open: events are processed as new, which is a degraded but
// non-fatal mode (a duplicate upload beats a dropped one).
package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// keyPrefix namespaces event markers in the shared store.
const keyPrefix = "line_msg_"

// markerValue is the payload stored under each marker key; only the key's
// existence carries meaning.
const markerValue = "processed"

// DefaultTTL exceeds the platform's observed redelivery window.
const DefaultTTL = 60 * time.Second

// Gate decides whether an event id has been seen before.
type Gate interface {
	// ShouldProcess reports true exactly once per event id within the TTL
	// window; callers must skip all further work when it reports false.
	ShouldProcess(ctx context.Context, eventID string) bool
}

// markerClient is the slice of the Redis API the gate needs. *redis.Client
// satisfies it; tests substitute a fake.
type markerClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisGate is the production Gate backed by a shared Redis instance.
type RedisGate struct {
	client markerClient
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisGate constructs a gate over client. A nil client yields a gate
// permanently in fail-open mode, matching a deployment without Redis.
func NewRedisGate(client *redis.Client, ttl time.Duration, log zerolog.Logger) *RedisGate {
	g := &RedisGate{ttl: ttl, log: log}
	if ttl <= 0 {
		g.ttl = DefaultTTL
	}
	if client != nil {
		g.client = client
	}
	return g
}

// ShouldProcess atomically creates the marker for eventID and reports
// whether this delivery is the first one. Store errors fail open with a
// warning; duplicates log at warn level and are otherwise silent.
func (g *RedisGate) ShouldProcess(ctx context.Context, eventID string) bool {
	if g.client == nil {
		return true
	}

	created, err := g.client.SetNX(ctx, keyPrefix+eventID, markerValue, g.ttl).Result()
	if err != nil {
		g.log.Warn().Err(err).Str("event_id", eventID).
			Msg("dedup store unavailable; failing open")
		return true
	}
	if !created {
		g.log.Warn().Str("event_id", eventID).Msg("duplicate event suppressed")
	}
	return created
}
