// Package cache keeps per-user unread counters in Redis so the badge query
// does not hit Postgres on every poll. The store stays the source of truth:
// a cache miss or a Redis outage falls back to counting rows.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"findmyid/internal/platform/redis"
	"findmyid/pkg/platform/circuit"
)

const (
	keyPrefix = "findmyid:notif:unread:"
	counterTTL = 10 * time.Minute
)

// errUnavailable marks a skipped Redis operation while the breaker is open.
var errUnavailable = errors.New("unread cache unavailable")

// UnreadCounter caches unread counts keyed by user ID. All operations are
// best-effort behind a circuit breaker; callers treat any error as a miss.
type UnreadCounter struct {
	client  *redis.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewUnreadCounter(client *redis.Client, logger *slog.Logger) *UnreadCounter {
	return &UnreadCounter{
		client:  client,
		breaker: circuit.New("notification-unread-cache"),
		logger:  logger,
	}
}

// Get returns the cached counter, or an error for a miss or an outage.
func (c *UnreadCounter) Get(ctx context.Context, userID string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, errUnavailable
	}
	if c.breaker.IsOpen() {
		// Half-open probe: a cheap ping is the only traffic Redis sees
		// until enough of them succeed to close the breaker again.
		if err := c.client.Ping(ctx).Err(); err != nil {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
		return 0, errUnavailable
	}
	raw, err := c.client.Get(ctx, keyPrefix+userID).Result()
	if errors.Is(err, goredis.Nil) {
		c.breaker.RecordSuccess()
		return 0, errUnavailable // a miss, not an outage
	}
	if err != nil {
		c.recordFailure(ctx, "get", err)
		return 0, errUnavailable
	}
	c.breaker.RecordSuccess()
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errUnavailable
	}
	return count, nil
}

// Set stores a freshly counted value with a TTL guarding against drift.
func (c *UnreadCounter) Set(ctx context.Context, userID string, count int64) {
	if c == nil || c.client == nil || c.breaker.IsOpen() {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+userID, count, counterTTL).Err(); err != nil {
		c.recordFailure(ctx, "set", err)
		return
	}
	c.breaker.RecordSuccess()
}

// Invalidate drops the counter after any write that changes it. The next
// read recounts from the store.
func (c *UnreadCounter) Invalidate(ctx context.Context, userID string) {
	if c == nil || c.client == nil || c.breaker.IsOpen() {
		return
	}
	if err := c.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		c.recordFailure(ctx, "del", err)
		return
	}
	c.breaker.RecordSuccess()
}

func (c *UnreadCounter) recordFailure(ctx context.Context, op string, err error) {
	_, change := c.breaker.RecordFailure()
	if change.Opened && c.logger != nil {
		c.logger.WarnContext(ctx, "unread cache breaker opened",
			"op", op,
			"error", err,
		)
	}
}
