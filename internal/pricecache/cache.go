// Package pricecache keeps an advisory copy of each auction's minimum
// acceptable next bid in Redis. The floor of an auction only ever moves
// up, so a cached value is a safe lower bound: bids below it can be
// refused without touching the ledger. Anything at or above the cached
// floor still goes through the authoritative commit path.
package pricecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/craftbay/auction-service/internal/config"
)

// Cache is the advisory floor cache. A nil Cache is valid and disables
// all caching, so callers never branch on configuration.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to Redis and verifies the connection. Returns nil (cache
// disabled) when the cache is not enabled.
func New(ctx context.Context, cfg config.RedisConfig) (*Cache, error) {
	if !cfg.Enabled || cfg.Addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{rdb: rdb, ttl: ttl}, nil
}

// NewWithClient wraps an existing client, for tests.
func NewWithClient(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func key(recordID string) string {
	return fmt.Sprintf("auction:%s:min_next_bid", recordID)
}

// MinNextBid returns the cached floor for a record. found is false on a
// miss or when the cache is disabled. Errors are returned for logging
// but callers treat them as a miss.
func (c *Cache) MinNextBid(ctx context.Context, recordID string) (floor decimal.Decimal, found bool, err error) {
	if c == nil {
		return decimal.Zero, false, nil
	}

	val, err := c.rdb.Get(ctx, key(recordID)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("reading cached floor: %w", err)
	}

	floor, err = decimal.NewFromString(val)
	if err != nil {
		// A corrupt entry is dropped rather than trusted.
		c.rdb.Del(ctx, key(recordID))
		return decimal.Zero, false, fmt.Errorf("parsing cached floor %q: %w", val, err)
	}
	return floor, true, nil
}

// SetMinNextBid stores the current floor after a successful read or
// commit. Best effort: failures are returned for logging only.
func (c *Cache) SetMinNextBid(ctx context.Context, recordID string, floor decimal.Decimal) error {
	if c == nil {
		return nil
	}
	if err := c.rdb.Set(ctx, key(recordID), floor.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("caching floor: %w", err)
	}
	return nil
}

// Invalidate removes a record's cached floor, e.g. after closing.
func (c *Cache) Invalidate(ctx context.Context, recordID string) error {
	if c == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, key(recordID)).Err(); err != nil {
		return fmt.Errorf("invalidating cached floor: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
