package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const verdictKeyPrefix = "blacklist:jti:"

// BlacklistCache caches revocation verdicts for token jtis so that the hot
// request path does not hit PostgreSQL on every access token check. Entries
// are short-lived; a write to the blacklist must invalidate the cached
// verdict for that jti before the write is acknowledged.
type BlacklistCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBlacklistCache creates a verdict cache with the given entry TTL.
func NewBlacklistCache(client *redis.Client, ttl time.Duration) *BlacklistCache {
	return &BlacklistCache{client: client, ttl: ttl}
}

// Get returns the cached verdict for the jti. The second return value is
// false when the jti has no cached verdict or the cache is unreachable;
// callers fall through to the database in both cases.
func (c *BlacklistCache) Get(ctx context.Context, jti string) (blacklisted, ok bool) {
	val, err := c.client.Get(ctx, verdictKeyPrefix+jti).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

// Set stores the verdict for the jti.
func (c *BlacklistCache) Set(ctx context.Context, jti string, blacklisted bool) error {
	val := "0"
	if blacklisted {
		val = "1"
	}

	if err := c.client.Set(ctx, verdictKeyPrefix+jti, val, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache blacklist verdict: %w", err)
	}
	return nil
}

// Invalidate drops the cached verdict for the jti. Called on every blacklist
// write so a freshly revoked token is never reported clean from the cache.
func (c *BlacklistCache) Invalidate(ctx context.Context, jti string) error {
	if err := c.client.Del(ctx, verdictKeyPrefix+jti).Err(); err != nil {
		return fmt.Errorf("invalidate blacklist verdict: %w", err)
	}
	return nil
}
