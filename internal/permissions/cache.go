package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// GrantCache is a TTL-bounded read-through cache of grant sets. Cache
// failures degrade to the store, never to an allow, so every method is
// nil-safe and best-effort.
type GrantCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGrantCache instantiates the cache helper.
func NewGrantCache(client *redis.Client, ttl time.Duration) *GrantCache {
	return &GrantCache{client: client, ttl: ttl}
}

func grantKey(schoolID, staffID int64) string {
	return fmt.Sprintf("perm:grants:%d:%d", schoolID, staffID)
}

// Get returns the cached grant set, reporting whether the key was present.
func (c *GrantCache) Get(ctx context.Context, schoolID, staffID int64) ([]GrantPair, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, grantKey(schoolID, staffID)).Bytes()
	if err != nil {
		return nil, false
	}
	var pairs []GrantPair
	if err := json.Unmarshal(payload, &pairs); err != nil {
		_ = c.client.Del(ctx, grantKey(schoolID, staffID)).Err()
		return nil, false
	}
	return pairs, true
}

// Set stores the grant set with the configured TTL. An empty set is cached
// too; it is a valid answer, not a miss.
func (c *GrantCache) Set(ctx context.Context, schoolID, staffID int64, pairs []GrantPair) {
	if c == nil || c.client == nil {
		return
	}
	if pairs == nil {
		pairs = []GrantPair{}
	}
	raw, err := json.Marshal(pairs)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, grantKey(schoolID, staffID), raw, c.ttl).Err()
}

// Invalidate drops the staff member's cached grant set.
func (c *GrantCache) Invalidate(ctx context.Context, schoolID, staffID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, grantKey(schoolID, staffID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("permissions: invalidate grant cache: %w", err)
	}
	return nil
}
