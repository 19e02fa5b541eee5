package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps Redis based caching of resolved policies. Policies are safe to
// cache per request: changes never recalculate past transactions.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(orgID int64) string {
	return fmt.Sprintf("policy:org:%d", orgID)
}

// Fetch loads a cached policy or populates it using the loader.
func (c *Cache) Fetch(ctx context.Context, orgID int64, loader func(context.Context) (Policy, error)) (Policy, error) {
	if loader == nil {
		return Policy{}, errors.New("policy cache: loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := cacheKey(orgID)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var p Policy
		if unmarshalErr := json.Unmarshal(raw, &p); unmarshalErr == nil {
			return p, nil
		}
		// Corrupt entry, fall through to loader.
	} else if !errors.Is(err, redis.Nil) {
		return Policy{}, err
	}

	p, err := loader(ctx)
	if err != nil {
		return Policy{}, err
	}
	encoded, err := json.Marshal(p)
	if err != nil {
		return Policy{}, err
	}
	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Invalidate drops the cached policy for an organization.
func (c *Cache) Invalidate(ctx context.Context, orgID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKey(orgID)).Err()
}
