package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// ResponseCache stores arbitrary response payloads in redis under a
// caller-chosen key with a TTL. Redis expiry replaces the manual
// expires-at bookkeeping the file-based predecessor needed.
type ResponseCache struct {
	client     *redisv9.Client
	defaultTTL time.Duration
}

type record struct {
	CacheKey   string         `json:"cache_key"`
	Response   map[string]any `json:"response_data"`
	CreatedAt  time.Time      `json:"created_at"`
	TTLMinutes int            `json:"ttl_minutes"`
}

func NewResponseCache(client *redisv9.Client, defaultTTL time.Duration) *ResponseCache {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Minute
	}
	return &ResponseCache{
		client:     client,
		defaultTTL: defaultTTL,
	}
}

func (c *ResponseCache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

func (c *ResponseCache) Set(ctx context.Context, key string, response map[string]any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	payload, err := json.Marshal(record{
		CacheKey:   key,
		Response:   response,
		CreatedAt:  time.Now(),
		TTLMinutes: int(ttl.Minutes()),
	})
	if err != nil {
		return fmt.Errorf("marshal cache record failed: %w", err)
	}
	if err := c.client.Set(ctx, c.cacheKey(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set cache failed: %w", err)
	}
	return nil
}

// Get returns the cached payload and whether the key was present.
func (c *ResponseCache) Get(ctx context.Context, key string) (map[string]any, bool, error) {
	raw, err := c.client.Get(ctx, c.cacheKey(key)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get cache failed: %w", err)
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, false, fmt.Errorf("unmarshal cache record failed: %w", err)
	}
	return rec.Response, true, nil
}

func (c *ResponseCache) cacheKey(key string) string {
	return "cache:response:" + key
}
