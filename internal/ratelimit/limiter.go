package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// Limiter enforces a fixed one-minute window per IP and endpoint, counted
// in redis so the limit holds across server instances. On any redis error
// the request is allowed: rate limiting degrades open, it never takes the
// chat down with it.
type Limiter struct {
	client            *redisv9.Client
	requestsPerMinute int
}

type Status struct {
	CurrentRequests int       `json:"current_requests"`
	Limit           int       `json:"limit"`
	ResetTime       time.Time `json:"reset_time"`
	Blocked         bool      `json:"blocked"`
}

func NewLimiter(client *redisv9.Client, requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &Limiter{
		client:            client,
		requestsPerMinute: requestsPerMinute,
	}
}

// Allow counts the request against the current window and reports whether
// it is within the limit.
func (l *Limiter) Allow(ctx context.Context, ipAddress, endpoint string) (bool, Status) {
	now := time.Now()
	key := l.windowKey(ipAddress, endpoint, now)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return true, Status{Limit: l.requestsPerMinute, ResetTime: windowEnd(now)}
	}
	if count == 1 {
		// Two minutes covers window skew; the key only needs to survive its
		// own window.
		_ = l.client.Expire(ctx, key, 2*time.Minute).Err()
	}

	allowed := int(count) <= l.requestsPerMinute
	return allowed, Status{
		CurrentRequests: int(count),
		Limit:           l.requestsPerMinute,
		ResetTime:       windowEnd(now),
		Blocked:         !allowed,
	}
}

// Check reads the current window without counting a request.
func (l *Limiter) Check(ctx context.Context, ipAddress, endpoint string) (Status, error) {
	now := time.Now()
	raw, err := l.client.Get(ctx, l.windowKey(ipAddress, endpoint, now)).Result()
	if err == redisv9.Nil {
		return Status{Limit: l.requestsPerMinute, ResetTime: windowEnd(now)}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("redis get rate limit failed: %w", err)
	}

	count, _ := strconv.Atoi(raw)
	return Status{
		CurrentRequests: count,
		Limit:           l.requestsPerMinute,
		ResetTime:       windowEnd(now),
		Blocked:         count > l.requestsPerMinute,
	}, nil
}

func (l *Limiter) windowKey(ipAddress, endpoint string, now time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", ipAddress, endpoint, now.Unix()/60)
}

func windowEnd(now time.Time) time.Time {
	return now.Truncate(time.Minute).Add(time.Minute)
}
