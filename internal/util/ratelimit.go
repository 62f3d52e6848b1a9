package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter holding callers to a fixed number of
// operations per minute. The CoinGecko public API allows roughly 30 requests
// per minute, so every client call goes through one of these.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration // time between replenished tokens
	next     time.Time     // earliest time the next token is available
}

// NewRateLimiter creates a RateLimiter allowing perMinute operations per
// minute. The first call proceeds immediately.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{
		interval: time.Minute / time.Duration(perMinute),
		next:     time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	now := time.Now()
	wait := rl.next.Sub(now)
	if wait < 0 {
		wait = 0
		rl.next = now
	}
	rl.next = rl.next.Add(rl.interval)
	rl.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
