package scraper

import (
	"sync"
	"time"
)

// RateLimiter is a process-wide serializer guaranteeing that any two
// successive upstream HTTP calls, from any concurrent worker, are
// separated by at least 1/requestsPerSecond seconds.
type RateLimiter struct {
	mu              sync.Mutex
	minInterval     time.Duration
	lastRequestedAt time.Time
}

// NewRateLimiter creates a RateLimiter admitting requestsPerSecond
// requests per second (default 2.0 if zero or negative).
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2.0
	}
	return &RateLimiter{
		minInterval: time.Duration(float64(time.Second) / requestsPerSecond),
	}
}

// Wait blocks until the minimum inter-request gap since the previous
// acquisition has elapsed, then records the new timestamp.
func (r *RateLimiter) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if !r.lastRequestedAt.IsZero() {
		elapsed := now.Sub(r.lastRequestedAt)
		if residual := r.minInterval - elapsed; residual > 0 {
			time.Sleep(residual)
			now = time.Now()
		}
	}
	r.lastRequestedAt = now
}
