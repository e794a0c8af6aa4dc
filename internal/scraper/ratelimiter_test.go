package scraper

import (
	"testing"
	"time"
)

func TestRateLimiter_EnforcesMinimumInterval(t *testing.T) {
	rl := NewRateLimiter(10) // 100ms gap
	start := time.Now()
	rl.Wait()
	rl.Wait()
	elapsed := time.Since(start)
	if elapsed < 90*time.Millisecond {
		t.Errorf("expected at least ~100ms between two Wait() calls, got %v", elapsed)
	}
}

func TestRateLimiter_DefaultsWhenNonPositive(t *testing.T) {
	rl := NewRateLimiter(0)
	if rl.minInterval != 500*time.Millisecond {
		t.Errorf("expected default 2req/s (500ms interval), got %v", rl.minInterval)
	}
}
