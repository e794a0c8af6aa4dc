package scheduler

import (
	"math"
	"math/rand"
	"time"
)

// BackoffPolicy is Celery-style exponential backoff with jitter, applied at
// the stage-task level (not per item) when a stage worker itself errors out
// rather than recording a per-item failure.
type BackoffPolicy struct {
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	MaxRetries    int
}

// defaultPostingBackoff matches the source system's Celery task backoff for
// the Posting stage: base 60s, cap 600s, jitter.
func defaultPostingBackoff() BackoffPolicy {
	return BackoffPolicy{InitialDelay: 60 * time.Second, MaxDelay: 600 * time.Second, BackoffFactor: 2, MaxRetries: 5}
}

// defaultStageBackoff is the shorter default used by Discovery, Preparation
// and Generation, whose failures are cheaper to retry than a post.
func defaultStageBackoff() BackoffPolicy {
	return BackoffPolicy{InitialDelay: 10 * time.Second, MaxDelay: 120 * time.Second, BackoffFactor: 2, MaxRetries: 5}
}

// delay computes the backoff duration for a given attempt (0-indexed), with
// up to 20% jitter to avoid thundering-herd retries across processes.
func (p BackoffPolicy) delay(attempt int) time.Duration {
	base := float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt))
	d := time.Duration(base)
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(d)/5 + 1))
	return d + jitter
}
