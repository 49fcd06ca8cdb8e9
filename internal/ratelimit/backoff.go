package ratelimit

import (
	"math"
	"math/rand"
	"time"
)

const (
	// DefaultBaseBackoff is the initial retry wait when the upstream throttles.
	DefaultBaseBackoff = 5 * time.Second

	// DefaultMaxBackoff caps the exponential growth of retry waits.
	DefaultMaxBackoff = time.Minute

	// minBackoff floors every computed wait.
	minBackoff = 100 * time.Millisecond
)

// BackoffPolicy computes jittered exponential retry waits. The wait for
// retry r is min(Max, Base*2^r) perturbed by ±10% so that concurrent
// callers do not retry in lockstep. The zero value uses the defaults and a
// shared pseudo-random jitter source.
type BackoffPolicy struct {
	Base time.Duration
	Max  time.Duration

	// Uniform returns values in [-1, 1). Injected for reproducible tests;
	// nil falls back to math/rand.
	Uniform func() float64
}

// Wait returns the backoff duration for the given retry attempt, counted
// from zero. The result is always at least minBackoff.
func (p BackoffPolicy) Wait(retryCount int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = DefaultBaseBackoff
	}
	max := p.Max
	if max <= 0 {
		max = DefaultMaxBackoff
	}
	if retryCount < 0 {
		retryCount = 0
	}

	wait := float64(base) * math.Pow(2, float64(retryCount))
	if wait > float64(max) {
		wait = float64(max)
	}

	wait += wait * 0.1 * p.uniform()
	if wait < float64(minBackoff) {
		wait = float64(minBackoff)
	}

	return time.Duration(wait)
}

func (p BackoffPolicy) uniform() float64 {
	if p.Uniform != nil {
		return p.Uniform()
	}
	return rand.Float64()*2 - 1
}
