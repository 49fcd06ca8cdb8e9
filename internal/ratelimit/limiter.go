package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// window is the trailing interval over which request counts are evaluated.
	window = time.Minute

	// minWait is the threshold below which a computed wait is treated as a
	// no-op and the request is admitted immediately.
	minWait = 100 * time.Millisecond
)

// Limiter admits outbound requests under a sliding-window policy with two
// independently configurable ceilings: a sustained per-minute cap and an
// instantaneous burst cap. It is safe for concurrent use; a caller waiting
// out the window does not block other callers.
type Limiter struct {
	requestsPerMinute int
	burst             int
	clock             Clock

	mu      sync.Mutex
	history []time.Time
}

// NewLimiter creates a limiter. A nil clock defaults to the system clock.
func NewLimiter(requestsPerMinute, burst int, clock Clock) (*Limiter, error) {
	if requestsPerMinute <= 0 {
		return nil, fmt.Errorf("requests per minute must be positive, got %d", requestsPerMinute)
	}
	if burst <= 0 {
		return nil, fmt.Errorf("burst must be positive, got %d", burst)
	}
	if clock == nil {
		clock = SystemClock()
	}

	return &Limiter{
		requestsPerMinute: requestsPerMinute,
		burst:             burst,
		clock:             clock,
	}, nil
}

// Admit blocks until a request may be issued and returns how long the caller
// waited. The prune/check/append sequence runs atomically under the limiter
// mutex; the mutex is released while sleeping and the window is re-checked
// afterwards, so two waiters can never jointly exceed the ceilings.
func (l *Limiter) Admit(ctx context.Context) (time.Duration, error) {
	var waited time.Duration

	for {
		if err := ctx.Err(); err != nil {
			return waited, err
		}

		l.mu.Lock()
		now := l.clock.Now()
		l.prune(now)

		if len(l.history) < l.burst || len(l.history) < l.requestsPerMinute {
			l.history = append(l.history, now)
			l.mu.Unlock()
			return waited, nil
		}

		wait := window - now.Sub(l.history[0])
		if wait < minWait {
			// The oldest record is about to age out; admitting now is
			// indistinguishable from sleeping a few milliseconds first.
			l.history = append(l.history, now)
			l.mu.Unlock()
			return waited, nil
		}
		l.mu.Unlock()

		if err := l.clock.Sleep(ctx, wait); err != nil {
			return waited, err
		}
		waited += wait
	}
}

// prune drops records that have aged out of the trailing window.
// Callers must hold l.mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := 0
	for cutoff < len(l.history) && now.Sub(l.history[cutoff]) >= window {
		cutoff++
	}
	if cutoff > 0 {
		l.history = append(l.history[:0], l.history[cutoff:]...)
	}
}
