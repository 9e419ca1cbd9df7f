package stream

import (
	"math/rand"
	"time"
)

// Default reconnection parameters.
const (
	defaultMaxRetries = 5
	defaultBaseDelay  = 500 * time.Millisecond
	defaultMaxDelay   = 30 * time.Second
)

// RetryState tracks reconnection progress for one session. It is owned by the
// session's transition logic and exposed read-only; reconnect scheduling takes
// the value explicitly so the backoff sequence is testable without timers.
type RetryState struct {
	// Attempt counts unplanned closes since the last successful open.
	Attempt int

	// BaseDelay is the first backoff step.
	BaseDelay time.Duration

	// MaxRetries is the give-up ceiling.
	MaxRetries int
}

// Exhausted reports whether the session must stop reconnecting.
func (r RetryState) Exhausted() bool {
	return r.Attempt >= r.MaxRetries
}

// BackoffDelay returns the pre-jitter reconnect delay for the given attempt:
// min(base << attempt, max). The sequence is non-decreasing until it reaches
// the cap.
func BackoffDelay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = defaultBaseDelay
	}
	if max <= 0 {
		max = defaultMaxDelay
	}
	// Guard the shift against overflow for large attempt counts.
	if attempt > 30 {
		return max
	}
	d := base << uint(attempt)
	if d <= 0 || d > max {
		return max
	}
	return d
}

// jitter returns a uniform random duration in [0, base) to spread herds of
// reconnecting clients.
func jitter(rng *rand.Rand, base time.Duration) time.Duration {
	if base <= 0 || rng == nil {
		return 0
	}
	return time.Duration(rng.Int63n(int64(base)))
}
