package stream

import (
	"math/rand"
	"testing"
	"time"
)

func TestBackoffDelay_Sequence(t *testing.T) {
	base := 500 * time.Millisecond
	cap := 30 * time.Second

	want := []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second, // capped
		30 * time.Second,
	}
	for attempt, w := range want {
		if got := BackoffDelay(attempt, base, cap); got != w {
			t.Errorf("attempt %d: delay %v, want %v", attempt, got, w)
		}
	}
}

func TestBackoffDelay_NonDecreasing(t *testing.T) {
	base := 500 * time.Millisecond
	cap := 30 * time.Second
	prev := time.Duration(0)
	for attempt := range 64 {
		d := BackoffDelay(attempt, base, cap)
		if d < prev {
			t.Fatalf("attempt %d: delay %v decreased from %v", attempt, d, prev)
		}
		if d > cap {
			t.Fatalf("attempt %d: delay %v exceeds cap %v", attempt, d, cap)
		}
		prev = d
	}
	if prev != cap {
		t.Errorf("sequence never reached the cap: ended at %v", prev)
	}
}

func TestRetryState_Exhausted(t *testing.T) {
	r := RetryState{Attempt: 2, MaxRetries: 3}
	if r.Exhausted() {
		t.Error("exhausted at attempt 2 of 3")
	}
	r.Attempt = 3
	if !r.Exhausted() {
		t.Error("not exhausted at attempt 3 of 3")
	}
}

func TestJitter_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := 500 * time.Millisecond
	for range 1000 {
		j := jitter(rng, base)
		if j < 0 || j >= base {
			t.Fatalf("jitter %v outside [0, %v)", j, base)
		}
	}
	if jitter(nil, base) != 0 {
		t.Error("nil rng should yield zero jitter")
	}
}
