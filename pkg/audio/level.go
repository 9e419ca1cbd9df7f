package audio

import (
	"math"
	"sync/atomic"
	"time"
)

// LevelMeter reports the instantaneous input level of a live signal as a
// scalar in [0, 1]. The value is informational only: it never gates
// transmission or recording.
type LevelMeter interface {
	// Level returns the most recently computed normalised RMS level.
	Level() float64

	// Stop halts any periodic work. Idempotent.
	Stop()
}

// levelValue is an atomically updated float64.
type levelValue struct {
	bits atomic.Uint64
}

func (v *levelValue) store(f float64) { v.bits.Store(math.Float64bits(f)) }
func (v *levelValue) load() float64   { return math.Float64frombits(v.bits.Load()) }

// rms computes the root-mean-square of samples, clamped to [0, 1].
func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	r := math.Sqrt(sum / float64(len(samples)))
	return math.Min(r, 1)
}

// ProcessorMeter is the callback-driven level meter: the capture path feeds
// every sample block to [ProcessorMeter.Process] and the level tracks the
// most recent block exactly. Preferred when the capture source supports
// per-block taps.
type ProcessorMeter struct {
	level levelValue
}

// NewProcessorMeter creates a meter with level 0.
func NewProcessorMeter() *ProcessorMeter {
	return &ProcessorMeter{}
}

// Process updates the level from one block of float samples.
func (m *ProcessorMeter) Process(samples []float32) {
	m.level.store(rms(samples))
}

// Level implements [LevelMeter].
func (m *ProcessorMeter) Level() float64 { return m.level.load() }

// Stop implements [LevelMeter]. The ProcessorMeter has no periodic work, so
// this only zeroes the level.
func (m *ProcessorMeter) Stop() { m.level.store(0) }

// PollingMeter is the lower-fidelity fallback meter: it samples the latest
// capture block on a fixed tick instead of seeing every block. Used when the
// capture source cannot deliver per-block taps.
type PollingMeter struct {
	level levelValue
	done  chan struct{}
	once  func()
}

// NewPollingMeter starts a meter that calls fetch every interval and updates
// the level from the returned block. fetch may return nil when no data is
// available yet. Call Stop to halt the polling goroutine; the level stops
// updating within one tick.
func NewPollingMeter(interval time.Duration, fetch func() []float32) *PollingMeter {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	m := &PollingMeter{done: make(chan struct{})}
	var stopped atomic.Bool
	m.once = func() {
		if stopped.CompareAndSwap(false, true) {
			close(m.done)
		}
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.done:
				m.level.store(0)
				return
			case <-ticker.C:
				if block := fetch(); block != nil {
					m.level.store(rms(block))
				}
			}
		}
	}()
	return m
}

// Level implements [LevelMeter].
func (m *PollingMeter) Level() float64 { return m.level.load() }

// Stop implements [LevelMeter]. Safe to call multiple times.
func (m *PollingMeter) Stop() { m.once() }
