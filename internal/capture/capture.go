// Package capture provides the live microphone input abstraction for
// vocalytic.
//
// A [Source] is obtained from [Open] and fans the raw signal out to any
// number of read-only subscribers (level meter, block extractor, recorder).
// Subscribers never contend: each receives its own channel of sample blocks,
// and a slow subscriber loses blocks rather than stalling the device
// callback.
//
// Acquisition failures are classified into the sentinel errors below so that
// callers can render actionable guidance instead of a generic message.
package capture

import (
	"errors"
	"time"
)

// Acquisition error taxonomy. [Open] wraps one of these in every failure.
var (
	// ErrPermissionDenied indicates the OS denied access to the input device.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrDeviceUnavailable indicates no usable input device exists.
	ErrDeviceUnavailable = errors.New("no microphone available")

	// ErrDeviceBusy indicates the input device is held by another process.
	ErrDeviceBusy = errors.New("microphone is busy")

	// ErrUnsupported indicates the requested constraints cannot be satisfied.
	ErrUnsupported = errors.New("capture constraints not supported")
)

// Constraints describes the requested capture parameters. Echo cancellation
// and noise suppression are always requested; whether the OS capture stack
// honours them is platform-dependent.
type Constraints struct {
	// SampleRate in Hz. Defaults to 16000, the analysis-path rate.
	SampleRate int

	// Channels requested from the device. Defaults to 1.
	Channels int

	// BlockFrames is the device callback period in frames. Defaults to 480
	// (30 ms at 16 kHz).
	BlockFrames int

	// EchoCancellation requests acoustic echo cancellation.
	EchoCancellation bool

	// NoiseSuppression requests noise suppression.
	NoiseSuppression bool

	// DeviceID selects a specific input device; empty means the default.
	DeviceID string
}

// DefaultConstraints returns the standard coaching-session capture request.
func DefaultConstraints() Constraints {
	return Constraints{
		SampleRate:       16000,
		Channels:         1,
		BlockFrames:      480,
		EchoCancellation: true,
		NoiseSuppression: true,
	}
}

func (c Constraints) withDefaults() Constraints {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.BlockFrames <= 0 {
		c.BlockFrames = 480
	}
	return c
}

// Block is one device callback worth of float samples in [-1, 1].
type Block struct {
	// Samples is mono (or interleaved, per Constraints.Channels) float PCM.
	Samples []float32

	// Timestamp marks when the block was captured.
	Timestamp time.Time
}

// Source is a live capture device shared read-only by multiple consumers.
//
// Implementations must be safe for concurrent use.
type Source interface {
	// Subscribe registers a new consumer and returns its block channel.
	// The channel is closed when the source closes. buffer sets the channel
	// capacity; blocks are dropped (not queued) when the consumer lags.
	Subscribe(buffer int) <-chan Block

	// Latest returns a copy of the most recent block, or nil before the
	// first callback. Used by the polling level meter fallback.
	Latest() []float32

	// SupportsTap reports whether the source delivers every block to
	// subscribers (true for real devices). When false, consumers needing a
	// level readout fall back to polling Latest.
	SupportsTap() bool

	// SampleRate returns the effective capture rate in Hz.
	SampleRate() int

	// Close stops the device and closes all subscriber channels. Idempotent
	// and safe to call multiple times.
	Close() error
}
