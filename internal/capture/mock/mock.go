// Package mock provides an in-memory implementation of [capture.Source] for
// unit tests.
//
// The mock records call counts and lets the test feed blocks to subscribers
// directly:
//
//	src := mock.NewSource(16000)
//	ch := src.Subscribe(8)
//	src.Push([]float32{0.1, 0.2})
//	src.Close()
package mock

import (
	"sync"
	"time"

	"github.com/hfleisch/vocalytic/internal/capture"
)

// Source is a mock implementation of [capture.Source]. Safe for concurrent use.
type Source struct {
	mu sync.Mutex

	// SupportsTapResult is returned by SupportsTap. Defaults to true.
	SupportsTapResult bool

	// CloseError is returned by Close.
	CloseError error

	// CallCountSubscribe records how many times Subscribe was called.
	CallCountSubscribe int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	sampleRate int
	subs       []chan capture.Block
	latest     []float32
	closed     bool
}

// NewSource creates a mock source reporting the given sample rate.
func NewSource(sampleRate int) *Source {
	return &Source{
		SupportsTapResult: true,
		sampleRate:        sampleRate,
	}
}

// Push delivers samples to every subscriber and updates Latest. Blocks are
// dropped for subscribers with full channels, matching the real source.
func (s *Source) Push(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.latest = samples
	block := capture.Block{Samples: samples, Timestamp: time.Now()}
	for _, ch := range s.subs {
		select {
		case ch <- block:
		default:
		}
	}
}

// Subscribe implements [capture.Source].
func (s *Source) Subscribe(buffer int) <-chan capture.Block {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan capture.Block, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountSubscribe++
	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

// Latest implements [capture.Source].
func (s *Source) Latest() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// SupportsTap implements [capture.Source].
func (s *Source) SupportsTap() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SupportsTapResult
}

// SampleRate implements [capture.Source].
func (s *Source) SampleRate() int { return s.sampleRate }

// Close implements [capture.Source]. Idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	if !s.closed {
		s.closed = true
		for _, ch := range s.subs {
			close(ch)
		}
		s.subs = nil
	}
	return s.CloseError
}
