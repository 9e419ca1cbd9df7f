package stream

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hfleisch/vocalytic/pkg/audio"
)

// DefaultAdmissionProbability is the default fraction of offered frames that
// are forwarded. The value is a tunable trade between live-feedback
// completeness and transport headroom; the final recording always carries the
// complete signal.
const DefaultAdmissionProbability = 0.2

// Sender is the slice of [Session] the sampler needs.
type Sender interface {
	SendJSON(v any) bool
	State() State
}

// Sampler is the sampling controller: each offered frame is forwarded to the
// session independently with the configured probability, and only while the
// session is open. Frames are never queued; a drop is final.
//
// Safe for concurrent use, though frames normally arrive from the single
// capture fan-out goroutine.
type Sampler struct {
	session Sender
	p       float64
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand

	seq      atomic.Uint64
	offered  atomic.Uint64
	admitted atomic.Uint64
}

// NewSampler creates a sampler forwarding to session with admission
// probability p (clamped to [0, 1]; <= 0 selects the default). rng may be nil
// for a time-seeded source; tests inject a seeded one for determinism.
func NewSampler(session Sender, p float64, rng *rand.Rand) *Sampler {
	if p <= 0 {
		p = DefaultAdmissionProbability
	}
	if p > 1 {
		p = 1
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Sampler{
		session: session,
		p:       p,
		rng:     rng,
		now:     time.Now,
	}
}

// Offer presents one frame for transmission. It returns true when the frame
// was admitted and handed to the session. Frames offered while the session is
// not open are always dropped.
func (s *Sampler) Offer(frame audio.Frame) bool {
	s.offered.Add(1)

	if s.session.State() != StateOpen {
		return false
	}

	s.mu.Lock()
	admit := s.rng.Float64() < s.p
	s.mu.Unlock()
	if !admit {
		return false
	}

	chunk := NewAudioChunk(frame, s.seq.Add(1), s.now())
	if !s.session.SendJSON(chunk) {
		// The session closed between the state check and the send.
		return false
	}
	s.admitted.Add(1)
	return true
}

// Stats returns the lifetime offered and admitted frame counts.
func (s *Sampler) Stats() (offered, admitted uint64) {
	return s.offered.Load(), s.admitted.Load()
}
