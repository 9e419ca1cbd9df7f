package record

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default recording parameters.
const (
	defaultSegmentInterval = time.Second
	defaultMinBytes        = 1024
)

// Segment is one time-sliced chunk of encoder output. Segments are strictly
// ordered by Index; concatenation in index order reproduces the encoder's
// byte stream.
type Segment struct {
	Index    int
	Data     []byte
	Produced time.Time
}

// Recording is the final accumulated blob for one recording session, tagged
// with the negotiated codec and the capture parameters needed to decode it.
type Recording struct {
	Codec      string
	SampleRate int
	Channels   int
	Data       []byte

	// Suspicious is set when the recording is below the minimum expected
	// size. It is a soft warning; the pipeline proceeds regardless.
	Suspicious bool
}

// RecorderConfig configures a [Recorder].
type RecorderConfig struct {
	// Codecs is the ordered codec preference list. Defaults to
	// ["opus", "pcm16le"].
	Codecs []string

	// SegmentInterval is the segment cut cadence. Defaults to 1 s.
	SegmentInterval time.Duration

	// MinBytes is the threshold below which a finished recording is flagged
	// as suspicious. Defaults to 1024.
	MinBytes int

	// SampleRate and Channels describe the capture signal.
	SampleRate int
	Channels   int
}

// Recorder encodes the live capture signal into a compressed container in
// time-sliced segments, accumulating them in memory until Stop.
//
// Push is safe to call from the capture fan-out goroutine while other
// goroutines inspect Segments.
type Recorder struct {
	codec    Codec
	enc      Encoder
	interval time.Duration
	minBytes int
	rate     int
	channels int

	mu       sync.Mutex
	current  []byte
	segments []Segment
	lastCut  time.Time
	stopped  bool
}

// NewRecorder negotiates a codec from cfg.Codecs and prepares an encoder.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if len(cfg.Codecs) == 0 {
		cfg.Codecs = []string{"opus", "pcm16le"}
	}
	if cfg.SegmentInterval <= 0 {
		cfg.SegmentInterval = defaultSegmentInterval
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = defaultMinBytes
	}

	codec := Negotiate(cfg.Codecs, cfg.SampleRate, cfg.Channels)
	enc, err := codec.NewEncoder(cfg.SampleRate, cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}

	slog.Info("recorder ready",
		"codec", codec.ID(),
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"segment_interval", cfg.SegmentInterval,
	)

	return &Recorder{
		codec:    codec,
		enc:      enc,
		interval: cfg.SegmentInterval,
		minBytes: cfg.MinBytes,
		rate:     cfg.SampleRate,
		channels: cfg.Channels,
		lastCut:  time.Now(),
	}, nil
}

// CodecID returns the negotiated codec identifier.
func (r *Recorder) CodecID() string { return r.codec.ID() }

// Push encodes one block of float samples and cuts a segment when the
// configured interval has elapsed. Calls after Stop are ignored.
func (r *Recorder) Push(samples []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil
	}

	out, err := r.enc.Write(samples)
	if err != nil {
		return err
	}
	r.current = append(r.current, out...)

	if time.Since(r.lastCut) >= r.interval && len(r.current) > 0 {
		r.cutLocked()
	}
	return nil
}

// cutLocked closes the in-progress segment. Caller holds r.mu.
func (r *Recorder) cutLocked() {
	r.segments = append(r.segments, Segment{
		Index:    len(r.segments),
		Data:     r.current,
		Produced: time.Now(),
	})
	r.current = nil
	r.lastCut = time.Now()
}

// SegmentCount returns the number of completed segments so far.
func (r *Recorder) SegmentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.segments)
}

// Stop cuts the final segment and concatenates all segments in production
// order into one [Recording]. An empty result is an error; a result below
// the minimum size carries the Suspicious flag. Stop is idempotent only in
// the sense that later Push calls are ignored; call it once.
func (r *Recorder) Stop() (Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if len(r.current) > 0 {
		r.cutLocked()
	}

	var total int
	for _, seg := range r.segments {
		total += len(seg.Data)
	}
	if total == 0 {
		return Recording{}, ErrEmptyRecording
	}

	data := make([]byte, 0, total)
	for _, seg := range r.segments {
		data = append(data, seg.Data...)
	}

	rec := Recording{
		Codec:      r.codec.ID(),
		SampleRate: r.rate,
		Channels:   r.channels,
		Data:       data,
	}
	if total < r.minBytes {
		rec.Suspicious = true
		slog.Warn("recording is suspiciously small",
			"bytes", total,
			"min_bytes", r.minBytes,
			"codec", rec.Codec,
		)
	}
	return rec, nil
}
