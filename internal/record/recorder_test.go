package record

import (
	"errors"
	"testing"
	"time"

	"github.com/hfleisch/vocalytic/pkg/audio"
)

func pcmRecorder(t *testing.T, interval time.Duration, minBytes int) *Recorder {
	t.Helper()
	r, err := NewRecorder(RecorderConfig{
		Codecs:          []string{"pcm16le"},
		SegmentInterval: interval,
		MinBytes:        minBytes,
		SampleRate:      16000,
		Channels:        1,
	})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	return r
}

func TestNegotiate(t *testing.T) {
	t.Run("preferred codec wins", func(t *testing.T) {
		c := Negotiate([]string{"pcm16le", "opus"}, 16000, 1)
		if c.ID() != "pcm16le" {
			t.Errorf("negotiated %s, want pcm16le", c.ID())
		}
	})

	t.Run("unknown names fall through to default", func(t *testing.T) {
		c := Negotiate([]string{"vorbis", "flac"}, 16000, 1)
		if c.ID() != DefaultCodecID {
			t.Errorf("negotiated %s, want default %s", c.ID(), DefaultCodecID)
		}
	})
}

func TestRecorder_SegmentsPreserveOrder(t *testing.T) {
	r := pcmRecorder(t, time.Nanosecond, 1)

	blocks := [][]float32{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}}
	for _, b := range blocks {
		if err := r.Push(b); err != nil {
			t.Fatalf("push: %v", err)
		}
		// The nanosecond interval cuts a segment per push.
	}
	if got := r.SegmentCount(); got != 3 {
		t.Fatalf("segment count %d, want 3", got)
	}

	rec, err := r.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if rec.Codec != "pcm16le" {
		t.Errorf("codec %q, want pcm16le", rec.Codec)
	}

	// Concatenation must reproduce the samples in production order.
	var want []byte
	for _, b := range blocks {
		want = append(want, audio.EncodePCM16(b)...)
	}
	if len(rec.Data) != len(want) {
		t.Fatalf("blob length %d, want %d", len(rec.Data), len(want))
	}
	for i := range want {
		if rec.Data[i] != want[i] {
			t.Fatalf("blob byte %d differs", i)
		}
	}
}

func TestRecorder_EmptyRecording(t *testing.T) {
	r := pcmRecorder(t, time.Second, 1)
	_, err := r.Stop()
	if !errors.Is(err, ErrEmptyRecording) {
		t.Fatalf("got %v, want ErrEmptyRecording", err)
	}
}

func TestRecorder_SuspiciouslySmall(t *testing.T) {
	r := pcmRecorder(t, time.Second, 1<<20)
	if err := r.Push([]float32{0.1, 0.2, 0.3}); err != nil {
		t.Fatal(err)
	}
	rec, err := r.Stop()
	if err != nil {
		t.Fatalf("small recording must not fail: %v", err)
	}
	if !rec.Suspicious {
		t.Error("recording below min bytes not flagged")
	}
}

func TestRecorder_PushAfterStopIgnored(t *testing.T) {
	r := pcmRecorder(t, time.Second, 1)
	if err := r.Push([]float32{0.1}); err != nil {
		t.Fatal(err)
	}
	rec, err := r.Stop()
	if err != nil {
		t.Fatal(err)
	}
	before := len(rec.Data)

	if err := r.Push(make([]float32, 1024)); err != nil {
		t.Fatalf("push after stop: %v", err)
	}
	if got := r.SegmentCount(); got != 1 {
		t.Errorf("segment count grew to %d after stop", got)
	}
	if before == 0 {
		t.Error("expected non-empty recording")
	}
}
