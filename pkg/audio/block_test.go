package audio_test

import (
	"testing"
	"time"

	"github.com/hfleisch/vocalytic/pkg/audio"
)

func TestBlockExtractor_EmitsFullBlocks(t *testing.T) {
	var frames []audio.Frame
	ex := audio.NewBlockExtractor(8, 16000, func(f audio.Frame) {
		frames = append(frames, f)
	})

	ex.Push(make([]float32, 20))

	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	for i, f := range frames {
		if len(f.Data) != 8 {
			t.Errorf("frame %d: %d samples, want 8", i, len(f.Data))
		}
		if f.SampleRate != 16000 {
			t.Errorf("frame %d: sample rate %d, want 16000", i, f.SampleRate)
		}
	}
	if ex.Pending() != 4 {
		t.Errorf("pending tail %d, want 4", ex.Pending())
	}
}

func TestBlockExtractor_TailCarriesOver(t *testing.T) {
	var frames []audio.Frame
	ex := audio.NewBlockExtractor(4, 16000, func(f audio.Frame) {
		frames = append(frames, f)
	})

	// 3 + 3 samples: the second push completes the first block with the
	// carried tail; nothing is dropped, nothing overlaps.
	ex.Push([]float32{0.1, 0.2, 0.3})
	if len(frames) != 0 {
		t.Fatalf("premature emission after partial block")
	}
	ex.Push([]float32{0.4, 0.5, 0.6})

	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	want := []float32{0.1, 0.2, 0.3, 0.4}
	for i, b := range frames[0].Data {
		got := audio.DequantizeSample(b)
		if diff := got - want[i]; diff > 0.01 || diff < -0.01 {
			t.Errorf("sample %d: got %f, want ~%f", i, got, want[i])
		}
	}
	if ex.Pending() != 2 {
		t.Errorf("pending tail %d, want 2", ex.Pending())
	}
}

func TestBlockExtractor_FrameDuration(t *testing.T) {
	ex := audio.NewBlockExtractor(4096, 16000, func(f audio.Frame) {
		want := time.Duration(4096) * time.Second / 16000
		if f.Duration != want {
			t.Errorf("duration %v, want %v", f.Duration, want)
		}
	})
	ex.Push(make([]float32, 4096))
}

func TestQuantizeSample_Mapping(t *testing.T) {
	cases := []struct {
		in   float32
		want byte
	}{
		{-1, 0},
		{0, 128}, // round(127.5) rounds up
		{1, 255},
		{-2, 0},  // clamped
		{2, 255}, // clamped
	}
	for _, c := range cases {
		if got := audio.QuantizeSample(c.in); got != c.want {
			t.Errorf("QuantizeSample(%f) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestQuantize_RoundTripError(t *testing.T) {
	for _, s := range []float32{-1, -0.5, 0, 0.33, 0.5, 1} {
		got := audio.DequantizeSample(audio.QuantizeSample(s))
		if diff := float64(got - s); diff > 1/127.5 || diff < -1/127.5 {
			t.Errorf("round trip of %f drifted to %f", s, got)
		}
	}
}
