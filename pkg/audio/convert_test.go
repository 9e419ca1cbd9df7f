package audio_test

import (
	"math"
	"testing"

	"github.com/hfleisch/vocalytic/pkg/audio"
)

func TestResampleLinear_Ratio(t *testing.T) {
	// 48 kHz → 16 kHz must yield round(N/3) samples (±1 for rounding).
	for _, n := range []int{3, 48, 480, 4801, 48000} {
		in := make([]float32, n)
		out := audio.ResampleLinear(in, 48000, 16000)
		want := n / 3
		if len(out) < want-1 || len(out) > want+1 {
			t.Errorf("n=%d: got %d resampled samples, want %d±1", n, len(out), want)
		}
	}
}

func TestResampleLinear_SameRate(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := audio.ResampleLinear(in, 16000, 16000)
	if &out[0] != &in[0] {
		t.Error("expected input returned unchanged for matching rates")
	}
}

func TestResampleLinear_Interpolation(t *testing.T) {
	// Upsampling a ramp by 2x: odd output indices must sit halfway between
	// neighbouring input samples.
	in := []float32{0, 1, 2, 3}
	out := audio.ResampleLinear(in, 8000, 16000)
	if len(out) != 8 {
		t.Fatalf("got %d samples, want 8", len(out))
	}
	want := []float32{0, 0.5, 1, 1.5, 2, 2.5, 3, 3}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: got %f, want %f", i, out[i], want[i])
		}
	}
}

func TestDownmixMono_CancellingChannels(t *testing.T) {
	// Channel B ≡ -A must average to silence.
	a := []float32{0.5, -0.25, 1, -1}
	b := make([]float32, len(a))
	for i := range a {
		b[i] = -a[i]
	}
	mono := audio.DownmixMono([][]float32{a, b})
	if len(mono) != len(a) {
		t.Fatalf("got %d samples, want %d", len(mono), len(a))
	}
	for i, s := range mono {
		if s != 0 {
			t.Errorf("sample %d: got %f, want 0", i, s)
		}
	}
}

func TestDownmixMono_SingleChannel(t *testing.T) {
	a := []float32{0.1, 0.2}
	mono := audio.DownmixMono([][]float32{a})
	if &mono[0] != &a[0] {
		t.Error("expected single channel returned unchanged")
	}
}

func TestEncodePCM16_Clamping(t *testing.T) {
	pcm := audio.EncodePCM16([]float32{2, -2, 1, -1})
	got := audio.DecodePCM16(pcm)
	if got[0] != got[2] {
		t.Errorf("over-range sample not clamped to full scale: %f vs %f", got[0], got[2])
	}
	if got[1] != got[3] {
		t.Errorf("under-range sample not clamped to full scale: %f vs %f", got[1], got[3])
	}
}

func TestEncodeDecodePCM16_RoundTrip(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.9, -0.9}
	got := audio.DecodePCM16(audio.EncodePCM16(in))
	if len(got) != len(in) {
		t.Fatalf("got %d samples, want %d", len(got), len(in))
	}
	for i := range in {
		if math.Abs(float64(got[i]-in[i])) > 1.0/32767 {
			t.Errorf("sample %d: got %f, want %f", i, got[i], in[i])
		}
	}
}

func TestDeinterleave(t *testing.T) {
	chans := audio.Deinterleave([]float32{1, 10, 2, 20, 3, 30}, 2)
	if len(chans) != 2 {
		t.Fatalf("got %d channels, want 2", len(chans))
	}
	wantL := []float32{1, 2, 3}
	wantR := []float32{10, 20, 30}
	for i := range wantL {
		if chans[0][i] != wantL[i] || chans[1][i] != wantR[i] {
			t.Errorf("frame %d: got (%f, %f), want (%f, %f)",
				i, chans[0][i], chans[1][i], wantL[i], wantR[i])
		}
	}
}
