// Package audio provides the sample-domain primitives for the vocalytic
// pipeline: analysis frames, block extraction, float PCM conversion,
// WAV encoding, and live level metering.
//
// Two sample representations flow through the pipeline:
//
//   - float32 samples in [-1, 1] — the working representation used by the
//     capture fan-out, the transcoder, and the level meters.
//   - unsigned 8-bit samples in [0, 255] — the compact quantised form carried
//     by [Frame] values sent to the backend for real-time analysis.
//
// This package lives under pkg/ because the wire envelope builders in
// internal/stream and the recorder in internal/record both consume it.
package audio

import "time"

// Frame is one fixed-size slice of quantised audio used for lightweight
// real-time analysis. Frames are immutable once produced and are consumed
// exactly once by the stream sampler.
type Frame struct {
	// Data holds unsigned 8-bit samples derived from float samples via
	// [QuantizeSample].
	Data []byte

	// SampleRate is the rate of the originating signal in Hz.
	SampleRate int

	// Duration is len(Data) sample periods at SampleRate.
	Duration time.Duration
}

// NewFrame quantises samples into a Frame tagged with sampleRate.
func NewFrame(samples []float32, sampleRate int) Frame {
	data := make([]byte, len(samples))
	for i, s := range samples {
		data[i] = QuantizeSample(s)
	}
	return Frame{
		Data:       data,
		SampleRate: sampleRate,
		Duration:   time.Duration(len(samples)) * time.Second / time.Duration(sampleRate),
	}
}

// QuantizeSample maps a float sample in [-1, 1] to an unsigned byte via the
// affine mapping round((s+1)*127.5), clamped to [0, 255].
func QuantizeSample(s float32) byte {
	v := (float64(s) + 1) * 127.5
	q := int(v + 0.5)
	if q < 0 {
		q = 0
	} else if q > 255 {
		q = 255
	}
	return byte(q)
}

// DequantizeSample is the inverse of [QuantizeSample] up to quantisation
// error (at most 1/127.5 per sample).
func DequantizeSample(b byte) float32 {
	return float32(float64(b)/127.5 - 1)
}
