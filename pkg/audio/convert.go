package audio

// ResampleLinear resamples a single channel of float samples from srcRate to
// dstRate using linear interpolation. For output index i the source position
// is i * srcRate / dstRate; the two nearest source samples are blended by the
// fractional part. If the rates match (or are invalid) the input is returned
// unchanged.
func ResampleLinear(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]float32, dstLen)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range out {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := samples[srcIdx]
		s1 := s0
		if srcIdx+1 < len(samples) {
			s1 = samples[srcIdx+1]
		}
		out[i] = float32(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return out
}

// DownmixMono averages all channels per sample index into a single mono
// channel. Channels of differing lengths are averaged up to the shortest.
// A single input channel is returned unchanged.
func DownmixMono(channels [][]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	if len(channels) == 1 {
		return channels[0]
	}

	n := len(channels[0])
	for _, ch := range channels[1:] {
		if len(ch) < n {
			n = len(ch)
		}
	}

	out := make([]float32, n)
	for i := range out {
		var sum float64
		for _, ch := range channels {
			sum += float64(ch[i])
		}
		out[i] = float32(sum / float64(len(channels)))
	}
	return out
}

// EncodePCM16 converts float samples to little-endian 16-bit PCM. Each sample
// is clamped to [-1, 1] before scaling to the int16 range.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// DecodePCM16 converts little-endian 16-bit PCM bytes to float samples in
// [-1, 1). A trailing odd byte is ignored.
func DecodePCM16(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := range out {
		v := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(v) / 32768
	}
	return out
}

// Int16ToFloat32 converts int16 samples (e.g. Opus decoder output) to float
// samples in [-1, 1).
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, v := range samples {
		out[i] = float32(v) / 32768
	}
	return out
}

// Float32ToInt16 converts float samples to int16 with clamping. Used to feed
// the Opus encoder from the float capture path.
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = int16(s * 32767)
	}
	return out
}

// Deinterleave splits interleaved multi-channel samples into per-channel
// buffers. len(samples) must be a multiple of channels; a ragged tail is
// dropped.
func Deinterleave(samples []float32, channels int) [][]float32 {
	if channels <= 1 {
		return [][]float32{samples}
	}
	frames := len(samples) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := range frames {
		for c := range out {
			out[c][i] = samples[i*channels+c]
		}
	}
	return out
}
