package record

import "github.com/hfleisch/vocalytic/pkg/audio"

// pcmCodec is the uncompressed fallback: interleaved little-endian 16-bit
// PCM with no framing. It always probes successfully.
type pcmCodec struct{}

func (pcmCodec) ID() string { return "pcm16le" }

func (pcmCodec) Probe(sampleRate, channels int) bool {
	return sampleRate > 0 && channels > 0
}

func (pcmCodec) NewEncoder(int, int) (Encoder, error) {
	return pcmEncoder{}, nil
}

func (pcmCodec) NewDecoder(sampleRate, channels int) (Decoder, error) {
	return pcmDecoder{sampleRate: sampleRate, channels: channels}, nil
}

type pcmEncoder struct{}

func (pcmEncoder) Write(samples []float32) ([]byte, error) {
	return audio.EncodePCM16(samples), nil
}

type pcmDecoder struct {
	sampleRate int
	channels   int
}

func (d pcmDecoder) Decode(blob []byte) ([][]float32, int, error) {
	samples := audio.DecodePCM16(blob)
	return audio.Deinterleave(samples, d.channels), d.sampleRate, nil
}
