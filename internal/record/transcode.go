package record

import (
	"fmt"

	"github.com/hfleisch/vocalytic/pkg/audio"
)

// Transcode converts a finished recording into the canonical artifact: a WAV
// buffer holding 16 kHz mono little-endian 16-bit PCM.
//
// Pipeline order matters: decode to per-channel float buffers at the native
// rate, resample each channel to 16 kHz, down-mix to mono by averaging, then
// clamp and encode. On any decode failure the caller should upload the
// original compressed blob instead of failing the recording.
func Transcode(rec Recording) ([]byte, error) {
	codec := codecByID(rec.Codec)
	if codec == nil {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrDecode, rec.Codec)
	}
	dec, err := codec.NewDecoder(rec.SampleRate, rec.Channels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	channels, nativeRate, err := dec.Decode(rec.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("%w: decoder produced no channels", ErrDecode)
	}

	if nativeRate != audio.CanonicalRate {
		for i := range channels {
			channels[i] = audio.ResampleLinear(channels[i], nativeRate, audio.CanonicalRate)
		}
	}

	mono := audio.DownmixMono(channels)
	return audio.EncodeWAV(mono, audio.CanonicalRate), nil
}
