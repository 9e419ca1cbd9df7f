// Package record implements the compressed-container side of the pipeline:
// codec negotiation, time-sliced segment recording, and transcoding of the
// accumulated recording into the canonical 16 kHz mono PCM WAV artifact.
package record

import (
	"errors"
	"log/slog"
)

var (
	// ErrEmptyRecording is returned by Stop when no audio was captured. An
	// empty final blob is never passed on silently.
	ErrEmptyRecording = errors.New("recording produced no data")

	// ErrDecode is returned by Transcode when the compressed recording cannot
	// be decoded. Callers fall back to uploading the raw blob.
	ErrDecode = errors.New("could not decode recording")
)

// Encoder turns float capture samples into compressed segment bytes. An
// encoder may buffer internally (e.g. to fill fixed codec frames) and return
// output incrementally.
type Encoder interface {
	// Write consumes samples and returns any newly encoded bytes, possibly
	// empty.
	Write(samples []float32) ([]byte, error)
}

// Decoder turns a complete concatenated recording back into per-channel
// float sample buffers at the recording's native rate.
type Decoder interface {
	Decode(blob []byte) (channels [][]float32, sampleRate int, err error)
}

// Codec pairs an encoder and decoder under a stable identifier.
type Codec interface {
	// ID is the codec identifier recorded on segments and recordings.
	ID() string

	// Probe reports whether the codec can operate at the given capture
	// parameters. Used during negotiation.
	Probe(sampleRate, channels int) bool

	NewEncoder(sampleRate, channels int) (Encoder, error)
	NewDecoder(sampleRate, channels int) (Decoder, error)
}

// DefaultCodecID is the last-resort codec used when nothing in the preference
// list probes successfully. Raw PCM always works and every consumer can
// decode it.
const DefaultCodecID = "pcm16le"

// builtin codecs by identifier.
func codecByID(id string) Codec {
	switch id {
	case "opus":
		return opusCodec{}
	case "pcm16le":
		return pcmCodec{}
	default:
		return nil
	}
}

// Negotiate selects the first codec in prefs whose capability probe succeeds
// at the given capture parameters. Unknown names are skipped. When the whole
// list fails, the default codec is returned with a compatibility warning.
func Negotiate(prefs []string, sampleRate, channels int) Codec {
	for _, name := range prefs {
		c := codecByID(name)
		if c == nil {
			slog.Warn("record: unknown codec in preference list", "codec", name)
			continue
		}
		if c.Probe(sampleRate, channels) {
			return c
		}
		slog.Debug("record: codec probe failed", "codec", name,
			"sample_rate", sampleRate, "channels", channels)
	}
	slog.Warn("record: no preferred codec available, using default",
		"default", DefaultCodecID)
	return codecByID(DefaultCodecID)
}
