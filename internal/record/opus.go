package record

import (
	"encoding/binary"
	"fmt"

	"layeh.com/gopus"

	"github.com/hfleisch/vocalytic/pkg/audio"
)

// Opus operates on fixed 20 ms frames; packets inside a recording are framed
// with a big-endian uint16 length prefix since there is no outer container.
const (
	opusFrameMs      = 20
	opusMaxPacketLen = 4000
)

type opusCodec struct{}

func (opusCodec) ID() string { return "opus" }

// Probe verifies that libopus accepts the capture parameters. Opus supports
// 8/12/16/24/48 kHz at 1-2 channels.
func (opusCodec) Probe(sampleRate, channels int) bool {
	_, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	return err == nil
}

func (opusCodec) NewEncoder(sampleRate, channels int) (Encoder, error) {
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("record: create opus encoder: %w", err)
	}
	return &opusEncoder{
		enc:       enc,
		frameSize: sampleRate * opusFrameMs / 1000,
		channels:  channels,
	}, nil
}

func (opusCodec) NewDecoder(sampleRate, channels int) (Decoder, error) {
	dec, err := gopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("record: create opus decoder: %w", err)
	}
	return &opusDecoder{
		dec:        dec,
		frameSize:  sampleRate * opusFrameMs / 1000,
		channels:   channels,
		sampleRate: sampleRate,
	}, nil
}

// opusEncoder buffers samples until a full 20 ms frame is available, then
// emits one length-prefixed packet per frame.
type opusEncoder struct {
	enc       *gopus.Encoder
	frameSize int
	channels  int
	buf       []int16
}

func (e *opusEncoder) Write(samples []float32) ([]byte, error) {
	e.buf = append(e.buf, audio.Float32ToInt16(samples)...)

	perFrame := e.frameSize * e.channels
	var out []byte
	for len(e.buf) >= perFrame {
		pkt, err := e.enc.Encode(e.buf[:perFrame], e.frameSize, opusMaxPacketLen)
		if err != nil {
			return nil, fmt.Errorf("record: opus encode: %w", err)
		}
		e.buf = e.buf[perFrame:]

		var prefix [2]byte
		binary.BigEndian.PutUint16(prefix[:], uint16(len(pkt)))
		out = append(out, prefix[:]...)
		out = append(out, pkt...)
	}
	return out, nil
}

// opusDecoder walks the length-prefixed packet stream and decodes each packet
// through a single stateful decoder, preserving inter-frame prediction state.
type opusDecoder struct {
	dec        *gopus.Decoder
	frameSize  int
	channels   int
	sampleRate int
}

func (d *opusDecoder) Decode(blob []byte) ([][]float32, int, error) {
	var pcm []int16
	for off := 0; off < len(blob); {
		if off+2 > len(blob) {
			return nil, 0, fmt.Errorf("record: truncated opus packet header at %d", off)
		}
		n := int(binary.BigEndian.Uint16(blob[off : off+2]))
		off += 2
		if off+n > len(blob) {
			return nil, 0, fmt.Errorf("record: truncated opus packet at %d", off)
		}
		frame, err := d.dec.Decode(blob[off:off+n], d.frameSize, false)
		if err != nil {
			return nil, 0, fmt.Errorf("record: opus decode: %w", err)
		}
		pcm = append(pcm, frame...)
		off += n
	}

	channels := audio.Deinterleave(audio.Int16ToFloat32(pcm), d.channels)
	return channels, d.sampleRate, nil
}
