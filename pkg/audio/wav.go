package audio

import "encoding/binary"

// CanonicalRate is the sample rate of the canonical backend artifact.
const CanonicalRate = 16000

// wavHeaderSize is the fixed size of the RIFF/WAVE/fmt/data header.
const wavHeaderSize = 44

// EncodeWAV encodes mono float samples as a complete WAV buffer: a 44-byte
// header followed by little-endian 16-bit PCM. Samples are clamped to [-1, 1].
func EncodeWAV(samples []float32, sampleRate int) []byte {
	return WrapWAV(EncodePCM16(samples), sampleRate)
}

// WrapWAV prepends a mono 16-bit PCM WAV header to raw little-endian PCM
// bytes. The header satisfies ChunkSize = 36 + len(pcm) and
// Subchunk2Size = len(pcm).
func WrapWAV(pcm []byte, sampleRate int) []byte {
	dataLen := len(pcm)
	buf := make([]byte, wavHeaderSize+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                  // fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)                   // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1)                   // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))  // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate)*2) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                   // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                  // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	copy(buf[wavHeaderSize:], pcm)
	return buf
}
