package audio

// DefaultBlockSize is the number of samples accumulated per analysis frame.
const DefaultBlockSize = 4096

// BlockExtractor slices a continuous float sample stream into fixed-size
// blocks and emits each full block as a quantised [Frame]. Partial tails are
// carried into the next block: no overlap, no drop.
//
// Not safe for concurrent use; feed it from a single goroutine.
type BlockExtractor struct {
	size       int
	sampleRate int
	emit       func(Frame)

	buf []float32
	pos int
}

// NewBlockExtractor creates an extractor producing blocks of size samples at
// sampleRate. emit is invoked synchronously for each completed block. size
// defaults to [DefaultBlockSize] when <= 0.
func NewBlockExtractor(size, sampleRate int, emit func(Frame)) *BlockExtractor {
	if size <= 0 {
		size = DefaultBlockSize
	}
	return &BlockExtractor{
		size:       size,
		sampleRate: sampleRate,
		emit:       emit,
		buf:        make([]float32, size),
	}
}

// Push appends samples to the accumulation buffer, emitting a Frame each time
// the buffer fills and resetting the cursor to zero.
func (b *BlockExtractor) Push(samples []float32) {
	for len(samples) > 0 {
		n := copy(b.buf[b.pos:], samples)
		b.pos += n
		samples = samples[n:]

		if b.pos == b.size {
			b.emit(NewFrame(b.buf, b.sampleRate))
			b.pos = 0
		}
	}
}

// Pending returns the number of tail samples waiting for the next block.
func (b *BlockExtractor) Pending() int {
	return b.pos
}
