package audio

// DefaultChunkSamples is the fixed chunk size sliced off the accumulation
// ring: 3072 samples is ~128ms at the 24kHz target rate.
const DefaultChunkSamples = 3072

// Chunker accumulates resampled mono samples and slices off fixed-size
// chunks. Samples are queued, never dropped; leftover samples below the
// chunk size stay buffered until the next write.
//
// Chunker is not safe for concurrent use; it is owned by the capture
// pipeline's processing loop.
type Chunker struct {
	size int
	buf  []float32
}

// NewChunker creates a chunker emitting chunks of exactly size samples.
// A size of 0 or less selects DefaultChunkSamples.
func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSamples
	}
	return &Chunker{
		size: size,
		buf:  make([]float32, 0, size*4),
	}
}

// Write appends samples to the internal buffer and returns every complete
// chunk that became available, in order. Returned chunks are copies and
// remain valid after subsequent writes.
func (c *Chunker) Write(samples []float32) [][]float32 {
	c.buf = append(c.buf, samples...)

	var chunks [][]float32
	for len(c.buf) >= c.size {
		chunk := make([]float32, c.size)
		copy(chunk, c.buf[:c.size])
		chunks = append(chunks, chunk)

		remain := copy(c.buf, c.buf[c.size:])
		c.buf = c.buf[:remain]
	}
	return chunks
}

// Pending returns the number of buffered samples not yet emitted.
func (c *Chunker) Pending() int {
	return len(c.buf)
}

// Reset discards all buffered samples.
func (c *Chunker) Reset() {
	c.buf = c.buf[:0]
}
