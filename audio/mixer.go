package audio

// maxMixLagSamples bounds how far one source may run ahead of the other
// before its queued samples are passed through unmixed. Half a second at
// the target rate.
const maxMixLagSamples = TargetSampleRate / 2

// Mixer sums two mono sample streams arriving asynchronously. Samples are
// queued per source; whenever both queues hold data the overlapping prefix
// is summed and released. If one source stalls, the other's queue is
// released unmixed once it exceeds the lag bound, so a silent or failed
// source never blocks the pipeline.
//
// Mixer is not safe for concurrent use; it is owned by the capture
// pipeline's processing loop.
type Mixer struct {
	queues [2][]float32
	live   [2]bool
}

// NewMixer creates a mixer. Mark each acquired source live with SetLive;
// samples from a lone live source pass through directly.
func NewMixer() *Mixer {
	return &Mixer{}
}

// SetLive marks whether the source at idx (0 or 1) is producing samples.
func (m *Mixer) SetLive(idx int, live bool) {
	m.live[idx] = live
}

// Push queues samples from the source at idx and returns any samples that
// became ready: the summed overlap of both queues, plus unmixed overflow
// beyond the lag bound.
func (m *Mixer) Push(idx int, samples []float32) []float32 {
	other := 1 - idx
	if !m.live[other] {
		return samples
	}

	m.queues[idx] = append(m.queues[idx], samples...)

	n := len(m.queues[0])
	if len(m.queues[1]) < n {
		n = len(m.queues[1])
	}

	var out []float32
	if n > 0 {
		out = make([]float32, n)
		for i := 0; i < n; i++ {
			out[i] = m.queues[0][i] + m.queues[1][i]
		}
		m.drain(0, n)
		m.drain(1, n)
	}

	// Release the backlog of whichever source has run too far ahead.
	for q := 0; q < 2; q++ {
		if len(m.queues[q]) > maxMixLagSamples {
			excess := len(m.queues[q]) - maxMixLagSamples
			out = append(out, m.queues[q][:excess]...)
			m.drain(q, excess)
		}
	}
	return out
}

// Reset discards all queued samples.
func (m *Mixer) Reset() {
	m.queues[0] = m.queues[0][:0]
	m.queues[1] = m.queues[1][:0]
}

func (m *Mixer) drain(idx, n int) {
	remain := copy(m.queues[idx], m.queues[idx][n:])
	m.queues[idx] = m.queues[idx][:remain]
}
