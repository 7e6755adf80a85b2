package audio

import (
	"sync"
	"time"

	"github.com/AltairaLabs/specter/metrics"
)

// Batching defaults: accumulate encoded chunks until either the byte
// threshold is exceeded or the flush timer elapses since the first pending
// chunk. This bounds transport call frequency while bounding latency.
const (
	DefaultBatchMaxBytes  = 32 * 1024
	DefaultBatchFlushWait = 220 * time.Millisecond
)

// Batcher accumulates encoded audio chunks and emits concatenated transport
// units. The emit callback runs on the batcher's own goroutine, never on
// the caller of Add, so the audio processing loop cannot block on
// transport I/O.
type Batcher struct {
	maxBytes int
	wait     time.Duration
	emit     func([]byte)

	mu      sync.Mutex
	pending [][]byte
	bytes   int

	arm  chan struct{}
	kick chan struct{}
	done chan struct{}

	stopOnce sync.Once
}

// NewBatcher creates and starts a batcher. maxBytes <= 0 and wait <= 0
// select the defaults. The emit callback receives one concatenated
// transport unit per flush and must tolerate being called from the
// batcher goroutine.
func NewBatcher(maxBytes int, wait time.Duration, emit func([]byte)) *Batcher {
	if maxBytes <= 0 {
		maxBytes = DefaultBatchMaxBytes
	}
	if wait <= 0 {
		wait = DefaultBatchFlushWait
	}
	b := &Batcher{
		maxBytes: maxBytes,
		wait:     wait,
		emit:     emit,
		arm:      make(chan struct{}, 1),
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go b.loop()
	return b
}

// Add queues an encoded chunk. If the accumulated size reaches the byte
// threshold the batch is flushed immediately on the batcher goroutine;
// otherwise a flush is scheduled for when the timer elapses.
func (b *Batcher) Add(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	b.mu.Lock()
	wasEmpty := b.bytes == 0
	b.pending = append(b.pending, chunk)
	b.bytes += len(chunk)
	over := b.bytes >= b.maxBytes
	b.mu.Unlock()

	if over {
		b.signal(b.kick)
	} else if wasEmpty {
		b.signal(b.arm)
	}
}

// Flush synchronously emits any pending batch. Safe to call at any time.
func (b *Batcher) Flush() {
	b.mu.Lock()
	if b.bytes == 0 {
		b.mu.Unlock()
		return
	}
	merged := make([]byte, 0, b.bytes)
	for _, c := range b.pending {
		merged = append(merged, c...)
	}
	b.pending = nil
	b.bytes = 0
	b.mu.Unlock()

	metrics.RecordBatchFlush(len(merged))
	b.emit(merged)
}

// Stop flushes pending data and terminates the batcher goroutine.
// Idempotent; Add calls after Stop are discarded at the next flush cycle.
func (b *Batcher) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.Flush()
	})
}

func (b *Batcher) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (b *Batcher) loop() {
	timer := time.NewTimer(b.wait)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-b.arm:
			// First pending chunk since the last flush; schedule the
			// inactivity flush. Later adds do not push the deadline out.
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(b.wait)
		case <-b.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			b.Flush()
		case <-timer.C:
			b.Flush()
		}
	}
}
