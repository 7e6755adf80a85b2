package audio

import (
	"context"
	"sync"
	"time"

	"github.com/AltairaLabs/specter/logger"
	"github.com/AltairaLabs/specter/metrics"
)

// Frame is one hardware buffer of captured audio: per-channel float
// samples at the device's native rate.
type Frame struct {
	Channels   [][]float32
	SampleRate int
}

// Source is a live audio input delivering frames until closed.
type Source interface {
	// Frames returns the frame stream. The channel is closed when the
	// source ends or is closed.
	Frames() <-chan Frame
	Close() error
}

// Acquirer opens an audio source. Acquisition is best-effort; callers
// treat failure as a degraded but non-fatal condition.
type Acquirer func(ctx context.Context) (Source, error)

// Pipeline states.
type pipelineState int

const (
	stateStopped pipelineState = iota
	stateRunning
	statePaused
)

// PipelineConfig configures a capture pipeline. Microphone and
// SystemAudio are acquired independently on Start; either may be nil.
// Emit receives concatenated PCM16 transport units and must not block
// for long periods (it runs on the batcher goroutine).
type PipelineConfig struct {
	Microphone  Acquirer
	SystemAudio Acquirer

	TargetRate     int
	ChunkSamples   int
	BatchMaxBytes  int
	BatchFlushWait time.Duration

	Emit func([]byte)
}

// Pipeline captures microphone and system audio, mixes the streams,
// resamples to fixed-rate mono PCM16 and batches encoded chunks for
// transport. Lifecycle: Start, optional Pause/Resume cycles, Stop.
// While paused the processing loop keeps draining sources but discards
// samples, so resuming never replays a backlog.
type Pipeline struct {
	cfg PipelineConfig

	mu       sync.Mutex
	state    pipelineState
	cancel   context.CancelFunc
	sources  []Source
	batcher  *Batcher
	procDone chan struct{}

	// elapsed clock, excludes paused spans
	accumulated time.Duration
	runningFrom time.Time
}

// NewPipeline creates a capture pipeline. Zero values in cfg select the
// package defaults (24kHz target, 3072-sample chunks, 32KiB/220ms batch).
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.TargetRate <= 0 {
		cfg.TargetRate = TargetSampleRate
	}
	if cfg.ChunkSamples <= 0 {
		cfg.ChunkSamples = DefaultChunkSamples
	}
	return &Pipeline{cfg: cfg}
}

// Start acquires the configured sources and begins processing. Each
// source is best-effort: acquisition failure is logged and capture
// continues with whatever succeeded, including none (silence). Returns
// an error only if the pipeline is already running.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != stateStopped {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	mixer := NewMixer()
	frames := make(chan sourceFrame, 16)

	var wg sync.WaitGroup
	acquire := func(idx int, name string, acq Acquirer) {
		if acq == nil {
			return
		}
		src, err := acq(ctx)
		if err != nil {
			logger.Warn("audio source unavailable, continuing without it",
				"source", name, "error", err)
			return
		}
		mixer.SetLive(idx, true)
		p.sources = append(p.sources, src)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-runCtx.Done():
					return
				case f, ok := <-src.Frames():
					if !ok {
						return
					}
					select {
					case frames <- sourceFrame{idx: idx, frame: f}:
					case <-runCtx.Done():
						return
					}
				}
			}
		}()
	}

	acquire(0, "microphone", p.cfg.Microphone)
	acquire(1, "system", p.cfg.SystemAudio)

	go func() {
		wg.Wait()
		close(frames)
	}()

	p.batcher = NewBatcher(p.cfg.BatchMaxBytes, p.cfg.BatchFlushWait, p.cfg.Emit)
	p.procDone = make(chan struct{})
	go p.process(frames, mixer, p.procDone)

	p.state = stateRunning
	p.runningFrom = time.Now()
	p.accumulated = 0
	logger.Info("capture started", "sources", len(p.sources))
	return nil
}

type sourceFrame struct {
	idx   int
	frame Frame
}

// process is the single consumer of the merged frame stream. It owns the
// mixer and chunker, so no locking is needed on the sample path.
func (p *Pipeline) process(frames <-chan sourceFrame, mixer *Mixer, done chan struct{}) {
	defer close(done)

	chunker := NewChunker(p.cfg.ChunkSamples)
	for sf := range frames {
		p.mu.Lock()
		paused := p.state == statePaused
		batcher := p.batcher
		p.mu.Unlock()

		mono := Downmix(sf.frame.Channels)
		resampled := Resample(mono, sf.frame.SampleRate, p.cfg.TargetRate)
		mixed := mixer.Push(sf.idx, resampled)

		if paused || batcher == nil {
			// Discard rather than queue so resume does not replay.
			chunker.Reset()
			mixer.Reset()
			continue
		}

		for _, chunk := range chunker.Write(mixed) {
			metrics.RecordAudioChunk()
			batcher.Add(EncodePCM16(FloatToPCM16(chunk)))
		}
	}
}

// Pause suppresses chunk emission without releasing sources. Audio
// arriving while paused is discarded. No-op unless running.
func (p *Pipeline) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != stateRunning {
		return
	}
	p.state = statePaused
	p.accumulated += time.Since(p.runningFrom)
	logger.Debug("capture paused")
}

// Resume re-enables chunk emission after Pause. No-op unless paused.
func (p *Pipeline) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != statePaused {
		return
	}
	p.state = stateRunning
	p.runningFrom = time.Now()
	logger.Debug("capture resumed")
}

// Elapsed returns the cumulative capture time, excluding paused spans.
func (p *Pipeline) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == stateRunning {
		return p.accumulated + time.Since(p.runningFrom)
	}
	return p.accumulated
}

// Stop releases all sources, flushes the batcher and clears internal
// buffers. Idempotent; safe to call when not started.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.state == stateStopped {
		p.mu.Unlock()
		return
	}
	if p.state == stateRunning {
		p.accumulated += time.Since(p.runningFrom)
	}
	p.state = stateStopped
	cancel := p.cancel
	sources := p.sources
	batcher := p.batcher
	procDone := p.procDone
	p.cancel = nil
	p.sources = nil
	p.batcher = nil
	p.procDone = nil
	p.mu.Unlock()

	for _, src := range sources {
		if err := src.Close(); err != nil {
			logger.Warn("closing audio source", "error", err)
		}
	}
	if cancel != nil {
		cancel()
	}
	if procDone != nil {
		<-procDone
	}
	if batcher != nil {
		batcher.Stop()
	}
	logger.Info("capture stopped")
}
