package audio

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSource struct {
	frames chan Frame
	closed chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		frames: make(chan Frame, 64),
		closed: make(chan struct{}),
	}
}

func (s *fakeSource) Frames() <-chan Frame { return s.frames }

func (s *fakeSource) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
		close(s.frames)
	}
	return nil
}

func (s *fakeSource) push(samples int, rate int) {
	s.frames <- Frame{
		Channels:   [][]float32{make([]float32, samples)},
		SampleRate: rate,
	}
}

func acquirerFor(s *fakeSource) Acquirer {
	return func(context.Context) (Source, error) { return s, nil }
}

func failingAcquirer(context.Context) (Source, error) {
	return nil, errors.New("device unavailable")
}

func TestPipeline_EmitsBatches(t *testing.T) {
	rec := &batchRecorder{}
	src := newFakeSource()

	p := NewPipeline(PipelineConfig{
		Microphone:     acquirerFor(src),
		ChunkSamples:   64,
		BatchMaxBytes:  64 * 2, // one chunk fills a batch
		BatchFlushWait: 10 * time.Millisecond,
		Emit:           rec.emit,
	})

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer p.Stop()

	src.push(128, TargetSampleRate)

	waitFor(t, time.Second, func() bool { return rec.count() >= 1 })
	if got := len(rec.get(0)); got%2 != 0 || got == 0 {
		t.Errorf("expected non-empty even-length PCM16 batch, got %d bytes", got)
	}
}

func TestPipeline_StartWhileRunning(t *testing.T) {
	src := newFakeSource()
	p := NewPipeline(PipelineConfig{
		Microphone: acquirerFor(src),
		Emit:       func([]byte) {},
	})

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer p.Stop()

	if err := p.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestPipeline_FailedSourceIsNonFatal(t *testing.T) {
	src := newFakeSource()
	p := NewPipeline(PipelineConfig{
		Microphone:  acquirerFor(src),
		SystemAudio: failingAcquirer,
		Emit:        func([]byte) {},
	})

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("expected capture to continue with remaining source, got %v", err)
	}
	p.Stop()
}

func TestPipeline_BothSourcesFailStillStarts(t *testing.T) {
	p := NewPipeline(PipelineConfig{
		Microphone:  failingAcquirer,
		SystemAudio: failingAcquirer,
		Emit:        func([]byte) {},
	})

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed with no sources, got %v", err)
	}
	p.Stop()
}

func TestPipeline_PauseDiscardsAudio(t *testing.T) {
	rec := &batchRecorder{}
	src := newFakeSource()

	p := NewPipeline(PipelineConfig{
		Microphone:     acquirerFor(src),
		ChunkSamples:   32,
		BatchMaxBytes:  32 * 2,
		BatchFlushWait: 10 * time.Millisecond,
		Emit:           rec.emit,
	})

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer p.Stop()

	p.Pause()
	src.push(256, TargetSampleRate)
	time.Sleep(100 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("expected no batches while paused, got %d", rec.count())
	}

	p.Resume()
	src.push(64, TargetSampleRate)
	waitFor(t, time.Second, func() bool { return rec.count() >= 1 })

	// Discarded audio is not replayed: exactly the post-resume samples emit.
	total := 0
	for i := 0; i < rec.count(); i++ {
		total += len(rec.get(i))
	}
	if total > 64*2 {
		t.Errorf("expected at most %d bytes after resume, got %d", 64*2, total)
	}
}

func TestPipeline_StopIdempotent(t *testing.T) {
	p := NewPipeline(PipelineConfig{Emit: func([]byte) {}})

	// Stop before start is safe
	p.Stop()

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	p.Stop()
	p.Stop()
}

func TestPipeline_ElapsedExcludesPaused(t *testing.T) {
	src := newFakeSource()
	p := NewPipeline(PipelineConfig{
		Microphone: acquirerFor(src),
		Emit:       func([]byte) {},
	})

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer p.Stop()

	time.Sleep(30 * time.Millisecond)
	p.Pause()
	atPause := p.Elapsed()
	if atPause <= 0 {
		t.Fatal("expected positive elapsed time")
	}

	time.Sleep(50 * time.Millisecond)
	if got := p.Elapsed(); got != atPause {
		t.Errorf("expected elapsed frozen while paused, got %v then %v", atPause, got)
	}

	p.Resume()
	time.Sleep(20 * time.Millisecond)
	if got := p.Elapsed(); got <= atPause {
		t.Errorf("expected elapsed to advance after resume, got %v", got)
	}
}
