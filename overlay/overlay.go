// Package overlay is the application facade: it wires the capture
// pipeline into the transcription session, routes transcript events into
// the session voice buffer, and exposes the question/answer operations
// backed by the streaming analysis orchestrator.
package overlay

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AltairaLabs/specter/analysis"
	"github.com/AltairaLabs/specter/audio"
	"github.com/AltairaLabs/specter/logger"
	"github.com/AltairaLabs/specter/session"
	"github.com/AltairaLabs/specter/transcribe"
)

// ErrCaptureNotRunning is returned when a capture operation requires an
// active capture session.
var ErrCaptureNotRunning = errors.New("overlay: capture is not running")

// Config wires an Overlay.
type Config struct {
	Sessions     *session.Manager
	Orchestrator *analysis.Orchestrator

	// Transcribe configures per-capture transcription clients.
	Transcribe transcribe.Config

	// Audio source acquirers; either may be nil.
	Microphone  audio.Acquirer
	SystemAudio audio.Acquirer
}

// Overlay coordinates capture, transcription and analysis for the active
// session. All methods are safe for concurrent use.
type Overlay struct {
	cfg Config

	mu       sync.Mutex
	pipeline *audio.Pipeline
	stt      *transcribe.Client
	group    *errgroup.Group
}

// New creates an overlay facade.
func New(cfg Config) *Overlay {
	return &Overlay{cfg: cfg}
}

// StartCapture opens a transcription session for the active conversation
// and starts the audio pipeline feeding it. Capture is best-effort per
// audio source but fails if the transcription connection cannot open.
func (o *Overlay) StartCapture(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pipeline != nil {
		return audio.ErrAlreadyRunning
	}

	stt := transcribe.NewClient(o.cfg.Transcribe)
	sessionID := o.cfg.Sessions.ID()
	if err := stt.Start(ctx, sessionID, ""); err != nil {
		return err
	}

	pipeline := audio.NewPipeline(audio.PipelineConfig{
		Microphone:  o.cfg.Microphone,
		SystemAudio: o.cfg.SystemAudio,
		Emit: func(batch []byte) {
			if err := stt.Append(batch); err != nil && !errors.Is(err, transcribe.ErrNotOpen) {
				logger.Warn("forwarding audio batch", "error", err)
			}
		},
	})
	if err := pipeline.Start(ctx); err != nil {
		stt.Stop()
		return err
	}

	group := new(errgroup.Group)
	group.Go(func() error {
		o.consumeTranscripts(stt.Events())
		return nil
	})

	o.pipeline = pipeline
	o.stt = stt
	o.group = group
	return nil
}

// consumeTranscripts routes transcription events into the session voice
// buffer. Events from superseded sessions are discarded.
func (o *Overlay) consumeTranscripts(events <-chan transcribe.Event) {
	for ev := range events {
		if ev.SessionID != o.cfg.Sessions.ID() {
			continue
		}
		switch ev.Type {
		case transcribe.EventDelta:
			o.cfg.Sessions.AppendVoiceDelta(ev.Text)
		case transcribe.EventDone:
			// The finalized utterance replaces the raw deltas it revises.
			o.cfg.Sessions.FinalizeVoiceSegment(ev.Text)
		case transcribe.EventError:
			logger.Warn("transcription error", "session", ev.SessionID, "error", ev.Err)
		case transcribe.EventStart:
			logger.Debug("transcription session open", "session", ev.SessionID)
		}
	}
}

// PauseCapture suppresses audio emission without tearing down capture.
func (o *Overlay) PauseCapture() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pipeline == nil {
		return ErrCaptureNotRunning
	}
	o.pipeline.Pause()
	return nil
}

// ResumeCapture re-enables audio emission after PauseCapture.
func (o *Overlay) ResumeCapture() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pipeline == nil {
		return ErrCaptureNotRunning
	}
	o.pipeline.Resume()
	return nil
}

// StopCapture tears down the audio pipeline and the transcription
// session. Idempotent.
func (o *Overlay) StopCapture() {
	o.mu.Lock()
	pipeline := o.pipeline
	stt := o.stt
	group := o.group
	o.pipeline = nil
	o.stt = nil
	o.group = nil
	o.mu.Unlock()

	if pipeline != nil {
		pipeline.Stop()
	}
	if stt != nil {
		// Flush the turn before closing so trailing speech is kept.
		if err := stt.EndTurn(); err != nil && !errors.Is(err, transcribe.ErrNotOpen) {
			logger.Debug("ending transcription turn", "error", err)
		}
		stt.Stop()
	}
	if group != nil {
		_ = group.Wait()
	}
}

// CaptureElapsed returns cumulative capture time excluding paused spans,
// or zero when capture is not running.
func (o *Overlay) CaptureElapsed() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pipeline == nil {
		return 0
	}
	return o.pipeline.Elapsed()
}

// SubmitQuestion composes a question from accumulated voice and typed
// text and opens a streaming analysis request. The returned handle
// cancels the request.
func (o *Overlay) SubmitQuestion(text string, ev analysis.Events) (*analysis.Handle, error) {
	return o.cfg.Orchestrator.Submit(text, ev)
}

// Regenerate replays the question of the turn at targetIndex with the
// history preceding it, replacing the stored answer on success.
func (o *Overlay) Regenerate(targetIndex int, ev analysis.Events) (*analysis.Handle, error) {
	return o.cfg.Orchestrator.Regenerate(targetIndex, ev)
}

// NewSession cancels any in-flight request and supersedes the current
// session with a fresh identifier. A running capture is rebound to the
// new session by restarting its transcription connection.
func (o *Overlay) NewSession(ctx context.Context) (string, error) {
	o.cfg.Orchestrator.Cancel()
	id := o.cfg.Sessions.Reset()

	o.mu.Lock()
	running := o.pipeline != nil
	o.mu.Unlock()

	if running {
		o.StopCapture()
		if err := o.StartCapture(ctx); err != nil {
			return id, err
		}
	}
	return id, nil
}

// OnSessionChanged registers a session lifecycle callback. The returned
// function unsubscribes.
func (o *Overlay) OnSessionChanged(fn func(sessionID string)) func() {
	return o.cfg.Sessions.OnSessionChanged(fn)
}

// DumpSessionHistory returns a deep copy of the active session's turns.
func (o *Overlay) DumpSessionHistory() session.Snapshot {
	return o.cfg.Sessions.Snapshot()
}
