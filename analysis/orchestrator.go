package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AltairaLabs/specter/logger"
	"github.com/AltairaLabs/specter/metrics"
	"github.com/AltairaLabs/specter/session"
)

// ErrEmptyQuestion is returned when neither typed text nor accumulated
// voice transcript yields a question.
var ErrEmptyQuestion = errors.New("analysis: question is empty")

// ErrTurnNotFound is returned by Regenerate when no turn exists at the
// target index.
var ErrTurnNotFound = errors.New("analysis: turn not found")

// Events is the per-request callback contract. Callbacks are invoked
// from the request goroutine; OnDelta receives every forwarded stream
// event, OnDone fires once on successful completion with the stored
// turn, OnError fires once on non-cancellation failure. Cancellation is
// silent: neither OnDone nor OnError fires.
type Events struct {
	OnStart func(requestID string)
	OnDelta func(ev StreamEvent)
	OnDone  func(turn session.Turn)
	OnError func(err error)
}

// Handle identifies an in-flight request and allows canceling it.
// Events delivered before a session reset carry this SessionID; callers
// discard events whose session is no longer active.
type Handle struct {
	RequestID string
	SessionID string
	cancel    context.CancelFunc
}

// Cancel cancels the request. Safe to call multiple times.
func (h *Handle) Cancel() {
	h.cancel()
}

// logPather is implemented by stores that expose per-session log paths.
type logPather interface {
	LogPath(sessionID string) string
}

// Config wires an orchestrator.
type Config struct {
	Backend  Backend
	Sessions *session.Manager

	// Store persists session snapshots after each completed turn.
	// Optional.
	Store session.HistoryStore

	// Screenshot captures visual context to attach to requests.
	// Optional; capture failure is non-fatal.
	Screenshot func(ctx context.Context) ([]byte, error)

	// LoadPrompt returns the instruction prompt applied on a session's
	// first turn. Required.
	LoadPrompt func() (string, error)

	// Model overrides the backend default when non-empty.
	Model string
}

// Orchestrator manages streaming analysis requests. Exactly one request
// is active at a time: submitting a new one synchronously cancels the
// previous request before proceeding.
type Orchestrator struct {
	cfg Config

	mu      sync.Mutex
	current context.CancelFunc
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{cfg: cfg}
}

// Submit composes a question from the session's accumulated voice
// transcript and the typed text, then opens a streaming request. The
// voice buffer is consumed. Returns ErrEmptyQuestion if both are empty.
func (o *Orchestrator) Submit(text string, ev Events) (*Handle, error) {
	voice := o.cfg.Sessions.PeekVoice()
	question := strings.TrimSpace(voice + "\n" + text)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	handle, err := o.run(question, -1, ev)
	if err != nil {
		return nil, err
	}

	// The buffer is consumed only once the request is actually issued;
	// a failed submit keeps the captured speech.
	o.cfg.Sessions.SnapshotVoice()
	return handle, nil
}

// Regenerate re-runs the question of the turn at targetIndex against the
// history preceding it, replacing that turn's stored answer on success.
func (o *Orchestrator) Regenerate(targetIndex int, ev Events) (*Handle, error) {
	turn, ok := o.cfg.Sessions.Turn(targetIndex)
	if !ok {
		return nil, ErrTurnNotFound
	}
	return o.run(turn.Question, targetIndex, ev)
}

// Cancel cancels the active request, if any. Silent for the canceled
// request: no OnDone or OnError fires.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil {
		o.current()
	}
}

func (o *Orchestrator) run(question string, target int, ev Events) (*Handle, error) {
	// Snapshot the session at submission time; side effects are
	// suppressed if the session changes before the request resolves.
	sessionID := o.cfg.Sessions.ID()

	history := o.cfg.Sessions.HistoryText(historyBound(target))

	var instructions string
	if history == "" {
		prompt, err := o.cfg.LoadPrompt()
		if err != nil {
			return nil, fmt.Errorf("loading instruction prompt: %w", err)
		}
		instructions = prompt
	}

	o.mu.Lock()
	if o.current != nil {
		// Cancel the previous request before starting; streams never
		// stack.
		o.current()
	}
	ctx, cancel := context.WithCancel(context.Background())
	o.current = cancel
	o.mu.Unlock()

	requestID := uuid.NewString()
	handle := &Handle{RequestID: requestID, SessionID: sessionID, cancel: cancel}

	go o.execute(ctx, requestID, sessionID, question, history, instructions, target, ev)
	return handle, nil
}

// historyBound maps a regeneration target to the history cutoff: the
// targeted turn and everything after it are excluded.
func historyBound(target int) int {
	if target >= 0 {
		return target
	}
	return -1
}

func (o *Orchestrator) execute(ctx context.Context, requestID, sessionID, question, history, instructions string, target int, ev Events) {
	start := time.Now()
	status := "success"
	metrics.RecordRequestStart()
	defer func() {
		metrics.RecordRequestEnd(status, time.Since(start).Seconds())
	}()

	var image []byte
	if o.cfg.Screenshot != nil {
		img, err := o.cfg.Screenshot(ctx)
		if err != nil {
			logger.Warn("screenshot capture failed, continuing without visual context",
				"request", requestID, "error", err)
		} else {
			image = img
		}
	}

	if ev.OnStart != nil {
		ev.OnStart(requestID)
	}

	stream, err := o.cfg.Backend.Stream(ctx, Request{
		Prompt:       question,
		Instructions: instructions,
		History:      history,
		ImagePNG:     image,
		Model:        o.cfg.Model,
	})
	if err != nil {
		if ctx.Err() != nil {
			status = "canceled"
			return
		}
		status = "error"
		logger.Error("opening analysis stream", "request", requestID, "error", err)
		if ev.OnError != nil {
			ev.OnError(err)
		}
		return
	}

	var answer strings.Builder
	var answerFinal string
	lastDelta := make(map[Channel]string)

	for event := range stream {
		if ctx.Err() != nil {
			// Tolerate a post-cancellation trickle without treating it
			// as new work.
			status = "canceled"
			return
		}

		metrics.RecordStreamEvent(string(event.Channel), string(event.Kind))

		switch event.Kind {
		case KindDelta:
			// Suppress immediately consecutive duplicate deltas per
			// channel.
			if event.Text == lastDelta[event.Channel] {
				continue
			}
			lastDelta[event.Channel] = event.Text
			if event.Channel == ChannelAnswer {
				answer.WriteString(event.Text)
			}
			if ev.OnDelta != nil {
				ev.OnDelta(event)
			}

		case KindDone:
			if event.Channel == ChannelAnswer && event.Text != "" {
				answerFinal = event.Text
			}
			if ev.OnDelta != nil {
				ev.OnDelta(event)
			}

		case KindLifecycle:
			if ev.OnDelta != nil {
				ev.OnDelta(event)
			}

		case KindError:
			if ctx.Err() != nil {
				status = "canceled"
				return
			}
			status = "error"
			logger.Error("analysis stream failed", "request", requestID, "error", event.Err)
			if ev.OnError != nil {
				ev.OnError(event.Err)
			}
			return
		}
	}

	if ctx.Err() != nil {
		status = "canceled"
		return
	}

	final := answerFinal
	if final == "" {
		final = answer.String()
	}

	var logPath string
	if lp, ok := o.cfg.Store.(logPather); ok {
		logPath = lp.LogPath(sessionID)
	}

	// The append is gated on the session id under the manager's lock:
	// a reset racing a separate check-then-append could leak this turn
	// into the successor session's history. Within an unchanged session
	// the target turn always exists, so a failed gate means the session
	// was superseded and the side effects are silently dropped.
	var turn session.Turn
	var live bool
	if target >= 0 {
		turn, live = o.cfg.Sessions.ReplaceAnswerIf(sessionID, target, requestID, final)
	} else {
		turn, live = o.cfg.Sessions.AppendTurnIf(sessionID, requestID, question, final, logPath)
	}
	if !live {
		metrics.RecordStaleSuppressed()
		logger.Debug("suppressing stale request side effects",
			"request", requestID, "session", sessionID)
		return
	}

	o.persist(sessionID, requestID)

	if ev.OnDone != nil {
		ev.OnDone(turn)
	}
}

func (o *Orchestrator) persist(sessionID, requestID string) {
	if o.cfg.Store == nil {
		return
	}

	snap := o.cfg.Sessions.Snapshot()
	if snap.SessionID != sessionID {
		metrics.RecordStaleSuppressed()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.cfg.Store.Save(ctx, snap); err != nil {
		logger.Error("persisting session history", "request", requestID, "error", err)
	}
}
