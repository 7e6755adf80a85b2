package transcribe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AltairaLabs/specter/logger"
	"github.com/AltairaLabs/specter/metrics"
)

// State is the transcription session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// EventType classifies transcription session events.
type EventType string

const (
	// EventStart acknowledges a successfully opened session.
	EventStart EventType = "start"
	// EventDelta carries an incremental transcript fragment.
	EventDelta EventType = "delta"
	// EventDone carries a finalized transcript segment.
	EventDone EventType = "done"
	// EventError carries a session-scoped failure.
	EventError EventType = "error"
)

// Event is a transcription session event. Every event is tagged with the
// session id it belongs to so callers can discard events from superseded
// sessions.
type Event struct {
	Type      EventType
	SessionID string
	Text      string
	Err       error
}

// ErrNotOpen is returned when audio is appended to a session that is not
// in the Open state.
var ErrNotOpen = errors.New("transcribe: session is not open")

// Config configures a transcription client.
type Config struct {
	Endpoint string // empty selects DefaultEndpoint
	APIKey   string
	Model    string // empty selects DefaultModel
}

// Client owns one duplex transcription connection per conversation
// session. Start opens the connection and configuration handshake; Append
// streams audio; Stop tears the session down, flushing any accumulated
// partial transcript as a final segment.
type Client struct {
	cfg Config

	mu        sync.Mutex
	state     State
	sessionID string
	transport *Transport
	cancel    context.CancelFunc
	partial   string

	events       chan Event
	eventsClosed bool
}

// NewClient creates an idle transcription client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:    cfg,
		state:  StateIdle,
		events: make(chan Event, 64),
	}
}

// Events returns the session event stream. The channel is closed when the
// client reaches a terminal state.
func (c *Client) Events() <-chan Event {
	return c.events
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens the streaming connection for sessionID, sends the session
// configuration and begins the receive loop. modelHint overrides the
// configured model when non-empty. Emits a start event on success.
func (c *Client) Start(ctx context.Context, sessionID, modelHint string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("transcribe: cannot start from state %s", c.state)
	}
	c.state = StateConnecting
	c.sessionID = sessionID
	c.transport = NewTransport(c.cfg.Endpoint, c.cfg.APIKey)
	c.mu.Unlock()

	if err := c.transport.ConnectWithRetry(ctx); err != nil {
		serr := newSessionError("opening session", err, true)
		c.fail(serr)
		return serr
	}

	model := modelHint
	if model == "" {
		model = c.cfg.Model
	}
	if err := c.transport.Send(newSessionUpdate(model)); err != nil {
		serr := newSessionError("configuring session", err, false)
		c.fail(serr)
		return serr
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.state = StateOpen
	c.cancel = cancel
	c.mu.Unlock()

	c.emit(Event{Type: EventStart, SessionID: sessionID})
	logger.Info("transcription session started", "session", sessionID, "model", model)

	go c.receiveLoop(loopCtx)
	return nil
}

// Append streams one PCM16 transport unit to the backend.
func (c *Client) Append(pcm []byte) error {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return ErrNotOpen
	}
	transport := c.transport
	c.mu.Unlock()

	return transport.Send(newBufferAppend(pcm))
}

// EndTurn marks the end of audio input for the current turn, prompting
// the backend to finalize any pending transcript.
func (c *Client) EndTurn() error {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return ErrNotOpen
	}
	transport := c.transport
	c.mu.Unlock()

	return transport.Send(bufferEndMsg{Type: typeBufferEnd})
}

// Stop closes the session. Any accumulated partial transcript is flushed
// as a final done event before the event channel closes. Idempotent.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.state == StateClosed || c.state == StateClosing {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.state = StateClosing
	transport := c.transport
	cancel := c.cancel
	partial := c.partial
	c.partial = ""
	sessionID := c.sessionID
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if transport != nil {
		if err := transport.Close(); err != nil {
			logger.Warn("closing transcription transport", "error", err)
		}
	}

	// Flush the in-progress segment so no speech is silently dropped.
	if prev == StateOpen && partial != "" {
		c.emit(Event{Type: EventDone, SessionID: sessionID, Text: partial})
		metrics.RecordTranscriptEvent("done")
	}

	c.mu.Lock()
	c.state = StateClosed
	c.eventsClosed = true
	c.mu.Unlock()

	close(c.events)
	logger.Info("transcription session stopped", "session", sessionID)
}

func (c *Client) receiveLoop(ctx context.Context) {
	msgCh := make(chan []byte, 16)
	errCh := make(chan error, 1)

	go func() {
		errCh <- c.transport.ReceiveLoop(ctx, msgCh)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				c.fail(newSessionError("receiving", err, true))
			}
			return
		case data := <-msgCh:
			c.handleMessage(data)
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	ev, err := parseServerEvent(data)
	if err != nil {
		logger.Warn("transcription: discarding malformed event", "error", err)
		return
	}

	c.mu.Lock()
	sessionID := c.sessionID
	open := c.state == StateOpen
	c.mu.Unlock()
	if !open {
		return
	}

	switch ev.Type {
	case typeTranscriptDelta:
		c.mu.Lock()
		c.partial += ev.Delta
		c.mu.Unlock()
		metrics.RecordTranscriptEvent("delta")
		c.emit(Event{Type: EventDelta, SessionID: sessionID, Text: ev.Delta})

	case typeTranscriptCompleted:
		c.mu.Lock()
		c.partial = ""
		c.mu.Unlock()
		metrics.RecordTranscriptEvent("done")
		c.emit(Event{Type: EventDone, SessionID: sessionID, Text: ev.Transcript})

	case typeServerError:
		msg := "transcription backend error"
		if ev.Error != nil && ev.Error.Message != "" {
			msg = ev.Error.Message
		}
		metrics.RecordTranscriptEvent("error")
		c.emit(Event{Type: EventError, SessionID: sessionID, Err: errors.New(msg)})

	default:
		// Lifecycle and bookkeeping events are not surfaced.
	}
}

// fail transitions to the Error state and surfaces a scoped error event.
func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.state == StateClosed || c.state == StateClosing {
		c.mu.Unlock()
		return
	}
	c.state = StateError
	sessionID := c.sessionID
	c.mu.Unlock()

	metrics.RecordTranscriptEvent("error")
	logger.Error("transcription session failed", "session", sessionID, "error", err)
	c.emit(Event{Type: EventError, SessionID: sessionID, Err: err})
}

// emit delivers an event without blocking the receive path. Events are
// dropped with a warning if the caller has stopped draining.
func (c *Client) emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eventsClosed {
		return
	}
	select {
	case c.events <- ev:
	default:
		logger.Warn("transcription: event channel full, dropping event",
			"type", string(ev.Type), "session", ev.SessionID)
	}
}
