// Package session maintains per-conversation state: an append-only list
// of question/answer turns, a voice accumulation buffer, and the active
// session identifier. Sessions are superseded, never mutated: a reset
// issues a fresh identifier and discards the old state.
package session

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/AltairaLabs/specter/logger"
)

// Turn is one completed question/answer exchange. Immutable once
// appended; regeneration replaces the stored answer of an existing turn
// via ReplaceAnswer, never the question.
type Turn struct {
	Index     int    `json:"index"`
	RequestID string `json:"request_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	LogPath   string `json:"log_path,omitempty"`
}

// Snapshot is a point-in-time copy of a session's state, suitable for
// persistence.
type Snapshot struct {
	SessionID string `json:"session_id"`
	Turns     []Turn `json:"turns"`
}

// Manager owns the active session. All methods are safe for concurrent
// use.
type Manager struct {
	mu        sync.RWMutex
	id        string
	turns     []Turn
	nextIndex int
	voiceBuf  strings.Builder

	subMu   sync.Mutex
	subs    map[int]func(sessionID string)
	nextSub int
}

// NewManager creates a manager with a fresh session.
func NewManager() *Manager {
	return &Manager{
		id:   uuid.NewString(),
		subs: make(map[int]func(string)),
	}
}

// ID returns the active session identifier.
func (m *Manager) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id
}

// Reset discards the current session and activates a fresh identifier.
// Subscribers are notified with the new id. Returns the new id.
func (m *Manager) Reset() string {
	m.mu.Lock()
	old := m.id
	m.id = uuid.NewString()
	m.turns = nil
	m.nextIndex = 0
	m.voiceBuf.Reset()
	id := m.id
	m.mu.Unlock()

	logger.Info("session reset", "old", old, "new", id)
	m.notify(id)
	return id
}

// AppendTurn records a completed exchange and returns the stored turn
// with its assigned monotonic index.
func (m *Manager) AppendTurn(requestID, question, answer, logPath string) Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(requestID, question, answer, logPath)
}

// AppendTurnIf records a completed exchange only while sessionID is
// still the live session. The id check and the append happen under one
// lock, so a concurrent Reset can never leak a turn into the successor
// session's history.
func (m *Manager) AppendTurnIf(sessionID, requestID, question, answer, logPath string) (Turn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.id != sessionID {
		return Turn{}, false
	}
	return m.appendLocked(requestID, question, answer, logPath), true
}

func (m *Manager) appendLocked(requestID, question, answer, logPath string) Turn {
	turn := Turn{
		Index:     m.nextIndex,
		RequestID: requestID,
		Question:  question,
		Answer:    answer,
		LogPath:   logPath,
	}
	m.nextIndex++
	m.turns = append(m.turns, turn)
	return turn
}

// ReplaceAnswer overwrites the answer of the turn at index, preserving
// its question and position. Used by regeneration. Returns false if no
// turn exists at index.
func (m *Manager) ReplaceAnswer(index int, requestID, answer string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.replaceLocked(index, requestID, answer)
	return ok
}

// ReplaceAnswerIf overwrites the answer of the turn at index only while
// sessionID is still the live session, under the same lock as the id
// check.
func (m *Manager) ReplaceAnswerIf(sessionID string, index int, requestID, answer string) (Turn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.id != sessionID {
		return Turn{}, false
	}
	return m.replaceLocked(index, requestID, answer)
}

func (m *Manager) replaceLocked(index int, requestID, answer string) (Turn, bool) {
	for i := range m.turns {
		if m.turns[i].Index == index {
			m.turns[i].Answer = answer
			m.turns[i].RequestID = requestID
			return m.turns[i], true
		}
	}
	return Turn{}, false
}

// Turn returns the turn at the given index.
func (m *Manager) Turn(index int) (Turn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.turns {
		if t.Index == index {
			return t, true
		}
	}
	return Turn{}, false
}

// TurnCount returns the number of stored turns.
func (m *Manager) TurnCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// Snapshot returns a deep copy of the session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	turns := make([]Turn, len(m.turns))
	copy(turns, m.turns)
	return Snapshot{SessionID: m.id, Turns: turns}
}

// HistoryText renders the conversation as consecutive "Q:/A:" blocks,
// the textual context handed to the analysis backend. Turns at or beyond
// uptoExclusive are omitted; pass a negative value for the full history.
func (m *Manager) HistoryText(uptoExclusive int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder
	for _, t := range m.turns {
		if uptoExclusive >= 0 && t.Index >= uptoExclusive {
			continue
		}
		b.WriteString("Q: ")
		b.WriteString(t.Question)
		b.WriteString("\nA: ")
		b.WriteString(t.Answer)
		b.WriteString("\n\n")
	}
	return b.String()
}

// AppendVoiceDelta adds an incremental transcript fragment to the voice
// accumulation buffer.
func (m *Manager) AppendVoiceDelta(text string) {
	if text == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voiceBuf.WriteString(text)
}

// FinalizeVoiceSegment replaces the voice buffer with the finalized
// utterance, newline-terminated. The backend's completed transcript is a
// revision of the raw deltas, so it supersedes the accumulated text
// rather than appending to it. Empty text is ignored.
func (m *Manager) FinalizeVoiceSegment(text string) {
	if text == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.voiceBuf.Reset()
	m.voiceBuf.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		m.voiceBuf.WriteString("\n")
	}
}

// PeekVoice returns the accumulated voice transcript without consuming
// it.
func (m *Manager) PeekVoice() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.voiceBuf.String()
}

// SnapshotVoice returns the accumulated voice transcript and clears the
// buffer.
func (m *Manager) SnapshotVoice() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.voiceBuf.String()
	m.voiceBuf.Reset()
	return s
}

// OnSessionChanged registers a callback invoked with the new session id
// after every reset. The returned function unsubscribes.
func (m *Manager) OnSessionChanged(fn func(sessionID string)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Manager) notify(sessionID string) {
	m.subMu.Lock()
	fns := make([]func(string), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(sessionID)
	}
}
