// Package analysis implements the streaming analysis orchestrator: it
// composes a prompt from typed text, accumulated voice transcript and an
// optional screenshot, opens a streaming backend request, demultiplexes
// the event stream into channels and resolves it to a final answer with
// cancellation, stale-session and regeneration semantics.
package analysis

// Channel identifies which output stream an event belongs to.
type Channel string

const (
	// ChannelAnswer carries user-visible answer text.
	ChannelAnswer Channel = "answer"
	// ChannelReasoning carries model reasoning summary text.
	ChannelReasoning Channel = "reasoning"
	// ChannelToolStatus carries tool-use lifecycle notifications.
	ChannelToolStatus Channel = "tool_status"
)

// Kind classifies events within a channel.
type Kind string

const (
	// KindDelta is an incremental text fragment.
	KindDelta Kind = "delta"
	// KindDone finalizes a channel; its text overrides accumulated deltas.
	KindDone Kind = "done"
	// KindLifecycle is a non-text status change (tool phases).
	KindLifecycle Kind = "lifecycle"
	// KindError carries a stream failure.
	KindError Kind = "error"
)

// ToolPhase is the lifecycle phase of a tool invocation.
type ToolPhase string

const (
	ToolInProgress ToolPhase = "in_progress"
	ToolSearching  ToolPhase = "searching"
	ToolCompleted  ToolPhase = "completed"
)

// StreamEvent is one demultiplexed backend event.
type StreamEvent struct {
	Channel Channel
	Kind    Kind
	Text    string
	Phase   ToolPhase
	Err     error
}
