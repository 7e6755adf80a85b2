package analysis

import "context"

// Request is one streaming analysis call.
type Request struct {
	// Prompt is the composed question, including conversation history.
	Prompt string
	// Instructions is the system prompt, set only on a session's first
	// turn.
	Instructions string
	// History is the rendered prior conversation, empty on first turns.
	History string
	// ImagePNG is an optional screenshot attachment.
	ImagePNG []byte
	// Model overrides the backend's default model when non-empty.
	Model string
}

// Backend opens streaming analysis calls. The returned channel is closed
// when the stream ends; after ctx is canceled the backend stops emitting
// promptly, though a final trickle of events must be tolerated.
type Backend interface {
	Stream(ctx context.Context, req Request) (<-chan StreamEvent, error)
}
