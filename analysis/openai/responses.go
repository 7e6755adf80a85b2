// Package openai implements the streaming analysis backend over the
// OpenAI Responses API.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/AltairaLabs/specter/analysis"
	"github.com/AltairaLabs/specter/logger"
)

const (
	// DefaultBaseURL is the OpenAI API root.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when neither the client nor the request
	// names a model.
	DefaultModel = "gpt-5-mini"

	responsesPath = "/responses"

	// sseDoneSentinel terminates the event stream.
	sseDoneSentinel = "[DONE]"

	// maxSSELineSize bounds a single SSE line; streamed deltas are
	// small but final done events carry full texts.
	maxSSELineSize = 1 << 20
)

// Streaming event types from the Responses API.
const (
	eventTextDelta          = "response.output_text.delta"
	eventTextDone           = "response.output_text.done"
	eventReasoningDelta     = "response.reasoning_summary_text.delta"
	eventReasoningDone      = "response.reasoning_summary_text.done"
	eventWebSearchPrefix    = "response.web_search_call."
	eventResponseCompleted  = "response.completed"
	eventResponseFailed     = "response.failed"
	eventResponseIncomplete = "response.incomplete"
	eventError              = "error"
)

// Client streams analysis requests over the Responses API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// NewClient creates a Responses API client. An empty baseURL selects
// DefaultBaseURL.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   DefaultModel,
		// No overall timeout: streams are bounded by cancellation.
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// streamEvent is the decoded union of Responses API stream payloads.
type streamEvent struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Response *struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"response"`
}

// Stream opens a streaming Responses API call. Events are delivered on
// the returned channel until the stream completes, fails or ctx is
// canceled; the channel is then closed.
func (c *Client) Stream(ctx context.Context, req analysis.Request) (<-chan analysis.StreamEvent, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+responsesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	events := make(chan analysis.StreamEvent, 32)
	go c.readStream(ctx, resp.Body, events)
	return events, nil
}

func (c *Client) buildRequest(req analysis.Request) map[string]any {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	text := req.Prompt
	if req.History != "" {
		text = req.History + req.Prompt
	}

	content := []map[string]any{
		{"type": "input_text", "text": text},
	}
	if len(req.ImagePNG) > 0 {
		content = append(content, map[string]any{
			"type":      "input_image",
			"image_url": "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.ImagePNG),
		})
	}

	body := map[string]any{
		"model":  model,
		"stream": true,
		"input": []map[string]any{
			{"role": "user", "content": content},
		},
		"tools": []map[string]any{
			{"type": "web_search"},
		},
		"reasoning": map[string]any{
			"summary": "auto",
		},
	}
	if req.Instructions != "" {
		body["instructions"] = req.Instructions
	}
	return body
}

func (c *Client) readStream(ctx context.Context, body io.ReadCloser, events chan<- analysis.StreamEvent) {
	defer close(events)
	defer body.Close()

	emit := func(ev analysis.StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		data := bytes.TrimPrefix(line, []byte("data: "))
		if string(data) == sseDoneSentinel {
			return
		}

		var ev streamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Warn("discarding malformed stream event", "error", err)
			continue
		}

		out, terminal, ok := mapEvent(ev)
		if !ok {
			continue
		}
		if !emit(out) {
			return
		}
		if terminal {
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		emit(analysis.StreamEvent{
			Channel: analysis.ChannelAnswer,
			Kind:    analysis.KindError,
			Err:     fmt.Errorf("reading stream: %w", err),
		})
	}
}

// mapEvent translates a backend event into a StreamEvent. The second
// return reports whether the stream ends after this event; the third
// whether the event is surfaced at all.
func mapEvent(ev streamEvent) (analysis.StreamEvent, bool, bool) {
	switch ev.Type {
	case eventTextDelta:
		return analysis.StreamEvent{
			Channel: analysis.ChannelAnswer,
			Kind:    analysis.KindDelta,
			Text:    ev.Delta,
		}, false, true

	case eventTextDone:
		return analysis.StreamEvent{
			Channel: analysis.ChannelAnswer,
			Kind:    analysis.KindDone,
			Text:    ev.Text,
		}, false, true

	case eventReasoningDelta:
		return analysis.StreamEvent{
			Channel: analysis.ChannelReasoning,
			Kind:    analysis.KindDelta,
			Text:    ev.Delta,
		}, false, true

	case eventReasoningDone:
		return analysis.StreamEvent{
			Channel: analysis.ChannelReasoning,
			Kind:    analysis.KindDone,
			Text:    ev.Text,
		}, false, true

	case eventResponseCompleted:
		return analysis.StreamEvent{}, true, false

	case eventError, eventResponseFailed, eventResponseIncomplete:
		return analysis.StreamEvent{
			Channel: analysis.ChannelAnswer,
			Kind:    analysis.KindError,
			Err:     fmt.Errorf("backend stream failed: %s", errorMessage(ev)),
		}, true, true
	}

	if phase, ok := strings.CutPrefix(ev.Type, eventWebSearchPrefix); ok {
		return analysis.StreamEvent{
			Channel: analysis.ChannelToolStatus,
			Kind:    analysis.KindLifecycle,
			Phase:   analysis.ToolPhase(phase),
		}, false, true
	}

	return analysis.StreamEvent{}, false, false
}

func errorMessage(ev streamEvent) string {
	if ev.Error != nil && ev.Error.Message != "" {
		return ev.Error.Message
	}
	if ev.Response != nil && ev.Response.Error != nil && ev.Response.Error.Message != "" {
		return ev.Response.Error.Message
	}
	return "unknown error"
}
