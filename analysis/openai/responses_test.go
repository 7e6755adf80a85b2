package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/specter/analysis"
)

func sseServer(t *testing.T, capture *map[string]any, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			*capture = body
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
		}
	}))
}

func collect(t *testing.T, events <-chan analysis.StreamEvent) []analysis.StreamEvent {
	t.Helper()
	var out []analysis.StreamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out collecting stream events")
		}
	}
}

func TestStream_MapsEventChannels(t *testing.T) {
	server := sseServer(t, nil,
		`{"type":"response.output_text.delta","delta":"Hello"}`,
		`{"type":"response.reasoning_summary_text.delta","delta":"thinking"}`,
		`{"type":"response.reasoning_summary_text.done","text":"full summary"}`,
		`{"type":"response.web_search_call.in_progress"}`,
		`{"type":"response.web_search_call.searching"}`,
		`{"type":"response.web_search_call.completed"}`,
		`{"type":"response.output_text.done","text":"Hello world"}`,
		`{"type":"response.completed"}`,
	)
	defer server.Close()

	c := NewClient(server.URL, "test-key")
	events, err := c.Stream(context.Background(), analysis.Request{Prompt: "hi"})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 7)

	assert.Equal(t, analysis.ChannelAnswer, got[0].Channel)
	assert.Equal(t, analysis.KindDelta, got[0].Kind)
	assert.Equal(t, "Hello", got[0].Text)

	assert.Equal(t, analysis.ChannelReasoning, got[1].Channel)
	assert.Equal(t, analysis.KindDelta, got[1].Kind)

	assert.Equal(t, analysis.ChannelReasoning, got[2].Channel)
	assert.Equal(t, analysis.KindDone, got[2].Kind)
	assert.Equal(t, "full summary", got[2].Text)

	assert.Equal(t, analysis.ChannelToolStatus, got[3].Channel)
	assert.Equal(t, analysis.ToolInProgress, got[3].Phase)
	assert.Equal(t, analysis.ToolSearching, got[4].Phase)
	assert.Equal(t, analysis.ToolCompleted, got[5].Phase)

	assert.Equal(t, analysis.KindDone, got[6].Kind)
	assert.Equal(t, "Hello world", got[6].Text)
}

func TestStream_DoneSentinelEndsStream(t *testing.T) {
	server := sseServer(t, nil,
		`{"type":"response.output_text.delta","delta":"x"}`,
		sseDoneSentinel,
		`{"type":"response.output_text.delta","delta":"never seen"}`,
	)
	defer server.Close()

	c := NewClient(server.URL, "test-key")
	events, err := c.Stream(context.Background(), analysis.Request{Prompt: "hi"})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].Text)
}

func TestStream_RequestComposition(t *testing.T) {
	var captured map[string]any
	server := sseServer(t, &captured, `{"type":"response.completed"}`)
	defer server.Close()

	c := NewClient(server.URL, "test-key", WithModel("custom-model"))
	events, err := c.Stream(context.Background(), analysis.Request{
		Prompt:       "what is this?",
		Instructions: "be terse",
		History:      "Q: earlier\nA: answer\n\n",
		ImagePNG:     []byte{0x89, 0x50},
	})
	require.NoError(t, err)
	collect(t, events)

	assert.Equal(t, "custom-model", captured["model"])
	assert.Equal(t, true, captured["stream"])
	assert.Equal(t, "be terse", captured["instructions"])

	input := captured["input"].([]any)
	msg := input[0].(map[string]any)
	content := msg["content"].([]any)
	require.Len(t, content, 2)

	textPart := content[0].(map[string]any)
	assert.Equal(t, "input_text", textPart["type"])
	assert.Equal(t, "Q: earlier\nA: answer\n\nwhat is this?", textPart["text"])

	imagePart := content[1].(map[string]any)
	assert.Equal(t, "input_image", imagePart["type"])
	assert.Contains(t, imagePart["image_url"], "data:image/png;base64,")
}

func TestStream_InstructionsOmittedWhenEmpty(t *testing.T) {
	var captured map[string]any
	server := sseServer(t, &captured, `{"type":"response.completed"}`)
	defer server.Close()

	c := NewClient(server.URL, "test-key")
	events, err := c.Stream(context.Background(), analysis.Request{Prompt: "hi"})
	require.NoError(t, err)
	collect(t, events)

	_, present := captured["instructions"]
	assert.False(t, present)
}

func TestStream_ErrorEventTerminates(t *testing.T) {
	server := sseServer(t, nil,
		`{"type":"response.failed","response":{"error":{"message":"rate limited"}}}`,
		`{"type":"response.output_text.delta","delta":"never"}`,
	)
	defer server.Close()

	c := NewClient(server.URL, "test-key")
	events, err := c.Stream(context.Background(), analysis.Request{Prompt: "hi"})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 1)
	assert.Equal(t, analysis.KindError, got[0].Kind)
	assert.Contains(t, got[0].Err.Error(), "rate limited")
}

func TestStream_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient(server.URL, "wrong-key")
	_, err := c.Stream(context.Background(), analysis.Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestStream_ContextCancellation(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"type\":\"response.output_text.delta\",\"delta\":\"a\"}\n\n")
		flusher.Flush()
		<-blocked
	}))
	defer server.Close()
	defer close(blocked)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(server.URL, "test-key")
	events, err := c.Stream(ctx, analysis.Request{Prompt: "hi"})
	require.NoError(t, err)

	// First event arrives, then cancellation closes the stream.
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("never received first event")
	}
	cancel()

	select {
	case _, ok := <-events:
		for ok {
			_, ok = <-events
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancellation")
	}
}
