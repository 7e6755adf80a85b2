package transcribe

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Realtime transcription endpoint defaults.
const (
	// DefaultEndpoint is the transcription intent realtime endpoint.
	DefaultEndpoint = "wss://api.openai.com/v1/realtime?intent=transcription"

	// RealtimeBetaHeader is the OpenAI-Beta header value required by the
	// realtime API.
	RealtimeBetaHeader = "realtime=v1"

	// DefaultModel is the transcription model used when no hint is given.
	DefaultModel = "gpt-4o-mini-transcribe"

	// vadThreshold tunes server-side voice activity turn segmentation.
	vadThreshold = 0.5
)

// Client event types sent to the backend.
const (
	typeSessionUpdate = "transcription_session.update"
	typeBufferAppend  = "input_audio_buffer.append"
	typeBufferEnd     = "input_audio_buffer.end"
)

// Server event types received from the backend.
const (
	typeTranscriptDelta     = "conversation.item.input_audio_transcription.delta"
	typeTranscriptCompleted = "conversation.item.input_audio_transcription.completed"
	typeServerError         = "error"
)

// sessionUpdateMsg configures the transcription session after connect:
// input format, voice-activity turn segmentation and model selection.
type sessionUpdateMsg struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	InputAudioFormat        string              `json:"input_audio_format"`
	TurnDetection           turnDetectionConfig `json:"turn_detection"`
	InputAudioTranscription transcriptionConfig `json:"input_audio_transcription"`
}

type turnDetectionConfig struct {
	Type      string  `json:"type"`
	Threshold float64 `json:"threshold"`
}

type transcriptionConfig struct {
	Model string `json:"model"`
}

func newSessionUpdate(model string) sessionUpdateMsg {
	if model == "" {
		model = DefaultModel
	}
	return sessionUpdateMsg{
		Type: typeSessionUpdate,
		Session: sessionConfig{
			InputAudioFormat: "pcm16",
			TurnDetection: turnDetectionConfig{
				Type:      "server_vad",
				Threshold: vadThreshold,
			},
			InputAudioTranscription: transcriptionConfig{
				Model: model,
			},
		},
	}
}

// bufferAppendMsg carries one base64-encoded PCM16 transport unit.
type bufferAppendMsg struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

func newBufferAppend(pcm []byte) bufferAppendMsg {
	return bufferAppendMsg{
		Type:  typeBufferAppend,
		Audio: base64.StdEncoding.EncodeToString(pcm),
	}
}

// bufferEndMsg marks the end of audio input for the current turn.
type bufferEndMsg struct {
	Type string `json:"type"`
}

// serverEvent is the decoded union of backend event payloads.
type serverEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta"`
	Transcript string `json:"transcript"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// parseServerEvent decodes a raw backend message. Unknown event types
// decode successfully and are skipped by the caller.
func parseServerEvent(data []byte) (serverEvent, error) {
	var ev serverEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return serverEvent{}, fmt.Errorf("decoding server event: %w", err)
	}
	return ev, nil
}
