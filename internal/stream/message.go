package stream

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/hfleisch/vocalytic/pkg/audio"
)

// MessageKind classifies a [Message] delivered to session handlers.
type MessageKind string

const (
	// KindOpen marks transport establishment.
	KindOpen MessageKind = "open"

	// KindClose marks transport closure; Code and Reason are populated.
	KindClose MessageKind = "close"

	// KindError marks a transport-level error; Err is populated.
	KindError MessageKind = "error"

	// KindText is an inbound text message that is not structured data.
	KindText MessageKind = "text"

	// KindJSON is an inbound text message holding structured data.
	KindJSON MessageKind = "json"

	// KindBinary is an inbound binary message.
	KindBinary MessageKind = "binary"
)

// Message is the tagged union delivered to session observers. Exactly the
// fields implied by Kind are set.
type Message struct {
	Kind MessageKind

	// Text holds the payload for KindText.
	Text string

	// JSON holds the raw payload for KindJSON.
	JSON json.RawMessage

	// Binary holds the payload for KindBinary.
	Binary []byte

	// Code and Reason describe a KindClose.
	Code   int
	Reason string

	// Err carries the detail of a KindError.
	Err error
}

// classifyInbound maps a wire message to a [Message] by shape: binary frames
// stay binary; text frames become structured data when they parse as JSON,
// plain text otherwise.
func classifyInbound(typ MessageType, data []byte) Message {
	if typ == MessageBinary {
		return Message{Kind: KindBinary, Binary: data}
	}
	if json.Valid(data) {
		return Message{Kind: KindJSON, JSON: json.RawMessage(data)}
	}
	return Message{Kind: KindText, Text: string(data)}
}

// ── Outbound control messages ─────────────────────────────────────────────────

// ControlMessage is the envelope for session control traffic.
type ControlMessage struct {
	Type string      `json:"type"`
	Data *PromptData `json:"data,omitempty"`
}

// PromptData carries the text of a prompt control message.
type PromptData struct {
	Text string `json:"text"`
}

// StartMessage announces session start; sent immediately after open.
func StartMessage() ControlMessage { return ControlMessage{Type: "start"} }

// EndMessage announces intentional session end; sent best-effort on disconnect.
func EndMessage() ControlMessage { return ControlMessage{Type: "end"} }

// KeepaliveMessage keeps the long-lived connection warm.
func KeepaliveMessage() ControlMessage { return ControlMessage{Type: "keepalive"} }

// PromptMessage asks the backend to coach against the given prompt text.
func PromptMessage(text string) ControlMessage {
	return ControlMessage{Type: "prompt", Data: &PromptData{Text: text}}
}

// AudioChunk is the envelope for one sampled real-time analysis frame.
type AudioChunk struct {
	Type           string `json:"type"`
	AudioData      string `json:"audio_data"`
	SampleRate     int    `json:"sample_rate"`
	Timestamp      int64  `json:"timestamp"`
	SequenceNumber uint64 `json:"sequence_number"`
}

// NewAudioChunk wraps a frame for transmission. The frame bytes travel
// base64-encoded; ts is the caller's wall-clock timestamp.
func NewAudioChunk(frame audio.Frame, seq uint64, ts time.Time) AudioChunk {
	return AudioChunk{
		Type:           "audio_chunk",
		AudioData:      base64.StdEncoding.EncodeToString(frame.Data),
		SampleRate:     frame.SampleRate,
		Timestamp:      ts.UnixMilli(),
		SequenceNumber: seq,
	}
}

// ── Inbound backend events ────────────────────────────────────────────────────

// Suggestion is one entry of a realtime_suggestion event.
type Suggestion struct {
	Type       string `json:"type"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// Event is the decoded form of a backend event message. Only the fields
// matching Type are populated; unknown event types keep Raw for the caller.
//
// Known types: session_initialized, coaching_feedback, realtime_suggestion,
// performance_metrics, error, and the agent lifecycle variants agent.start,
// agent.started, agent.meta, agent.upstream, agent.error, agent.end.
type Event struct {
	Type string `json:"type"`

	// Feedback carries coaching_feedback text.
	Feedback string `json:"feedback,omitempty"`

	// Suggestions carries realtime_suggestion entries.
	Suggestions []Suggestion `json:"suggestions,omitempty"`

	// Metrics carries performance_metrics values.
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// Error carries the error event detail.
	Error string `json:"error,omitempty"`

	// Raw is the undecoded payload, kept for agent.* and unknown types.
	Raw json.RawMessage `json:"-"`
}

// ParseEvent decodes a structured backend message into an [Event]. Returns
// false when the payload has no type tag.
func ParseEvent(data []byte) (Event, bool) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil || evt.Type == "" {
		return Event{}, false
	}
	evt.Raw = json.RawMessage(data)
	return evt, true
}
