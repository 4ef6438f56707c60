// Package wire defines the JSON message envelopes exchanged with the
// realtime speech backend over a WebSocket.
//
// Outbound audio travels in the JSON variant of the protocol: raw PCM16 is
// base64-encoded and embedded in input_audio_buffer.append envelopes.
// Inbound frames are decoded by [DecodeEvent] into a small tagged union of
// event types; unrecognised-but-typed frames are surfaced as [Control]
// events so callers still see them, matching the behaviour of the relay
// this protocol originated from. Binary WebSocket frames bypass this
// package entirely and are delivered as opaque [Audio] events.
package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ── Session configuration ─────────────────────────────────────────────────────

// AudioFormat describes the PCM encoding of one direction of the stream.
type AudioFormat struct {
	Type         string `json:"type"`
	SampleRateHz int    `json:"sample_rate_hz"`
}

// TurnDetection configures server-side end-of-speech detection.
type TurnDetection struct {
	Type              string `json:"type"`
	SilenceDurationMS int    `json:"silence_duration_ms,omitempty"`
}

// SessionConfig is the session-level configuration sent in a session.update
// envelope. It is treated as immutable once staged for a call attempt.
type SessionConfig struct {
	Instructions     string         `json:"instructions,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
	InputAudioFormat *AudioFormat   `json:"input_audio_format,omitempty"`
	TurnDetection    *TurnDetection `json:"turn_detection,omitempty"`
}

// ResponseOptions carries per-response overrides for a response.create
// envelope.
type ResponseOptions struct {
	Instructions string   `json:"instructions,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

// ── Outbound envelopes ────────────────────────────────────────────────────────

// Hello is the first message a client sends after the socket opens.
type Hello struct {
	Type string `json:"type"`
}

// NewHello returns a ready-to-send hello envelope.
func NewHello() Hello { return Hello{Type: "hello"} }

// UserMessage carries a typed text utterance from the caller.
type UserMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Text string `json:"text"`
}

// NewUserMessage returns a user_message envelope with the given id and text.
func NewUserMessage(id, text string) UserMessage {
	return UserMessage{Type: "user_message", ID: id, Text: text}
}

// StartAudioStream announces that binary audio frames will follow. Only used
// by the relay variant of the protocol.
type StartAudioStream struct {
	Type string `json:"type"`
}

// NewStartAudioStream returns a start_audio_stream envelope.
func NewStartAudioStream() StartAudioStream { return StartAudioStream{Type: "start_audio_stream"} }

// StopAudioStream announces the end of a binary audio stream.
type StopAudioStream struct {
	Type string `json:"type"`
}

// NewStopAudioStream returns a stop_audio_stream envelope.
func NewStopAudioStream() StopAudioStream { return StopAudioStream{Type: "stop_audio_stream"} }

// SessionUpdate applies a SessionConfig to the live session.
type SessionUpdate struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

// NewSessionUpdate returns a session.update envelope for cfg.
func NewSessionUpdate(cfg SessionConfig) SessionUpdate {
	return SessionUpdate{Type: "session.update", Session: cfg}
}

// AudioAppend carries one base64-encoded PCM16 chunk.
type AudioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// NewAudioAppend wraps raw PCM16 bytes in an input_audio_buffer.append
// envelope, base64-encoding the payload.
func NewAudioAppend(pcm []byte) AudioAppend {
	return AudioAppend{Type: "input_audio_buffer.append", Audio: ToBase64(pcm)}
}

// AudioCommit marks the buffered audio segment as complete.
type AudioCommit struct {
	Type string `json:"type"`
}

// NewAudioCommit returns an input_audio_buffer.commit envelope.
func NewAudioCommit() AudioCommit { return AudioCommit{Type: "input_audio_buffer.commit"} }

// ResponseCreate asks the backend to generate a response.
type ResponseCreate struct {
	Type     string          `json:"type"`
	Response ResponseOptions `json:"response"`
}

// NewResponseCreate returns a response.create envelope with the given
// per-response overrides.
func NewResponseCreate(opts ResponseOptions) ResponseCreate {
	return ResponseCreate{Type: "response.create", Response: opts}
}

// ── Inbound events ────────────────────────────────────────────────────────────

// Event is one decoded inbound frame. Exactly one concrete type is produced
// per frame: [TextDelta], [Transcription], [Control], [Audio] or
// [ServerError].
type Event interface {
	eventKind() string
}

// TextDelta is a streaming text fragment for response id.
type TextDelta struct {
	ID    string
	Delta string
}

func (TextDelta) eventKind() string { return "text_delta" }

// Transcription is a completed transcription of caller speech.
type Transcription struct {
	ID   string
	Text string
}

func (Transcription) eventKind() string { return "transcription" }

// Control is a generic control notification. Frames with an unrecognised
// type field are also surfaced as Control events with Action set to that
// type.
type Control struct {
	Action   string
	ID       string
	Greeting string
}

func (Control) eventKind() string { return "control" }

// Audio is a chunk of synthesised PCM16 output audio.
type Audio struct {
	Data []byte
}

func (Audio) eventKind() string { return "audio" }

// ServerError is an error event reported by the backend.
type ServerError struct {
	Message string
}

func (ServerError) eventKind() string { return "error" }

// Error implements the error interface.
func (e ServerError) Error() string {
	if e.Message == "" {
		return "wire: unknown server error"
	}
	return "wire: " + e.Message
}

// Kind returns the event's wire kind ("text_delta", "transcription",
// "control", "audio" or "error"), mainly for metrics labels.
func Kind(ev Event) string {
	if ev == nil {
		return ""
	}
	return ev.eventKind()
}

// inboundFrame is the superset of fields seen across inbound frame types.
type inboundFrame struct {
	Type     string          `json:"type"`
	ID       string          `json:"id"`
	Delta    string          `json:"delta"`
	Text     string          `json:"text"`
	Action   string          `json:"action"`
	Greeting string          `json:"greeting"`
	Error    json.RawMessage `json:"error"`
}

// DecodeEvent decodes one inbound text frame. It returns an error only when
// the frame is not a JSON object with a type field; every typed frame decodes
// to some Event, falling back to [Control] for unknown types.
func DecodeEvent(data []byte) (Event, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("wire: decode frame: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("wire: frame missing type")
	}

	switch f.Type {
	case "text_delta", "response.output_text.delta":
		return TextDelta{ID: f.ID, Delta: f.Delta}, nil
	case "transcription":
		return Transcription{ID: f.ID, Text: f.Text}, nil
	case "control":
		return Control{Action: f.Action, ID: f.ID, Greeting: f.Greeting}, nil
	case "response.output_audio.delta":
		buf, err := FromBase64(f.Delta)
		if err != nil {
			return nil, fmt.Errorf("wire: decode audio delta: %w", err)
		}
		return Audio{Data: buf}, nil
	case "error":
		return ServerError{Message: decodeErrorDetail(f.Error)}, nil
	default:
		return Control{Action: f.Type, ID: f.ID}, nil
	}
}

// decodeErrorDetail extracts a human-readable message from an error payload,
// which may be a bare string or a nested {"message": ...} object.
func decodeErrorDetail(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

// ── Base64 binary bridge ──────────────────────────────────────────────────────

// ToBase64 encodes a binary audio buffer for embedding in a JSON envelope.
func ToBase64(buf []byte) string {
	return base64.StdEncoding.EncodeToString(buf)
}

// FromBase64 decodes a base64 payload back to its exact byte content.
func FromBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
