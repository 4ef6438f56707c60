package wire_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/acoustad/voxcall/pkg/wire"
)

// ── Outbound envelopes ────────────────────────────────────────────────────────

func TestNewAudioAppend_EncodesPayload(t *testing.T) {
	t.Parallel()

	raw := []byte{0x10, 0x20, 0x30, 0x40}
	msg := wire.NewAudioAppend(raw)
	if msg.Type != "input_audio_buffer.append" {
		t.Errorf("type = %q; want input_audio_buffer.append", msg.Type)
	}

	decoded, err := base64.StdEncoding.DecodeString(msg.Audio)
	if err != nil {
		t.Fatalf("base64 decode: %v", err)
	}
	if string(decoded) != string(raw) {
		t.Errorf("decoded audio = %v; want %v", decoded, raw)
	}
}

func TestNewSessionUpdate_MarshalsOptionalFields(t *testing.T) {
	t.Parallel()

	temp := 0.7
	msg := wire.NewSessionUpdate(wire.SessionConfig{
		Instructions: "be brief",
		Temperature:  &temp,
		InputAudioFormat: &wire.AudioFormat{
			Type:         "pcm16",
			SampleRateHz: 24000,
		},
	})

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{
		`"type":"session.update"`,
		`"instructions":"be brief"`,
		`"temperature":0.7`,
		`"sample_rate_hz":24000`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("marshalled envelope missing %s: %s", want, s)
		}
	}
	if strings.Contains(s, "turn_detection") {
		t.Errorf("unset turn_detection should be omitted: %s", s)
	}
}

func TestNewSessionUpdate_OmitsUnsetTemperature(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(wire.NewSessionUpdate(wire.SessionConfig{}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "temperature") {
		t.Errorf("nil temperature should be omitted: %s", data)
	}
}

func TestOutboundEnvelopeTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  any
		want string
	}{
		{"hello", wire.NewHello(), "hello"},
		{"user message", wire.NewUserMessage("msg-1", "hi"), "user_message"},
		{"start audio stream", wire.NewStartAudioStream(), "start_audio_stream"},
		{"stop audio stream", wire.NewStopAudioStream(), "stop_audio_stream"},
		{"audio commit", wire.NewAudioCommit(), "input_audio_buffer.commit"},
		{"response create", wire.NewResponseCreate(wire.ResponseOptions{}), "response.create"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			data, err := json.Marshal(tc.msg)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var frame struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &frame); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if frame.Type != tc.want {
				t.Errorf("type = %q; want %q", frame.Type, tc.want)
			}
		})
	}
}

// ── DecodeEvent ───────────────────────────────────────────────────────────────

func TestDecodeEvent_TextDelta(t *testing.T) {
	t.Parallel()

	for _, typ := range []string{"text_delta", "response.output_text.delta"} {
		ev, err := wire.DecodeEvent([]byte(`{"type":"` + typ + `","id":"r1","delta":"hel"}`))
		if err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
		td, ok := ev.(wire.TextDelta)
		if !ok {
			t.Fatalf("%s: got %T; want TextDelta", typ, ev)
		}
		if td.ID != "r1" || td.Delta != "hel" {
			t.Errorf("%s: decoded %+v", typ, td)
		}
	}
}

func TestDecodeEvent_Transcription(t *testing.T) {
	t.Parallel()

	ev, err := wire.DecodeEvent([]byte(`{"type":"transcription","id":"u1","text":"hello there"}`))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	tr, ok := ev.(wire.Transcription)
	if !ok {
		t.Fatalf("got %T; want Transcription", ev)
	}
	if tr.Text != "hello there" {
		t.Errorf("text = %q", tr.Text)
	}
}

func TestDecodeEvent_Control(t *testing.T) {
	t.Parallel()

	ev, err := wire.DecodeEvent([]byte(`{"type":"control","action":"connected","greeting":"hi!"}`))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	c, ok := ev.(wire.Control)
	if !ok {
		t.Fatalf("got %T; want Control", ev)
	}
	if c.Action != "connected" || c.Greeting != "hi!" {
		t.Errorf("decoded %+v", c)
	}
}

func TestDecodeEvent_AudioDelta(t *testing.T) {
	t.Parallel()

	raw := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	payload := `{"type":"response.output_audio.delta","delta":"` + base64.StdEncoding.EncodeToString(raw) + `"}`
	ev, err := wire.DecodeEvent([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	a, ok := ev.(wire.Audio)
	if !ok {
		t.Fatalf("got %T; want Audio", ev)
	}
	if string(a.Data) != string(raw) {
		t.Errorf("data = %v; want %v", a.Data, raw)
	}
}

func TestDecodeEvent_AudioDelta_BadBase64(t *testing.T) {
	t.Parallel()

	_, err := wire.DecodeEvent([]byte(`{"type":"response.output_audio.delta","delta":"%%%"}`))
	if err == nil {
		t.Fatal("expected error for invalid base64 payload")
	}
}

func TestDecodeEvent_ErrorDetailShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"string detail", `{"type":"error","error":"boom"}`, "boom"},
		{"object detail", `{"type":"error","error":{"message":"rate limited"}}`, "rate limited"},
		{"no detail", `{"type":"error"}`, ""},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ev, err := wire.DecodeEvent([]byte(tc.payload))
			if err != nil {
				t.Fatalf("DecodeEvent: %v", err)
			}
			se, ok := ev.(wire.ServerError)
			if !ok {
				t.Fatalf("got %T; want ServerError", ev)
			}
			if se.Message != tc.want {
				t.Errorf("message = %q; want %q", se.Message, tc.want)
			}
		})
	}
}

func TestDecodeEvent_UnknownTypeBecomesControl(t *testing.T) {
	t.Parallel()

	ev, err := wire.DecodeEvent([]byte(`{"type":"session.created","id":"s1"}`))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	c, ok := ev.(wire.Control)
	if !ok {
		t.Fatalf("got %T; want Control", ev)
	}
	if c.Action != "session.created" {
		t.Errorf("action = %q; want session.created", c.Action)
	}
}

func TestDecodeEvent_MalformedFrames(t *testing.T) {
	t.Parallel()

	for _, payload := range []string{"not json", `{"id":"x"}`, `[]`} {
		if _, err := wire.DecodeEvent([]byte(payload)); err == nil {
			t.Errorf("DecodeEvent(%q) succeeded; want error", payload)
		}
	}
}

func TestKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ev   wire.Event
		want string
	}{
		{wire.TextDelta{}, "text_delta"},
		{wire.Transcription{}, "transcription"},
		{wire.Control{}, "control"},
		{wire.Audio{}, "audio"},
		{wire.ServerError{}, "error"},
		{nil, ""},
	}
	for _, tc := range tests {
		tc := tc
		if got := wire.Kind(tc.ev); got != tc.want {
			t.Errorf("Kind(%T) = %q; want %q", tc.ev, got, tc.want)
		}
	}
}

func TestServerError_ErrorString(t *testing.T) {
	t.Parallel()

	if got := (wire.ServerError{Message: "boom"}).Error(); !strings.Contains(got, "boom") {
		t.Errorf("Error() = %q", got)
	}
	if got := (wire.ServerError{}).Error(); got == "" {
		t.Error("empty message should still produce an error string")
	}
}

// ── Base64 bridge ─────────────────────────────────────────────────────────────

func TestBase64RoundTrip(t *testing.T) {
	t.Parallel()

	raw := []byte{0, 1, 2, 0xFF, 0x7F, 0x80}
	decoded, err := wire.FromBase64(wire.ToBase64(raw))
	if err != nil {
		t.Fatalf("FromBase64: %v", err)
	}
	if string(decoded) != string(raw) {
		t.Errorf("round trip = %v; want %v", decoded, raw)
	}
}
