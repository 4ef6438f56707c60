package call

import (
	"sync"

	"github.com/acoustad/voxcall/pkg/wire"
)

// Handlers is the caller-supplied event handler set. Every field is
// optional; unset handlers are no-ops. Handlers are invoked from the
// session's receive goroutine and must not block.
type Handlers struct {
	// OnTextDelta receives streaming text fragments.
	OnTextDelta func(wire.TextDelta)

	// OnTranscription receives completed transcriptions of caller speech.
	OnTranscription func(wire.Transcription)

	// OnControl receives control notifications, including frames whose
	// type the router does not recognise.
	OnControl func(wire.Control)

	// OnAudio receives synthesised output audio chunks.
	OnAudio func(wire.Audio)

	// OnOpen fires when the transport reaches the connected state,
	// including after a reconnect.
	OnOpen func()

	// OnClose fires when the connection closes, with the close code and
	// reason. It fires before any reconnect attempt is made.
	OnClose func(code int, reason string)

	// OnError receives transport and backend errors. Errors never
	// propagate as panics; this handler and the session status field are
	// the only channels.
	OnError func(error)

	// OnUnrecognized receives the raw payload of inbound frames that could
	// not be parsed at all. Unset means such frames are dropped silently.
	OnUnrecognized func(raw []byte)
}

// handlerRegistry holds the merged handler set. SetHandlers performs a
// partial merge: nil fields leave the existing registration in place.
type handlerRegistry struct {
	mu sync.Mutex
	h  Handlers
}

func (r *handlerRegistry) merge(h Handlers) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h.OnTextDelta != nil {
		r.h.OnTextDelta = h.OnTextDelta
	}
	if h.OnTranscription != nil {
		r.h.OnTranscription = h.OnTranscription
	}
	if h.OnControl != nil {
		r.h.OnControl = h.OnControl
	}
	if h.OnAudio != nil {
		r.h.OnAudio = h.OnAudio
	}
	if h.OnOpen != nil {
		r.h.OnOpen = h.OnOpen
	}
	if h.OnClose != nil {
		r.h.OnClose = h.OnClose
	}
	if h.OnError != nil {
		r.h.OnError = h.OnError
	}
	if h.OnUnrecognized != nil {
		r.h.OnUnrecognized = h.OnUnrecognized
	}
}

func (r *handlerRegistry) snapshot() Handlers {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.h
}
