package call

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/acoustad/voxcall/pkg/wire"
)

// Session manages one realtime voice call against a speech backend: it owns
// the WebSocket transport, the microphone capture graph and the inbound
// event routing. A Session is safe for concurrent use and can run any
// number of calls sequentially until Close.
type Session struct {
	transport *transport
	capture   *captureController
	handlers  handlerRegistry
	stats     StatsRecorder

	frameSize  int
	sampleRate int
	msgSeq     atomic.Uint64

	mu          sync.Mutex
	pending     *wire.SessionConfig
	lastApplied *wire.SessionConfig
	callStart   time.Time
	inCall      bool
	lastErr     error

	// sendCtx outlives the StartCall context so frames and control messages
	// sent after StartCall returns aren't bound to the caller's deadline.
	sendCtx    context.Context
	sendCancel context.CancelFunc
}

// Option customises a Session at construction time.
type Option func(*Session)

// WithCaptureSource replaces the platform microphone source. The default
// session has no source wired; production callers inject one backed by the
// platform audio API, tests inject synthetic sources.
func WithCaptureSource(src CaptureSource) Option {
	return func(s *Session) { s.capture.source = src }
}

// WithStats installs a StatsRecorder for call counters and timings.
func WithStats(rec StatsRecorder) Option {
	return func(s *Session) {
		s.stats = rec
		s.transport.stats = rec
	}
}

// WithFrameSize overrides the capture frame size in samples.
func WithFrameSize(n int) Option {
	return func(s *Session) { s.frameSize = n }
}

// WithSampleRate overrides the outbound PCM16 sample rate.
func WithSampleRate(hz int) Option {
	return func(s *Session) { s.sampleRate = hz }
}

// NewSession creates a session bound to the given configuration provider.
// The provider is consulted on every connect, so configuration changes take
// effect on the next call or reconnect.
func NewSession(provider ConfigProvider, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		stats:      nopStats{},
		frameSize:  DefaultFrameSize,
		sampleRate: DefaultSampleRate,
		sendCtx:    ctx,
		sendCancel: cancel,
	}
	s.transport = newTransport(provider, nopStats{})
	s.capture = &captureController{source: noCapture{}}
	for _, opt := range opts {
		opt(s)
	}

	s.capture.sink = s.sendFrame
	s.transport.hooks = transportHooks{
		onOpen:    s.onOpen,
		onMessage: s.routeFrame,
		onError:   s.onError,
		onClose:   s.onClose,
	}
	return s
}

// SetHandlers registers event handlers. Nil fields keep any previously
// registered handler, so callers can register incrementally.
func (s *Session) SetHandlers(h Handlers) {
	s.handlers.merge(h)
}

// CallOption customises a single call at start time without touching the
// session defaults.
type CallOption func(*callParams)

type callParams struct {
	frameSize  int
	sampleRate int
	config     *wire.SessionConfig
}

// WithCallFrameSize overrides the capture frame size for this call only.
func WithCallFrameSize(n int) CallOption {
	return func(p *callParams) { p.frameSize = n }
}

// WithCallSampleRate overrides the outbound PCM16 sample rate for this call
// only.
func WithCallSampleRate(hz int) CallOption {
	return func(p *callParams) { p.sampleRate = hz }
}

// WithCallConfig stages a session configuration to apply as the call starts,
// equivalent to calling UpdateSession immediately before StartCall.
func WithCallConfig(cfg wire.SessionConfig) CallOption {
	return func(p *callParams) { p.config = &cfg }
}

// StartCall validates configuration, connects the transport and starts
// microphone capture. Starting an already active call is a no-op. Capture
// failures surface as ErrCaptureUnavailable or ErrCapturePermission and
// leave the transport in whatever state it reached, so callers observe the
// mic failure separately from connection success; EndCall tears both down.
func (s *Session) StartCall(ctx context.Context, opts ...CallOption) error {
	s.mu.Lock()
	if s.inCall {
		s.mu.Unlock()
		return nil
	}
	p := callParams{frameSize: s.frameSize, sampleRate: s.sampleRate}
	for _, opt := range opts {
		opt(&p)
	}
	if p.config != nil {
		c := *p.config
		s.pending = &c
	}
	s.inCall = true
	s.callStart = time.Now()
	s.mu.Unlock()

	if err := s.transport.connect(ctx); err != nil {
		s.mu.Lock()
		s.inCall = false
		s.mu.Unlock()
		return err
	}

	if err := s.capture.start(ctx, p.frameSize, p.sampleRate); err != nil {
		s.mu.Lock()
		s.inCall = false
		s.mu.Unlock()
		s.onError(err)
		return err
	}

	s.stats.CallStarted()

	// The connect path may have raced the open hook with capture start; if a
	// session update is still pending and we are connected, flush it now.
	s.maybeFlushPending()
	return nil
}

// EndCall stops capture, signals the end of the audio segment and closes the
// connection. Teardown is best-effort and never returns an error; it is safe
// in any state and always ensures both the capture graph and the transport
// are released.
func (s *Session) EndCall() {
	s.mu.Lock()
	wasInCall := s.inCall
	s.inCall = false
	started := s.callStart
	s.mu.Unlock()

	s.capture.stop()
	// Closing the segment lets the backend finalise any buffered input
	// before the socket goes away. Ignored when not connected.
	_ = s.CommitAudio(s.sendCtx)
	s.transport.disconnect()
	if wasInCall {
		s.stats.CallEnded(time.Since(started))
	}
}

// Close disposes the session permanently. After Close, StartCall fails with
// ErrSessionClosed.
func (s *Session) Close() {
	s.EndCall()
	s.transport.close()
	s.sendCancel()
}

// Mute pauses outbound audio without touching the connection. Frames keep
// arriving from the device and are discarded. No-op unless the mic is on.
func (s *Session) Mute() { s.capture.mute() }

// Unmute resumes outbound audio. No-op unless the mic is muted.
func (s *Session) Unmute() { s.capture.unmute() }

// ConnectionStatus reports the transport state and, when in an error state,
// a human-readable detail string.
func (s *Session) ConnectionStatus() (ConnectionStatus, string) {
	return s.transport.connectionStatus()
}

// MicStatus reports the microphone state.
func (s *Session) MicStatus() MicStatus { return s.capture.micStatus() }

// LastError returns the most recent call error, including backend error
// events, or nil if none occurred since the session was created.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SendText sends a typed user message over the active connection. Message
// ids are generated per session so deltas can be correlated back.
func (s *Session) SendText(ctx context.Context, text string) error {
	id := fmt.Sprintf("msg-%d", s.msgSeq.Add(1))
	return s.transport.send(ctx, wire.NewUserMessage(id, text))
}

// UpdateSession applies a session configuration. While disconnected the
// config is held as pending and flushed exactly once on the next successful
// connect; while connected it is sent immediately. The most recently applied
// config is re-sent after every reconnect so the backend never runs with
// stale session parameters.
func (s *Session) UpdateSession(ctx context.Context, cfg wire.SessionConfig) error {
	s.mu.Lock()
	status, _ := s.transport.connectionStatus()
	if status != StatusConnected {
		c := cfg
		s.pending = &c
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.transport.send(ctx, wire.NewSessionUpdate(cfg)); err != nil {
		return err
	}
	s.mu.Lock()
	c := cfg
	s.lastApplied = &c
	s.pending = nil
	s.mu.Unlock()
	return nil
}

// CreateResponse asks the backend to produce a response turn now, with
// optional per-response overrides.
func (s *Session) CreateResponse(ctx context.Context, opts wire.ResponseOptions) error {
	return s.transport.send(ctx, wire.NewResponseCreate(opts))
}

// CommitAudio commits the buffered input audio as a completed user turn.
func (s *Session) CommitAudio(ctx context.Context) error {
	return s.transport.send(ctx, wire.NewAudioCommit())
}

// sendFrame is the capture sink: encode the PCM frame into an audio append
// envelope and send it. Frames are dropped, never queued, when the
// connection is down; a stale buffered frame is worse than a missing one in
// a realtime stream.
func (s *Session) sendFrame(pcm []byte) {
	if err := s.transport.send(s.sendCtx, wire.NewAudioAppend(pcm)); err != nil {
		return
	}
	s.stats.FrameSent(len(pcm))
}

// onOpen runs when the transport (re)connects: flush the pending session
// config, or re-send the last applied one, then notify the caller.
func (s *Session) onOpen() {
	s.flushSessionConfig(true)

	if h := s.handlers.snapshot().OnOpen; h != nil {
		h()
	}
}

// maybeFlushPending sends the pending session config if the transport is
// connected. It closes the race between UpdateSession before connect and the
// open hook.
func (s *Session) maybeFlushPending() {
	status, _ := s.transport.connectionStatus()
	if status != StatusConnected {
		return
	}
	s.flushSessionConfig(false)
}

// flushSessionConfig sends the staged session config. The config is taken out
// of pending under the lock before the send, so the open hook and a racing
// StartCall flush can never both send the same staged config; a failed send
// puts it back unless something newer was staged in the meantime. With
// resendApplied set, a reconnect with nothing pending re-sends the last
// applied config so the backend never runs with stale session parameters.
func (s *Session) flushSessionConfig(resendApplied bool) {
	s.mu.Lock()
	cfg := s.pending
	fromPending := cfg != nil
	if fromPending {
		s.pending = nil
	} else if resendApplied {
		cfg = s.lastApplied
	}
	s.mu.Unlock()
	if cfg == nil {
		return
	}

	if err := s.transport.send(s.sendCtx, wire.NewSessionUpdate(*cfg)); err != nil {
		if fromPending {
			s.mu.Lock()
			if s.pending == nil {
				s.pending = cfg
			}
			s.mu.Unlock()
		}
		return
	}
	s.mu.Lock()
	s.lastApplied = cfg
	s.mu.Unlock()
}

func (s *Session) onError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	if h := s.handlers.snapshot().OnError; h != nil {
		h(err)
	}
}

func (s *Session) onClose(code websocket.StatusCode, reason string) {
	if h := s.handlers.snapshot().OnClose; h != nil {
		h(int(code), reason)
	}
}

// routeFrame decodes one inbound frame and dispatches it to the matching
// handler. Binary frames are raw output audio; text frames carry the JSON
// event envelope. Frames that fail to parse go to OnUnrecognized when set
// and are dropped otherwise.
func (s *Session) routeFrame(typ websocket.MessageType, data []byte) {
	h := s.handlers.snapshot()

	if typ == websocket.MessageBinary {
		s.stats.EventReceived("audio")
		if h.OnAudio != nil {
			h.OnAudio(wire.Audio{Data: append([]byte(nil), data...)})
		}
		return
	}

	ev, err := wire.DecodeEvent(data)
	if err != nil {
		if h.OnUnrecognized != nil {
			h.OnUnrecognized(data)
		}
		return
	}
	s.stats.EventReceived(wire.Kind(ev))

	switch e := ev.(type) {
	case wire.TextDelta:
		if h.OnTextDelta != nil {
			h.OnTextDelta(e)
		}
	case wire.Transcription:
		if h.OnTranscription != nil {
			h.OnTranscription(e)
		}
	case wire.Audio:
		if h.OnAudio != nil {
			h.OnAudio(e)
		}
	case wire.ServerError:
		s.onError(e)
	case wire.Control:
		if h.OnControl != nil {
			h.OnControl(e)
		}
	}
}

// noCapture is the placeholder source for sessions constructed without one;
// it fails fast so a miswired caller gets a clear capture error instead of a
// silent audioless call.
type noCapture struct{}

func (noCapture) Start(context.Context, CaptureConfig, FrameFunc) error {
	return ErrCaptureUnavailable
}

func (noCapture) Stop() error { return nil }
