package call

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Reconnect policy parameters. Backoff doubles per attempt up to
// backoffBase << backoffMaxShift, plus up to backoffJitter of random delay
// so simultaneous clients don't reconnect in lockstep.
const (
	maxReconnectAttempts = 5
	backoffBase          = 500 * time.Millisecond
	backoffMaxShift      = 4
	backoffJitter        = 250 * time.Millisecond
)

// ConfigProvider supplies validated connection parameters and builds the
// transport URL. It is an external collaborator of the call core;
// [endpoint.Settings] is the usual implementation.
type ConfigProvider interface {
	// Validate returns structured failure reasons; empty means usable.
	Validate() []string

	// WebSocketURL builds the ready-to-dial transport URL.
	WebSocketURL() (string, error)
}

// transportHooks are the session-side callbacks for connection lifecycle
// events. All hooks may be nil.
type transportHooks struct {
	onOpen    func()
	onMessage func(typ websocket.MessageType, data []byte)
	onError   func(err error)
	onClose   func(code websocket.StatusCode, reason string)
}

// transport owns the single WebSocket connection for a session: connect,
// send, receive, close, plus the reconnect policy and the distinction
// between manual and unexpected disconnects. It is the sole mutator of
// ConnectionStatus.
type transport struct {
	provider ConfigProvider
	hooks    transportHooks
	stats    StatsRecorder

	mu         sync.Mutex
	conn       *websocket.Conn
	status     ConnectionStatus
	statusText string
	manual     bool
	attempts   int
	retryTimer *time.Timer
	lastCode   websocket.StatusCode
	lastReason string
	closed     bool

	// gen identifies the current connection attempt. Lifecycle callbacks
	// from a superseded connection compare generations and bail out, which
	// keeps reconnect scheduling serialized.
	gen uint64
}

func newTransport(provider ConfigProvider, stats StatsRecorder) *transport {
	return &transport{provider: provider, stats: stats, status: StatusIdle}
}

// connect validates configuration, builds the URL and dials. Calling it
// while a connection is open or in flight is a no-op, which is what
// prevents duplicate connections on rapid repeated start calls.
func (t *transport) connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrSessionClosed
	}
	if t.status == StatusConnecting || t.status == StatusConnected {
		t.mu.Unlock()
		return nil
	}
	t.stopRetryTimerLocked()
	t.manual = false
	t.attempts = 0

	if reasons := t.provider.Validate(); len(reasons) > 0 {
		err := fmt.Errorf("%w: %s", ErrConfigInvalid, strings.Join(reasons, ", "))
		t.status = StatusError
		t.statusText = err.Error()
		t.mu.Unlock()
		t.notifyError(err)
		return err
	}

	t.status = StatusConnecting
	t.mu.Unlock()
	return t.dial(ctx, false)
}

// dial performs one connection attempt, with status already StatusConnecting.
// viaRetry marks dials entered from a reconnect timer: those keep the retry
// policy counting on failure, while a failed synchronous connect settles
// without retrying — the caller observed the failure directly and the call
// never became active.
func (t *transport) dial(ctx context.Context, viaRetry bool) error {
	t.mu.Lock()
	if t.closed || t.manual {
		t.mu.Unlock()
		return nil
	}
	gen := t.gen
	t.mu.Unlock()

	wsURL, err := t.provider.WebSocketURL()
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrMissingParameters, err)
		t.mu.Lock()
		t.status = StatusError
		t.statusText = err.Error()
		t.mu.Unlock()
		t.notifyError(err)
		return err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		err = fmt.Errorf("call: dial: %w", err)
		t.mu.Lock()
		t.status = StatusError
		t.statusText = err.Error()
		t.mu.Unlock()
		t.notifyError(err)
		// Hand the failure to the close disposition; only redials stay
		// eligible for another attempt.
		t.finishClose(ctx, gen, websocket.StatusAbnormalClosure, err.Error(), viaRetry)
		return err
	}

	t.mu.Lock()
	if t.closed || t.manual {
		t.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "superseded")
		return nil
	}
	t.conn = conn
	t.status = StatusConnected
	t.statusText = ""
	t.attempts = 0
	t.mu.Unlock()

	if h := t.hooks.onOpen; h != nil {
		h()
	}
	go t.readLoop(ctx, conn, gen)
	return nil
}

// readLoop routes inbound frames until the connection dies, then hands the
// terminal error to the close disposition.
func (t *transport) readLoop(ctx context.Context, conn *websocket.Conn, gen uint64) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			code := websocket.CloseStatus(err)
			reason := ""
			if code == -1 {
				code = websocket.StatusAbnormalClosure
				reason = err.Error()
			}
			t.mu.Lock()
			manual := t.manual
			t.mu.Unlock()
			if code != websocket.StatusNormalClosure && !manual {
				t.notifyError(fmt.Errorf("call: websocket_error: ws_closed:%d: %v", code, err))
			}
			t.finishClose(ctx, gen, code, reason, true)
			return
		}
		if h := t.hooks.onMessage; h != nil {
			h(typ, data)
		}
	}
}

// finishClose records the close, invokes the close hook and decides the
// final disposition: schedule a reconnect or settle to disconnected.
// allowRetry is false when the close stems from a synchronous connect
// failure already reported to the caller; scheduling a background redial
// there would revive a connection no active call is waiting for.
func (t *transport) finishClose(ctx context.Context, gen uint64, code websocket.StatusCode, reason string, allowRetry bool) {
	t.mu.Lock()
	if t.closed || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.gen++
	t.conn = nil
	t.lastCode = code
	t.lastReason = reason

	retry := allowRetry && !t.manual && retryableCloseCode(code) && t.attempts < maxReconnectAttempts
	var attempt int
	var delay time.Duration
	if retry {
		t.attempts++
		attempt = t.attempts
		delay = reconnectDelay(attempt)
		t.status = StatusConnecting
		t.retryTimer = time.AfterFunc(delay, func() {
			_ = t.dial(ctx, true)
		})
	} else {
		t.status = StatusDisconnected
	}
	t.mu.Unlock()

	if h := t.hooks.onClose; h != nil {
		h(code, reason)
	}
	if retry {
		t.stats.ReconnectScheduled(attempt)
		slog.Info("reconnect scheduled",
			"attempt", attempt,
			"max_attempts", maxReconnectAttempts,
			"close_code", int(code),
			"delay", delay,
		)
	} else if code != websocket.StatusNormalClosure {
		slog.Info("connection settled", "close_code", int(code), "reason", reason)
	}
}

// disconnect is the explicit, manual close path: it suppresses any retry,
// closes the active connection and settles to disconnected. The close hook
// fires here with a normal closure code; bumping the generation keeps the
// dying read loop from reporting the same close a second time.
func (t *transport) disconnect() {
	t.mu.Lock()
	t.manual = true
	t.stopRetryTimerLocked()
	conn := t.conn
	t.conn = nil
	if conn != nil {
		t.gen++
		t.lastCode = websocket.StatusNormalClosure
		t.lastReason = "call ended"
	}
	t.status = StatusDisconnected
	t.mu.Unlock()

	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "call ended")
		if h := t.hooks.onClose; h != nil {
			h(websocket.StatusNormalClosure, "call ended")
		}
	}
}

// close disposes the transport for good; no further connects are accepted.
func (t *transport) close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.disconnect()
}

// send marshals v and writes it as a text frame. Fails with ErrNotConnected
// while the transport is not connected; nothing is queued.
func (t *transport) send(ctx context.Context, v any) error {
	t.mu.Lock()
	conn := t.conn
	connected := t.status == StatusConnected
	t.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("call: marshal: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("call: send: %w", err)
	}
	return nil
}

func (t *transport) connectionStatus() (ConnectionStatus, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status, t.statusText
}

func (t *transport) lastClose() (code websocket.StatusCode, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastCode, t.lastReason
}

func (t *transport) notifyError(err error) {
	t.mu.Lock()
	t.statusText = err.Error()
	t.mu.Unlock()
	if h := t.hooks.onError; h != nil {
		h(err)
	}
}

// stopRetryTimerLocked cancels any pending reconnect timer. At most one
// timer exists at a time; every new connect clears the previous one first.
func (t *transport) stopRetryTimerLocked() {
	if t.retryTimer != nil {
		t.retryTimer.Stop()
		t.retryTimer = nil
	}
}

// retryableCloseCode classifies close codes worth retrying: transient
// server-side conditions. Normal closure is final by definition.
func retryableCloseCode(code websocket.StatusCode) bool {
	switch code {
	case websocket.StatusGoingAway,
		websocket.StatusAbnormalClosure,
		websocket.StatusInternalError,
		websocket.StatusServiceRestart,
		websocket.StatusTryAgainLater,
		websocket.StatusBadGateway:
		return true
	}
	return false
}

// reconnectDelay computes the backoff for the given 1-based attempt:
// exponential with a capped exponent plus random jitter.
func reconnectDelay(attempt int) time.Duration {
	shift := attempt - 1
	if shift > backoffMaxShift {
		shift = backoffMaxShift
	}
	return backoffBase<<shift + time.Duration(rand.Int63n(int64(backoffJitter)))
}
