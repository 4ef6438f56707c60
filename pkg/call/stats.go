package call

import "time"

// StatsRecorder receives counters and timings from the call core. The
// session never depends on a metrics SDK directly; production code plugs in
// an OpenTelemetry-backed implementation while tests and minimal callers use
// the default no-op.
type StatsRecorder interface {
	// FrameSent is invoked for every outbound audio frame, with its encoded
	// size in bytes.
	FrameSent(bytes int)

	// EventReceived is invoked for every routed inbound event, with its
	// wire kind.
	EventReceived(kind string)

	// ReconnectScheduled is invoked when a reconnect attempt is scheduled,
	// with the 1-based attempt number.
	ReconnectScheduled(attempt int)

	// CallStarted and CallEnded bracket one call lifetime.
	CallStarted()
	CallEnded(duration time.Duration)
}

// nopStats is the default StatsRecorder.
type nopStats struct{}

func (nopStats) FrameSent(int)           {}
func (nopStats) EventReceived(string)    {}
func (nopStats) ReconnectScheduled(int)  {}
func (nopStats) CallStarted()            {}
func (nopStats) CallEnded(time.Duration) {}
