package call

// ConnectionStatus is the lifecycle state of the transport connection.
// It is owned by the session's transport and mutated only by connection
// lifecycle events and explicit start/end calls.
type ConnectionStatus int

const (
	// StatusIdle means no connection attempt has been made yet.
	StatusIdle ConnectionStatus = iota

	// StatusConnecting means a dial or scheduled reconnect is in flight.
	StatusConnecting

	// StatusConnected means the socket is open and writable.
	StatusConnected

	// StatusError means the last attempt failed before a final disposition.
	StatusError

	// StatusDisconnected means the connection ended and no retry is pending.
	StatusDisconnected
)

// String returns the wire-style lowercase name of the status.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// MicStatus is the microphone axis of the session state machine. It is
// independent of ConnectionStatus: a call can be connected with the mic off
// or muted.
type MicStatus int

const (
	// MicOff means no capture graph is held.
	MicOff MicStatus = iota

	// MicOn means capture is running and frames are forwarded.
	MicOn

	// MicMuted means capture is running but frames are discarded.
	MicMuted
)

// String returns the lowercase name of the mic status.
func (s MicStatus) String() string {
	switch s {
	case MicOff:
		return "off"
	case MicOn:
		return "on"
	case MicMuted:
		return "muted"
	default:
		return "unknown"
	}
}
