package call

import "errors"

// Sentinel errors for the failure classes a call can hit. Wrapped errors
// carry the underlying cause; match with errors.Is.
var (
	// ErrConfigInvalid means the session configuration failed validation
	// before any network attempt was made.
	ErrConfigInvalid = errors.New("call: config_invalid")

	// ErrMissingParameters means the transport URL could not be built from
	// the configured parameters.
	ErrMissingParameters = errors.New("call: missing_parameters")

	// ErrCaptureUnavailable means the platform has no usable audio capture
	// device.
	ErrCaptureUnavailable = errors.New("call: capture_unavailable")

	// ErrCapturePermission means access to the capture device was denied.
	ErrCapturePermission = errors.New("call: capture_permission_denied")

	// ErrNotConnected means an outbound send was attempted while the
	// transport was not in the connected state.
	ErrNotConnected = errors.New("call: not_connected")

	// ErrSessionClosed means the session has been disposed and can no
	// longer start calls.
	ErrSessionClosed = errors.New("call: session_closed")
)
