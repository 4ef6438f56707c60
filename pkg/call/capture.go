package call

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/acoustad/voxcall/pkg/pcm"
)

// Default capture parameters, matching the realtime backend's expectations.
const (
	// DefaultFrameSize is the number of samples delivered per capture
	// callback.
	DefaultFrameSize = 4096

	// DefaultSampleRate is the PCM16 rate the backend consumes.
	DefaultSampleRate = 24000
)

// CaptureConfig parameterises a capture source.
type CaptureConfig struct {
	// FrameSize is the number of samples per frame callback. Zero means
	// DefaultFrameSize.
	FrameSize int
}

// FrameFunc receives one frame of float samples in [-1, 1] together with
// the device's native sample rate. It is invoked from the source's capture
// goroutine and must not block.
type FrameFunc func(samples []float32, sampleRate int)

// CaptureSource abstracts the platform audio input device so the session
// never touches platform globals and tests can inject synthetic frames.
//
// Start acquires the default input device at its native rate and begins
// delivering frames. It returns ErrCaptureUnavailable when the platform has
// no capture capability and ErrCapturePermission when device access is
// denied. Stop releases the device; it must be safe to call at any time,
// including before Start, and must not panic.
type CaptureSource interface {
	Start(ctx context.Context, cfg CaptureConfig, frame FrameFunc) error
	Stop() error
}

// captureController wires a CaptureSource to the PCM encoder and the
// outbound audio sink. It is the sole owner of MicStatus. The capture graph
// is deliberately never connected to any playback destination; monitoring
// the mic would feed echo back into the call.
type captureController struct {
	source CaptureSource
	sink   func(pcm []byte)

	// muted is read on every frame callback; keeping it atomic avoids
	// taking the controller lock on the audio path.
	muted atomic.Bool

	mu         sync.Mutex
	status     MicStatus
	outputRate int
}

// start acquires the device and begins forwarding encoded frames.
// Idempotent: when capture is already running it only clears the muted flag.
// On failure the status stays MicOff and the source error is returned
// unwrapped so callers can distinguish the capture error classes.
func (c *captureController) start(ctx context.Context, frameSize, outputRate int) error {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	if outputRate <= 0 {
		outputRate = DefaultSampleRate
	}

	c.mu.Lock()
	if c.status != MicOff {
		c.status = MicOn
		c.mu.Unlock()
		c.muted.Store(false)
		return nil
	}
	c.outputRate = outputRate
	c.mu.Unlock()

	if err := c.source.Start(ctx, CaptureConfig{FrameSize: frameSize}, c.onFrame); err != nil {
		return err
	}

	c.muted.Store(false)
	c.mu.Lock()
	c.status = MicOn
	c.mu.Unlock()
	return nil
}

// onFrame is the per-frame capture callback: discard when muted, otherwise
// encode to PCM16 at the configured output rate and hand off to the sink.
func (c *captureController) onFrame(samples []float32, sampleRate int) {
	if c.muted.Load() {
		return
	}
	c.mu.Lock()
	outputRate := c.outputRate
	running := c.status != MicOff
	c.mu.Unlock()
	if !running || c.sink == nil {
		return
	}

	buf := pcm.EncodePCM16(samples, sampleRate, outputRate)
	if len(buf) > 0 {
		c.sink(buf)
	}
}

// stop releases the capture graph and resets the mic to off. Safe to call
// in any state; release steps are best-effort and never panic outward.
func (c *captureController) stop() {
	c.mu.Lock()
	wasRunning := c.status != MicOff
	c.status = MicOff
	c.mu.Unlock()
	c.muted.Store(false)

	if err := c.source.Stop(); err != nil && wasRunning {
		slog.Warn("capture stop", "err", err)
	}
}

// mute pauses forwarding. No-op unless the mic is on.
func (c *captureController) mute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != MicOn {
		return
	}
	c.status = MicMuted
	c.muted.Store(true)
}

// unmute resumes forwarding. No-op unless the mic is muted.
func (c *captureController) unmute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != MicMuted {
		return
	}
	c.status = MicOn
	c.muted.Store(false)
}

func (c *captureController) micStatus() MicStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}
