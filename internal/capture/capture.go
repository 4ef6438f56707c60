// Package capture implements [call.CaptureSource] on top of the miniaudio
// bindings, acquiring the platform's default input device and delivering
// mono float32 frames to the call core.
package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/acoustad/voxcall/pkg/call"
)

// DefaultDeviceRate is the capture rate requested from the device. The call
// core downsamples to the backend rate, so this only needs to be a rate the
// device actually supports.
const DefaultDeviceRate = 48000

// DeviceSource captures from the default input device. The zero value is
// usable; Start initialises the audio context lazily.
type DeviceSource struct {
	// SampleRate is the device capture rate in Hz. Zero means
	// DefaultDeviceRate.
	SampleRate uint32

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// Start opens the default capture device in mono float32 and begins
// delivering frames of cfg.FrameSize samples. Only one capture can run per
// source; a second Start fails until Stop is called.
func (d *DeviceSource) Start(_ context.Context, cfg call.CaptureConfig, frame call.FrameFunc) error {
	frameSize := cfg.FrameSize
	if frameSize <= 0 {
		frameSize = call.DefaultFrameSize
	}
	rate := d.SampleRate
	if rate == 0 {
		rate = DefaultDeviceRate
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		return fmt.Errorf("capture: device already started")
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		slog.Debug("audio context", "msg", strings.TrimSpace(msg))
	})
	if err != nil {
		return fmt.Errorf("%w: init context: %v", call.ErrCaptureUnavailable, err)
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatF32
	devCfg.Capture.Channels = 1
	devCfg.SampleRate = rate
	if runtime.GOOS == "linux" {
		devCfg.Alsa.NoMMap = 1
	}

	// Device callbacks deliver arbitrary chunk sizes; accumulate into
	// fixed-size frames before handing off.
	buf := make([]float32, 0, frameSize*2)
	onRecv := func(_, input []byte, frameCount uint32) {
		buf = append(buf, decodeF32LE(input, int(frameCount))...)
		for len(buf) >= frameSize {
			out := make([]float32, frameSize)
			copy(out, buf[:frameSize])
			buf = buf[frameSize:]
			frame(out, int(rate))
		}
	}

	device, err := malgo.InitDevice(mctx.Context, devCfg, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return classifyDeviceErr("open", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return classifyDeviceErr("start", err)
	}

	d.ctx = mctx
	d.device = device
	slog.Info("capture device started", "sample_rate", rate, "frame_size", frameSize)
	return nil
}

// Stop releases the device and audio context. Safe to call at any time,
// including before Start or twice in a row.
func (d *DeviceSource) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}
	if d.ctx != nil {
		err := d.ctx.Uninit()
		d.ctx.Free()
		d.ctx = nil
		if err != nil {
			return fmt.Errorf("capture: release context: %w", err)
		}
	}
	return nil
}

// classifyDeviceErr maps a device failure onto the call core's capture error
// classes. The bindings don't expose a structured permission error, so the
// message is inspected.
func classifyDeviceErr(op string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "access denied") || strings.Contains(msg, "permission") {
		return fmt.Errorf("%w: %s device: %v", call.ErrCapturePermission, op, err)
	}
	return fmt.Errorf("%w: %s device: %v", call.ErrCaptureUnavailable, op, err)
}

// decodeF32LE interprets the device callback payload as little-endian
// float32 mono samples.
func decodeF32LE(input []byte, frameCount int) []float32 {
	n := frameCount
	if max := len(input) / 4; n > max {
		n = max
	}
	samples := make([]float32, n)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(input[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}
