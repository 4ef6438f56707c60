// Package pcm converts captured floating-point audio samples into the 16-bit
// little-endian PCM format used on the realtime wire.
//
// The encoder optionally downsamples with a box-filter decimator: each output
// sample is the arithmetic mean of the input samples falling into its input
// window. That is deliberately not a high-quality resampler — it is
// deterministic, allocation-light, and cheap enough to run on every capture
// callback.
package pcm

// EncodePCM16 converts samples in [-1, 1] to 16-bit little-endian signed PCM.
//
// When inputRate equals outputRate every sample is clamped and scaled
// (negative values by 32768, non-negative by 32767) with no resampling.
// When the rates differ, floor(len(samples) / (inputRate/outputRate)) output
// samples are produced by averaging each input window. An empty input yields
// an empty buffer; malformed rates fall back to the no-resample path.
func EncodePCM16(samples []float32, inputRate, outputRate int) []byte {
	if len(samples) == 0 {
		return nil
	}
	if inputRate == outputRate || inputRate <= 0 || outputRate <= 0 {
		out := make([]byte, len(samples)*2)
		for i, s := range samples {
			putSample(out[i*2:], s)
		}
		return out
	}

	ratio := float64(inputRate) / float64(outputRate)
	n := int(float64(len(samples)) / ratio)
	if n == 0 {
		return nil
	}

	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		start := int(float64(i) * ratio)
		end := int(float64(i)*ratio + ratio)
		if end > len(samples) {
			end = len(samples)
		}

		var v float32
		if end > start {
			var sum float64
			for _, s := range samples[start:end] {
				sum += float64(s)
			}
			v = float32(sum / float64(end-start))
		} else if start < len(samples) {
			// Window collapsed to nothing (ratio < 1 rounding); take the
			// sample at the window start.
			v = samples[start]
		}
		putSample(out[i*2:], v)
	}
	return out
}

// DecodePCM16 converts 16-bit little-endian PCM back to float samples using
// the inverse of the EncodePCM16 scale factors. A trailing odd byte is
// ignored.
func DecodePCM16(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		s := int16(data[i*2]) | int16(data[i*2+1])<<8
		if s < 0 {
			out[i] = float32(s) / 32768
		} else {
			out[i] = float32(s) / 32767
		}
	}
	return out
}

// putSample clamps s to [-1, 1], scales it to int16 range and writes it as
// two little-endian bytes. Asymmetric scaling keeps -1 and +1 exactly
// representable.
func putSample(dst []byte, s float32) {
	if s < -1 {
		s = -1
	} else if s > 1 {
		s = 1
	}
	var v int16
	if s < 0 {
		v = int16(s * 32768)
	} else {
		v = int16(s * 32767)
	}
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
}
