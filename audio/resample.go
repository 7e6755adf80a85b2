package audio

import "encoding/binary"

// Standard sample rates used by the pipeline.
const (
	// TargetSampleRate is the fixed output rate of the resampler.
	// Realtime transcription backends expect 24kHz 16-bit PCM mono.
	TargetSampleRate = 24000
)

// Downmix averages a multi-channel sample buffer into a mono buffer.
// All channels must have the same length; per-sample values are averaged
// across channels. A single-channel input is returned unchanged.
func Downmix(channels [][]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	if len(channels) == 1 {
		return channels[0]
	}

	n := len(channels[0])
	mono := make([]float32, n)
	for _, ch := range channels {
		for i := 0; i < n && i < len(ch); i++ {
			mono[i] += ch[i] / float32(len(channels))
		}
	}
	return mono
}

// Resample converts a mono float sample buffer from inRate to outRate using
// linear interpolation between neighboring input samples at fractional read
// positions. When inRate equals outRate the input buffer is returned
// unchanged (identity fast path, no copy).
//
// The output length is floor(len(buf) * outRate / inRate).
func Resample(buf []float32, inRate, outRate int) []float32 {
	if inRate == outRate {
		return buf
	}
	if len(buf) == 0 || inRate <= 0 || outRate <= 0 {
		return nil
	}

	ratio := float64(inRate) / float64(outRate)
	newLen := int(float64(len(buf)) / ratio)
	out := make([]float32, newLen)

	for i := 0; i < newLen; i++ {
		pos := float64(i) * ratio
		i0 := int(pos)
		i1 := i0 + 1
		if i1 > len(buf)-1 {
			i1 = len(buf) - 1
		}
		frac := float32(pos - float64(i0))

		out[i] = buf[i0]*(1-frac) + buf[i1]*frac
	}

	return out
}

// FloatToPCM16 converts floating-point samples in [-1, 1] to 16-bit signed
// integers with hard clamping at the boundaries. Scaling uses 0x8000 for
// negative values and 0x7FFF for positive values so the full negative range
// is preserved; fractional results truncate toward zero.
func FloatToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		if s < 0 {
			out[i] = int16(s * 0x8000)
		} else {
			out[i] = int16(s * 0x7FFF)
		}
	}
	return out
}

// EncodePCM16 serializes 16-bit samples as little-endian bytes, the wire
// format expected by the transcription backend.
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s)) //nolint:gosec // PCM16 byte encoding
	}
	return out
}
