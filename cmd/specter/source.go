package main

import (
	"context"
	"encoding/binary"
	"io"
	"os"

	"github.com/AltairaLabs/specter/audio"
)

// sampleRate of raw PCM read from stdin for the listen command.
var stdinRate int

// stdinSource adapts raw signed 16-bit little-endian mono PCM on stdin
// into an audio source, so the capture pipeline can be driven by
// arbitrary recorders (arecord, sox, ffmpeg).
type stdinSource struct {
	frames chan audio.Frame
	done   chan struct{}
}

func newStdinSource(r io.Reader, rate int) *stdinSource {
	s := &stdinSource{
		frames: make(chan audio.Frame, 8),
		done:   make(chan struct{}),
	}
	go s.read(r, rate)
	return s
}

func (s *stdinSource) read(r io.Reader, rate int) {
	defer close(s.frames)

	buf := make([]byte, 4096)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			samples := make([]float32, n/2)
			for i := range samples {
				v := int16(binary.LittleEndian.Uint16(buf[i*2:])) //nolint:gosec // PCM16 decoding
				samples[i] = float32(v) / 32768
			}
			select {
			case s.frames <- audio.Frame{Channels: [][]float32{samples}, SampleRate: rate}:
			case <-s.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *stdinSource) Frames() <-chan audio.Frame { return s.frames }

func (s *stdinSource) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}

// stdinAcquirer returns an acquirer reading PCM from stdin, or nil when
// stdin is a terminal (no audio piped in).
func stdinAcquirer() audio.Acquirer {
	return func(context.Context) (audio.Source, error) {
		rate := stdinRate
		if rate <= 0 {
			rate = audio.TargetSampleRate
		}
		return newStdinSource(os.Stdin, rate), nil
	}
}
