// Package microframe describes the fixed-size payload exchanged on a USB
// isochronous endpoint every 125µs and packs float32 audio into it.
package microframe

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	// DefaultFrameSize is one high-speed USB microframe payload in bytes
	DefaultFrameSize = 384

	// DefaultAudioDataSize is 12 samples × 2 channels × 4 bytes (96kHz, 32-bit float, stereo)
	DefaultAudioDataSize = 96

	// DefaultInterval is the USB microframe period
	DefaultInterval = 125 * time.Microsecond

	// BytesPerSample is the size of one packed float32 sample
	BytesPerSample = 4
)

// Layout describes how audio is placed in a frame: AudioDataSize bytes of
// packed little-endian float32 samples at the head, zero padding up to FrameSize.
type Layout struct {
	FrameSize     int
	AudioDataSize int
}

// DefaultLayout returns the 384/96 byte layout
func DefaultLayout() Layout {
	return Layout{
		FrameSize:     DefaultFrameSize,
		AudioDataSize: DefaultAudioDataSize,
	}
}

// Validate checks that the payload fits the frame and holds whole samples
func (l Layout) Validate() error {
	if l.FrameSize <= 0 {
		return fmt.Errorf("invalid frame size: %d", l.FrameSize)
	}
	if l.AudioDataSize < 0 || l.AudioDataSize > l.FrameSize {
		return fmt.Errorf("audio data size %d exceeds frame size %d", l.AudioDataSize, l.FrameSize)
	}
	if l.AudioDataSize%BytesPerSample != 0 {
		return fmt.Errorf("audio data size %d is not a multiple of %d", l.AudioDataSize, BytesPerSample)
	}
	return nil
}

// SamplesPerFrame returns the number of float32 samples carried by one frame
func (l Layout) SamplesPerFrame() int {
	return l.AudioDataSize / BytesPerSample
}

// Pack writes samples as little-endian float32 into the head of frame and
// zero-fills the remainder. Samples that do not fit are ignored.
// Returns the number of payload bytes written.
func Pack(frame []byte, samples []float32) int {
	n := min(len(samples), len(frame)/BytesPerSample)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(frame[i*BytesPerSample:], math.Float32bits(samples[i]))
	}
	written := n * BytesPerSample
	clear(frame[written:])
	return written
}

// Unpack decodes little-endian float32 samples from frame into dst.
// Returns the number of samples decoded.
func Unpack(dst []float32, frame []byte) int {
	n := min(len(dst), len(frame)/BytesPerSample)
	for i := 0; i < n; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(frame[i*BytesPerSample:]))
	}
	return n
}

// FloatToPCM16 converts float samples in [-1, 1] to 16-bit little-endian PCM.
// Values outside the range are clipped. Returns the number of bytes written.
func FloatToPCM16(dst []byte, samples []float32) int {
	n := min(len(samples), len(dst)/2)
	for i := 0; i < n; i++ {
		s := samples[i]
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(s*math.MaxInt16)))
	}
	return n * 2
}
