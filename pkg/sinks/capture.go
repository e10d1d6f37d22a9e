// Package sinks provides FrameSink implementations for frames delivered by
// the consumer.
package sinks

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/drgolem/uacsim/pkg/microframe"
	"github.com/drgolem/uacsim/pkg/types"

	wav "github.com/youpy/go-wav"
)

// ErrSinkClosed is returned when closing a sink twice
var ErrSinkClosed = errors.New("sink already closed")

// Capture records the audio payload of consumed frames as 16-bit PCM and
// writes it to a WAV file on Close.
//
// The PCM buffer is allocated up front for maxSeconds of audio so WriteFrame
// never allocates; frames beyond that limit are counted as dropped.
// WriteFrame must only be called by the consumer goroutine.
type Capture struct {
	fileName   string
	layout     microframe.Layout
	sampleRate int
	channels   int

	pcm     []byte
	scratch []float32

	frames  atomic.Uint64
	dropped atomic.Uint64
	closed  bool
}

// NewCapture prepares a WAV capture of at most maxSeconds of audio.
func NewCapture(fileName string, layout microframe.Layout, sampleRate, channels int, maxSeconds float64) (*Capture, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid capture format: %d Hz, %d channels", sampleRate, channels)
	}
	if maxSeconds <= 0 {
		return nil, fmt.Errorf("invalid capture length: %.3fs", maxSeconds)
	}

	maxBytes := int(maxSeconds*float64(sampleRate)) * channels * 2

	return &Capture{
		fileName:   fileName,
		layout:     layout,
		sampleRate: sampleRate,
		channels:   channels,
		pcm:        make([]byte, 0, maxBytes),
		scratch:    make([]float32, layout.SamplesPerFrame()),
	}, nil
}

// WriteFrame converts the frame payload to PCM and appends it
func (c *Capture) WriteFrame(frame []byte) {
	n := microframe.Unpack(c.scratch, frame[:min(len(frame), c.layout.AudioDataSize)])
	need := n * 2

	if len(c.pcm)+need > cap(c.pcm) {
		c.dropped.Add(1)
		return
	}

	start := len(c.pcm)
	c.pcm = c.pcm[:start+need]
	microframe.FloatToPCM16(c.pcm[start:], c.scratch[:n])
	c.frames.Add(1)
}

// Frames returns the number of captured frames
func (c *Capture) Frames() uint64 {
	return c.frames.Load()
}

// Dropped returns the number of frames that did not fit the capture buffer
func (c *Capture) Dropped() uint64 {
	return c.dropped.Load()
}

// Close writes the captured audio to the WAV file.
// The consumer must be stopped before Close is called.
func (c *Capture) Close() error {
	if c.closed {
		return ErrSinkClosed
	}
	c.closed = true

	fOut, err := os.OpenFile(c.fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create capture file: %w", err)
	}
	defer fOut.Close()

	numSamples := uint32(len(c.pcm) / (c.channels * 2))
	wavWriter := wav.NewWriter(fOut, numSamples, uint16(c.channels), uint32(c.sampleRate), 16)

	if _, err := wavWriter.Write(c.pcm); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}

	slog.Info("Capture written",
		"file", filepath.Base(c.fileName),
		"frames", c.frames.Load(),
		"dropped", c.dropped.Load(),
		"samples", numSamples)
	return nil
}

var _ types.FrameSink = (*Capture)(nil)
