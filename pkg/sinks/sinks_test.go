package sinks

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/drgolem/uacsim/pkg/microframe"

	wav "github.com/youpy/go-wav"
)

func makeFrame(value float32) []byte {
	layout := microframe.DefaultLayout()
	samples := make([]float32, layout.SamplesPerFrame())
	for i := range samples {
		samples[i] = value
	}
	frame := make([]byte, layout.FrameSize)
	microframe.Pack(frame, samples)
	return frame
}

func TestCaptureWritesWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.wav")

	c, err := NewCapture(path, microframe.DefaultLayout(), 96000, 2, 1)
	if err != nil {
		t.Fatalf("NewCapture failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		c.WriteFrame(makeFrame(0.5))
	}
	if c.Frames() != 10 {
		t.Errorf("Frames: got %d, want 10", c.Frames())
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("Second Close: got %v, want ErrSinkClosed", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open capture: %v", err)
	}
	defer f.Close()

	reader := wav.NewReader(f)
	format, err := reader.Format()
	if err != nil {
		t.Fatalf("read format: %v", err)
	}
	if format.SampleRate != 96000 || format.NumChannels != 2 || format.BitsPerSample != 16 {
		t.Errorf("Format: got %d Hz, %d ch, %d bit", format.SampleRate, format.NumChannels, format.BitsPerSample)
	}

	samples, err := reader.ReadSamples(1)
	if err != nil {
		t.Fatalf("read samples: %v", err)
	}
	if len(samples) != 1 || samples[0].Values[0] != 16383 {
		t.Errorf("First sample: got %v, want 16383", samples)
	}
}

func TestCaptureDropsBeyondLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.wav")

	// 0.2ms at 96kHz stereo is 76 bytes: room for one 48 byte frame
	c, err := NewCapture(path, microframe.DefaultLayout(), 96000, 2, 0.0002)
	if err != nil {
		t.Fatalf("NewCapture failed: %v", err)
	}

	c.WriteFrame(makeFrame(0.1))
	c.WriteFrame(makeFrame(0.1))
	c.WriteFrame(makeFrame(0.1))

	if c.Frames() != 1 {
		t.Errorf("Frames: got %d, want 1", c.Frames())
	}
	if c.Dropped() != 2 {
		t.Errorf("Dropped: got %d, want 2", c.Dropped())
	}
}

func TestNewCaptureValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.wav")

	if _, err := NewCapture(path, microframe.Layout{FrameSize: 0}, 96000, 2, 1); err == nil {
		t.Error("Expected error for invalid layout")
	}
	if _, err := NewCapture(path, microframe.DefaultLayout(), 0, 2, 1); err == nil {
		t.Error("Expected error for invalid sample rate")
	}
	if _, err := NewCapture(path, microframe.DefaultLayout(), 96000, 2, 0); err == nil {
		t.Error("Expected error for zero length")
	}
}

type countingSink struct {
	frames int
	closed int
	err    error
}

func (s *countingSink) WriteFrame([]byte) { s.frames++ }
func (s *countingSink) Close() error {
	s.closed++
	return s.err
}

func TestMultiFansOut(t *testing.T) {
	a := &countingSink{}
	b := &countingSink{err: errors.New("boom")}
	m := Multi{a, b, Discard{}}

	m.WriteFrame(make([]byte, 4))
	m.WriteFrame(make([]byte, 4))

	if a.frames != 2 || b.frames != 2 {
		t.Errorf("Frames: got %d/%d, want 2/2", a.frames, b.frames)
	}

	err := m.Close()
	if err == nil || err.Error() != "boom" {
		t.Errorf("Close: got %v, want boom", err)
	}
	if a.closed != 1 || b.closed != 1 {
		t.Errorf("Close counts: got %d/%d, want 1/1", a.closed, b.closed)
	}
}
