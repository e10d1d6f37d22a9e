package monitor

import (
	"encoding/binary"
	"testing"

	"github.com/drgolem/uacsim/pkg/microframe"

	"github.com/drgolem/go-portaudio/portaudio"
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

func TestCallbackPlaysQueuedFrames(t *testing.T) {
	m, err := New(0, 256, 96000, 2, microframe.DefaultLayout(), 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	m.WriteFrame(makeFrame(0.5))
	m.WriteFrame(makeFrame(0.5))

	// 2 frames × 24 samples × 2 bytes = 96 bytes = 24 stereo frames
	output := make([]byte, 30*4)
	for i := range output {
		output[i] = 0xff
	}

	var flags portaudio.StreamCallbackFlags
	result := m.audioCallback(nil, output, 30, nil, flags)
	if result != portaudio.Continue {
		t.Errorf("Callback result: got %v, want Continue", result)
	}

	for i := 0; i < 96; i += 2 {
		if v := int16(binary.LittleEndian.Uint16(output[i:])); v != 16383 {
			t.Fatalf("Sample at byte %d: got %d, want 16383", i, v)
		}
	}
	for i, b := range output[96:] {
		if b != 0 {
			t.Fatalf("Silence byte %d: got %d, want 0", 96+i, b)
		}
	}

	st := m.Status()
	if st.WrittenFrames != 2 || st.PlayedSamples != 24 || st.BufferedBytes != 0 {
		t.Errorf("Status: got %+v", st)
	}
}

func TestWriteFrameDropsWhenFull(t *testing.T) {
	m, err := New(0, 256, 96000, 2, microframe.DefaultLayout(), 64)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	m.WriteFrame(makeFrame(0.1))
	m.WriteFrame(makeFrame(0.1))

	st := m.Status()
	if st.WrittenFrames != 1 || st.DroppedFrames != 1 {
		t.Errorf("Written/dropped: got %d/%d, want 1/1", st.WrittenFrames, st.DroppedFrames)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(0, 256, 0, 2, microframe.DefaultLayout(), 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
	if _, err := New(0, 0, 96000, 2, microframe.DefaultLayout(), 0); err == nil {
		t.Error("Expected error for zero frames per buffer")
	}
	if _, err := New(0, 256, 96000, 2, microframe.Layout{FrameSize: 4, AudioDataSize: 8}, 0); err == nil {
		t.Error("Expected error for invalid layout")
	}
}

func TestCloseNeverStarted(t *testing.T) {
	m, err := New(0, 256, 96000, 2, microframe.DefaultLayout(), 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close: got %v, want nil", err)
	}
}
