package microframe

import (
	"encoding/binary"
	"testing"
)

func TestDefaultLayout(t *testing.T) {
	l := DefaultLayout()
	if err := l.Validate(); err != nil {
		t.Fatalf("Default layout invalid: %v", err)
	}
	if l.SamplesPerFrame() != 24 {
		t.Errorf("SamplesPerFrame: got %d, want 24", l.SamplesPerFrame())
	}
}

func TestLayoutValidate(t *testing.T) {
	tests := []struct {
		layout  Layout
		wantErr bool
	}{
		{Layout{384, 96}, false},
		{Layout{384, 384}, false},
		{Layout{384, 0}, false},
		{Layout{0, 0}, true},
		{Layout{384, 400}, true},
		{Layout{384, 97}, true},
		{Layout{384, -4}, true},
	}

	for _, tt := range tests {
		err := tt.layout.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v): got error %v, wantErr %v", tt.layout, err, tt.wantErr)
		}
	}
}

func TestPackZeroPadsFrame(t *testing.T) {
	frame := make([]byte, DefaultFrameSize)
	for i := range frame {
		frame[i] = 0xFF
	}

	samples := make([]float32, 24)
	for i := range samples {
		samples[i] = float32(i) / 24
	}

	written := Pack(frame, samples)
	if written != DefaultAudioDataSize {
		t.Fatalf("Pack: wrote %d bytes, want %d", written, DefaultAudioDataSize)
	}

	for i := written; i < len(frame); i++ {
		if frame[i] != 0 {
			t.Fatalf("Padding byte %d: got 0x%02X, want 0", i, frame[i])
		}
	}

	decoded := make([]float32, 24)
	if n := Unpack(decoded, frame[:written]); n != 24 {
		t.Fatalf("Unpack: got %d samples, want 24", n)
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Errorf("Sample %d: got %v, want %v", i, decoded[i], samples[i])
		}
	}
}

func TestPackTruncatesToFrame(t *testing.T) {
	frame := make([]byte, 8)
	written := Pack(frame, []float32{0.1, 0.2, 0.3})
	if written != 8 {
		t.Errorf("Pack into short frame: wrote %d bytes, want 8", written)
	}
}

func TestFloatToPCM16(t *testing.T) {
	samples := []float32{0, 1, -1, 2, -2, 0.5}
	dst := make([]byte, len(samples)*2)

	if n := FloatToPCM16(dst, samples); n != len(dst) {
		t.Fatalf("FloatToPCM16: wrote %d bytes, want %d", n, len(dst))
	}

	want := []int16{0, 32767, -32767, 32767, -32767, 16383}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(dst[i*2:]))
		if got != w {
			t.Errorf("Sample %d: got %d, want %d", i, got, w)
		}
	}
}
