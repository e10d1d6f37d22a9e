package sources

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	wav "github.com/youpy/go-wav"
)

func TestRandomRange(t *testing.T) {
	src := NewRandom(42)
	samples := make([]float32, 4096)
	src.Fill(samples)

	var negative, positive int
	for i, s := range samples {
		if s < -1 || s > 1 {
			t.Fatalf("Sample %d out of range: %v", i, s)
		}
		if s < 0 {
			negative++
		} else {
			positive++
		}
	}
	if negative == 0 || positive == 0 {
		t.Errorf("Noise not spread across range: %d negative, %d positive", negative, positive)
	}
}

func TestRandomSeedDeterministic(t *testing.T) {
	a := make([]float32, 64)
	b := make([]float32, 64)
	NewRandom(7).Fill(a)
	NewRandom(7).Fill(b)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Sample %d differs for identical seeds: %v vs %v", i, a[i], b[i])
		}
	}
}

// writeTestWAV writes 16-bit mono PCM samples to a temporary WAV file
func writeTestWAV(t *testing.T, rate uint32, values []int16) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	data := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	}

	w := wav.NewWriter(f, uint32(len(values)), 1, rate, 16)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestOpenWAVMonoToStereo(t *testing.T) {
	path := writeTestWAV(t, 96000, []int16{0, 16384, -16384, 8192})

	src, err := OpenWAV(path, 96000, 2)
	if err != nil {
		t.Fatalf("OpenWAV failed: %v", err)
	}
	if src.Len() != 8 {
		t.Fatalf("Len: got %d, want 8", src.Len())
	}

	got := make([]float32, 8)
	src.Fill(got)

	want := []float32{0, 0, 0.5, 0.5, -0.5, -0.5, 0.25, 0.25}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWAVFillLoops(t *testing.T) {
	path := writeTestWAV(t, 48000, []int16{16384, -16384})

	src, err := OpenWAV(path, 48000, 1)
	if err != nil {
		t.Fatalf("OpenWAV failed: %v", err)
	}

	got := make([]float32, 5)
	src.Fill(got)

	want := []float32{0.5, -0.5, 0.5, -0.5, 0.5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestOpenWAVErrors(t *testing.T) {
	if _, err := OpenWAV(filepath.Join(t.TempDir(), "missing.wav"), 96000, 2); err == nil {
		t.Error("Expected error for missing file")
	}

	path := writeTestWAV(t, 96000, []int16{1, 2})
	if _, err := OpenWAV(path, 96000, 3); err == nil {
		t.Error("Expected error for unsupported channel count")
	}

	if _, err := OpenWAV(path, 0, 2); err == nil {
		t.Error("Expected error for invalid target rate")
	}
}

func TestRemapChannelsEmpty(t *testing.T) {
	if got := remapChannels(nil, 2, 2); len(got) != 0 {
		t.Errorf("remapChannels(nil): got %d samples, want 0", len(got))
	}
}
