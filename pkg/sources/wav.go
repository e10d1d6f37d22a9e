package sources

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/drgolem/uacsim/pkg/types"

	wav "github.com/youpy/go-wav"
	soxr "github.com/zaf/resample"
)

// ErrEmptySource is returned when a file contains no audio samples
var ErrEmptySource = errors.New("source contains no samples")

// WAV loops over the PCM content of a WAV file, converted to the stream's
// sample rate and channel count. The file is decoded and resampled once at
// open time so Fill never touches the disk on the producer's hot path.
type WAV struct {
	fileName   string
	sampleRate int
	channels   int
	samples    []float32 // interleaved, stream channel layout
	pos        int
}

// OpenWAV decodes fileName and prepares it for a stream running at
// targetRate Hz with targetChannels channels (1 or 2).
func OpenWAV(fileName string, targetRate, targetChannels int) (*WAV, error) {
	if targetChannels < 1 || targetChannels > 2 {
		return nil, fmt.Errorf("unsupported target channel count: %d", targetChannels)
	}
	if targetRate <= 0 {
		return nil, fmt.Errorf("invalid target sample rate: %d", targetRate)
	}

	file, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer file.Close()

	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV format: %w", err)
	}

	if format.AudioFormat != wav.AudioFormatPCM {
		return nil, fmt.Errorf("unsupported WAV format: %d (only PCM supported)", format.AudioFormat)
	}

	rate := int(format.SampleRate)
	channels := int(format.NumChannels)
	bps := int(format.BitsPerSample)
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("unsupported WAV channel count: %d", channels)
	}

	pcm, err := decodePCM16(reader, channels, bps)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(fileName), ErrEmptySource)
	}

	if rate != targetRate {
		slog.Debug("Resampling WAV source",
			"file", filepath.Base(fileName),
			"from_rate", rate,
			"to_rate", targetRate)
		pcm, err = resamplePCM16(pcm, rate, targetRate, channels)
		if err != nil {
			return nil, err
		}
	}

	samples := remapChannels(pcm, channels, targetChannels)
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(fileName), ErrEmptySource)
	}

	slog.Info("WAV source opened",
		"file", filepath.Base(fileName),
		"sample_rate", rate,
		"channels", channels,
		"bits_per_sample", bps,
		"stream_samples", len(samples))

	return &WAV{
		fileName:   filepath.Base(fileName),
		sampleRate: targetRate,
		channels:   targetChannels,
		samples:    samples,
	}, nil
}

// Fill copies the next len(samples) samples, wrapping to the start of the
// file at the end.
func (w *WAV) Fill(samples []float32) {
	for filled := 0; filled < len(samples); {
		n := copy(samples[filled:], w.samples[w.pos:])
		filled += n
		w.pos += n
		if w.pos == len(w.samples) {
			w.pos = 0
		}
	}
}

// FileName returns the base name of the source file
func (w *WAV) FileName() string {
	return w.fileName
}

// Len returns the number of interleaved samples in one loop of the source
func (w *WAV) Len() int {
	return len(w.samples)
}

// decodePCM16 reads every sample of the file as 16-bit little-endian PCM
func decodePCM16(reader *wav.Reader, channels, bitsPerSample int) ([]byte, error) {
	const batch = 4096

	var out []byte
	for {
		samplesData, err := reader.ReadSamples(batch)
		for _, s := range samplesData {
			for ch := 0; ch < channels; ch++ {
				v, convErr := toInt16(s.Values[ch], bitsPerSample)
				if convErr != nil {
					return nil, convErr
				}
				out = binary.LittleEndian.AppendUint16(out, uint16(v))
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode error: %w", err)
		}
		if len(samplesData) == 0 {
			break
		}
	}
	return out, nil
}

func toInt16(value, bitsPerSample int) (int16, error) {
	switch bitsPerSample {
	case 8:
		// 8-bit WAV is unsigned
		return int16((value - 128) << 8), nil
	case 16:
		return int16(value), nil
	case 24:
		return int16(value >> 8), nil
	case 32:
		return int16(value >> 16), nil
	default:
		return 0, fmt.Errorf("unsupported bits per sample: %d", bitsPerSample)
	}
}

// resamplePCM16 resamples interleaved 16-bit audio using SoXR (high-quality resampler)
func resamplePCM16(pcm []byte, fromRate, toRate, channels int) ([]byte, error) {
	var bufResampled bytes.Buffer
	bufWriter := bufio.NewWriter(&bufResampled)

	resampler, err := soxr.New(
		bufWriter,
		float64(fromRate),
		float64(toRate),
		channels,
		soxr.I16,
		soxr.HighQ,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	if _, err := resampler.Write(pcm); err != nil {
		resampler.Close()
		return nil, fmt.Errorf("failed to resample: %w", err)
	}

	if err := resampler.Close(); err != nil {
		return nil, fmt.Errorf("failed to close resampler: %w", err)
	}

	if err := bufWriter.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush buffer: %w", err)
	}

	return bufResampled.Bytes(), nil
}

// remapChannels converts interleaved PCM16 to float32 in the target layout.
// Mono is duplicated to stereo; stereo is averaged down to mono.
func remapChannels(pcm []byte, from, to int) []float32 {
	frames := len(pcm) / (2 * from)
	out := make([]float32, 0, frames*to)

	for i := 0; i < frames; i++ {
		base := i * from * 2
		left := float32(int16(binary.LittleEndian.Uint16(pcm[base:]))) / 32768
		right := left
		if from == 2 {
			right = float32(int16(binary.LittleEndian.Uint16(pcm[base+2:]))) / 32768
		}

		switch to {
		case 1:
			out = append(out, (left+right)/2)
		default:
			out = append(out, left, right)
		}
	}
	return out
}

var _ types.SampleSource = (*WAV)(nil)
