// Package monitor plays the audio payload of consumed microframes through a
// PortAudio output device, so a simulated stream can be listened to.
package monitor

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drgolem/uacsim/pkg/microframe"
	"github.com/drgolem/uacsim/pkg/types"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/drgolem/ringbuffer"
)

// DefaultBufferBytes holds about 170ms of 96kHz stereo 16-bit audio
const DefaultBufferBytes = 64 * 1024

// Status is a snapshot of the monitor's progress
type Status struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
	WrittenFrames   uint64
	DroppedFrames   uint64
	PlayedSamples   uint64
	BufferedBytes   uint64
	ElapsedTime     time.Duration
}

// Monitor is a FrameSink feeding a PortAudio callback stream.
//
// Thread Safety Model:
//   - WriteFrame is called from the consumer goroutine (producer side of the ring)
//   - the PortAudio C thread reads the ring in audioCallback
//   - WriteFrame never blocks: a frame that does not fit is dropped
type Monitor struct {
	ringbuf         *ringbuffer.RingBuffer
	stream          *portaudio.PaStream
	layout          microframe.Layout
	deviceIndex     int
	framesPerBuffer int
	sampleRate      int
	channels        int

	scratch []float32
	pcm     []byte

	mu        sync.Mutex
	started   bool
	startTime time.Time

	writtenFrames atomic.Uint64
	droppedFrames atomic.Uint64
	playedSamples atomic.Uint64
}

// New creates a monitor for frames in layout, played as 16-bit PCM.
// PortAudio must be initialized before Start is called.
func New(deviceIdx, framesPerBuffer, sampleRate, channels int, layout microframe.Layout, bufferBytes uint64) (*Monitor, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 || channels <= 0 || framesPerBuffer <= 0 {
		return nil, fmt.Errorf("invalid monitor format: %d Hz, %d channels, %d frames per buffer",
			sampleRate, channels, framesPerBuffer)
	}
	if bufferBytes == 0 {
		bufferBytes = DefaultBufferBytes
	}

	samples := layout.SamplesPerFrame()
	return &Monitor{
		ringbuf:         ringbuffer.New(bufferBytes),
		layout:          layout,
		deviceIndex:     deviceIdx,
		framesPerBuffer: framesPerBuffer,
		sampleRate:      sampleRate,
		channels:        channels,
		scratch:         make([]float32, samples),
		pcm:             make([]byte, samples*2),
	}, nil
}

// Start opens and starts the PortAudio output stream
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}

	m.stream = &portaudio.PaStream{
		OutputParameters: &portaudio.PaStreamParameters{
			DeviceIndex:  m.deviceIndex,
			ChannelCount: m.channels,
			SampleFormat: portaudio.SampleFmtInt16,
		},
		SampleRate: float64(m.sampleRate),
	}

	if err := m.stream.OpenCallback(m.framesPerBuffer, m.audioCallback); err != nil {
		m.stream = nil
		return fmt.Errorf("failed to open stream with callback: %w", err)
	}
	if err := m.stream.StartStream(); err != nil {
		m.stream.CloseCallback()
		m.stream = nil
		return fmt.Errorf("failed to start stream: %w", err)
	}

	m.started = true
	m.startTime = time.Now()
	slog.Info("Monitor started",
		"device_index", m.deviceIndex,
		"sample_rate", m.sampleRate,
		"channels", m.channels,
		"frames_per_buffer", m.framesPerBuffer)
	return nil
}

// WriteFrame converts the frame payload to 16-bit PCM and queues it for playback
func (m *Monitor) WriteFrame(frame []byte) {
	n := microframe.Unpack(m.scratch, frame[:min(len(frame), m.layout.AudioDataSize)])
	bytes := microframe.FloatToPCM16(m.pcm, m.scratch[:n])

	if _, err := m.ringbuf.Write(m.pcm[:bytes]); err != nil {
		m.droppedFrames.Add(1)
		return
	}
	m.writtenFrames.Add(1)
}

// audioCallback runs on the PortAudio thread. It must not block or allocate;
// missing audio is replaced by silence.
func (m *Monitor) audioCallback(
	input, output []byte,
	frameCount uint,
	timeInfo *portaudio.StreamCallbackTimeInfo,
	statusFlags portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {
	bytesPerFrame := m.channels * 2
	bytesNeeded := int(frameCount) * bytesPerFrame

	n, _ := m.ringbuf.Read(output[:bytesNeeded])
	if n < bytesNeeded {
		clear(output[n:bytesNeeded])
	}

	m.playedSamples.Add(uint64(n / bytesPerFrame))
	return portaudio.Continue
}

// Status returns the current monitor status
func (m *Monitor) Status() Status {
	m.mu.Lock()
	startTime := m.startTime
	m.mu.Unlock()

	var elapsed time.Duration
	if !startTime.IsZero() {
		elapsed = time.Since(startTime)
	}

	return Status{
		SampleRate:      m.sampleRate,
		Channels:        m.channels,
		FramesPerBuffer: m.framesPerBuffer,
		WrittenFrames:   m.writtenFrames.Load(),
		DroppedFrames:   m.droppedFrames.Load(),
		PlayedSamples:   m.playedSamples.Load(),
		BufferedBytes:   m.ringbuf.AvailableRead(),
		ElapsedTime:     elapsed,
	}
}

// Close stops and closes the PortAudio stream. Safe to call multiple times
// and on a monitor that was never started.
func (m *Monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false

	if err := m.stream.StopStream(); err != nil {
		slog.Warn("Failed to stop stream", "error", err)
	}
	if err := m.stream.CloseCallback(); err != nil {
		slog.Warn("Failed to close stream", "error", err)
	}
	m.stream = nil

	slog.Info("Monitor stopped",
		"written_frames", m.writtenFrames.Load(),
		"dropped_frames", m.droppedFrames.Load(),
		"played_samples", m.playedSamples.Load())
	return nil
}

var _ types.FrameSink = (*Monitor)(nil)
