package usbaudio

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/drgolem/uacsim/pkg/microframe"
	"github.com/drgolem/uacsim/pkg/sources"
	"github.com/drgolem/uacsim/pkg/types"
)

// Producer writes microframes into the shared buffer as fast as it can.
// A write attempt that finds no free space is an overrun; the frame is
// dropped and the loop continues.
type Producer struct {
	provider types.BufferProvider
	layout   microframe.Layout
	source   types.SampleSource
	logger   *slog.Logger

	mu      sync.Mutex // serializes Start/Stop
	running atomic.Bool
	wg      sync.WaitGroup

	framesProduced atomic.Uint64
	overrunCount   atomic.Uint64
	writeAttempts  atomic.Uint64
}

// NewProducer creates a producer writing to provider's buffer.
// A nil or uninitialized provider is logged; Start will then fail.
func NewProducer(provider types.BufferProvider, opts ...Option) *Producer {
	o := buildOptions(opts)
	if o.source == nil {
		o.source = sources.NewRandom(0)
	}

	p := &Producer{
		provider: provider,
		layout:   o.layout,
		source:   o.source,
		logger:   o.logger,
	}
	if !validProvider(provider) {
		p.logger.Error("Producer created without a valid buffer controller")
	}
	return p
}

// Start launches the producer loop. Calling Start on a running producer is a no-op.
func (p *Producer) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return nil
	}
	if !validProvider(p.provider) {
		p.logger.Error("Cannot start producer", "error", ErrNoBuffer)
		return ErrNoBuffer
	}
	if err := p.layout.Validate(); err != nil {
		return fmt.Errorf("producer: %w", err)
	}
	if err := checkCapacity(p.provider, p.layout); err != nil {
		p.logger.Error("Cannot start producer", "error", err)
		return err
	}

	buf := p.provider.Buffer()
	p.running.Store(true)
	p.wg.Add(1)
	go p.producerLoop(buf)

	p.logger.Info("Producer started",
		"frame_size", p.layout.FrameSize,
		"audio_data_size", p.layout.AudioDataSize)
	return nil
}

// Stop signals the loop and waits for it to exit
func (p *Producer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running.Load() {
		return
	}
	p.running.Store(false)
	p.wg.Wait()

	p.logger.Info("Producer stopped",
		"frames_produced", p.framesProduced.Load(),
		"overruns", p.overrunCount.Load())
}

func (p *Producer) producerLoop(buf types.ByteChannel) {
	defer p.wg.Done()

	samples := make([]float32, p.layout.SamplesPerFrame())
	frame := make([]byte, p.layout.FrameSize)
	reportedFull := false

	for p.running.Load() {
		p.source.Fill(samples)
		microframe.Pack(frame, samples)

		attempt := p.writeAttempts.Add(1)

		region, err := buf.AcquireWrite(len(frame))
		if err != nil {
			overruns := p.overrunCount.Add(1)
			if !reportedFull {
				reportedFull = true
				p.logger.Debug("Buffer full, dropping frames",
					"frames_produced", p.framesProduced.Load())
			}
			if attempt%1000 == 0 {
				p.logger.Debug("Producer overrun",
					"attempt", attempt,
					"overruns", overruns)
			}
			continue
		}

		n := copy(region, frame)
		if err := buf.CommitWrite(n); err != nil {
			p.logger.Error("Commit write failed", "error", err)
			p.overrunCount.Add(1)
			continue
		}
		p.framesProduced.Add(1)
	}
}

// IsRunning reports whether the loop is active
func (p *Producer) IsRunning() bool {
	return p.running.Load()
}

// FramesProduced returns the number of frames placed in the buffer
func (p *Producer) FramesProduced() uint64 {
	return p.framesProduced.Load()
}

// OverrunCount returns the number of write attempts that found the buffer full
func (p *Producer) OverrunCount() uint64 {
	return p.overrunCount.Load()
}

// WriteAttempts returns the number of frames generated.
// Once the producer is stopped it equals FramesProduced + OverrunCount.
func (p *Producer) WriteAttempts() uint64 {
	return p.writeAttempts.Load()
}

var _ types.FrameProducer = (*Producer)(nil)
