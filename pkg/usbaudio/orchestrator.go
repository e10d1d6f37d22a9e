// Package usbaudio simulates a USB Audio Class isochronous OUT stream: a
// producer fills a shared ring buffer as fast as it can while a consumer
// drains exactly one microframe every 125µs, counting overruns and underruns.
package usbaudio

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/drgolem/uacsim/pkg/types"
)

// Orchestrator owns one producer/consumer pair bound to a shared buffer
type Orchestrator struct {
	id       string
	provider types.BufferProvider
	producer types.FrameProducer
	consumer types.FrameConsumer
	logger   *slog.Logger
}

// New builds an orchestrator for ctrl. When ctrl is nil, uninitialized or
// not a whole number of frames long, the error is logged and the orchestrator is left without a producer and
// consumer; StartStreaming then returns ErrNotReady.
func New(ctrl types.BufferProvider, opts ...Option) *Orchestrator {
	o := buildOptions(opts)
	if o.streamID == "" {
		o.streamID = uuid.NewString()
	}

	logger := o.logger.With("stream_id", o.streamID)
	orch := &Orchestrator{
		id:       o.streamID,
		provider: ctrl,
		logger:   logger,
	}

	if !validProvider(ctrl) {
		logger.Error("Invalid or uninitialized buffer controller")
		return orch
	}
	if err := checkCapacity(ctrl, o.layout); err != nil {
		logger.Error("Buffer controller rejected", "error", err)
		return orch
	}

	opts = append(opts[:len(opts):len(opts)], WithLogger(logger))
	orch.producer = NewProducer(ctrl, opts...)
	orch.consumer = NewConsumer(ctrl, opts...)

	logger.Info("Stream ready",
		"frame_size", o.layout.FrameSize,
		"audio_data_size", o.layout.AudioDataSize,
		"interval", o.interval,
		"capacity_bytes", ctrl.Capacity(),
		"capacity_frames", ctrl.Capacity()/o.layout.FrameSize)
	return orch
}

// ID returns the stream ID
func (o *Orchestrator) ID() string {
	return o.id
}

// StartStreaming starts the consumer, then the producer.
// If the producer fails to start the consumer is stopped again.
func (o *Orchestrator) StartStreaming() error {
	if o.producer == nil || o.consumer == nil {
		o.logger.Error("Cannot start streaming", "error", ErrNotReady)
		return ErrNotReady
	}

	if err := o.consumer.Start(); err != nil {
		return err
	}
	if err := o.producer.Start(); err != nil {
		o.consumer.Stop()
		return err
	}

	o.logger.Info("Streaming started")
	return nil
}

// StopStreaming stops both sides and waits for their loops to exit
func (o *Orchestrator) StopStreaming() {
	if o.producer == nil || o.consumer == nil {
		return
	}
	wasStreaming := o.IsStreaming()

	o.producer.Stop()
	o.consumer.Stop()

	if wasStreaming {
		o.logger.Info("Streaming stopped")
	}
}

// IsStreaming reports whether either side is running
func (o *Orchestrator) IsStreaming() bool {
	if o.producer == nil || o.consumer == nil {
		return false
	}
	return o.producer.IsRunning() || o.consumer.IsRunning()
}

// Statistics returns a snapshot of the counters. Counters read while
// streaming are individually consistent but not a single atomic snapshot.
func (o *Orchestrator) Statistics() Stats {
	s := Stats{StreamID: o.id}
	if o.producer == nil || o.consumer == nil {
		return s
	}

	s.FramesProduced = o.producer.FramesProduced()
	s.OverrunCount = o.producer.OverrunCount()
	s.FramesConsumed = o.consumer.FramesConsumed()
	s.UnderrunCount = o.consumer.UnderrunCount()

	if p, ok := o.producer.(interface{ WriteAttempts() uint64 }); ok {
		s.WriteAttempts = p.WriteAttempts()
	}
	if c, ok := o.consumer.(interface{ TimingError() time.Duration }); ok {
		s.TimingError = c.TimingError()
	}

	s.ComputeRates()
	return s
}

// PrintStatistics logs the current counters and rates
func (o *Orchestrator) PrintStatistics() {
	if o.producer == nil || o.consumer == nil {
		o.logger.Warn("No statistics: stream not initialized")
		return
	}

	s := o.Statistics()
	o.logger.Info("Stream statistics",
		"frames_produced", s.FramesProduced,
		"frames_consumed", s.FramesConsumed,
		"overruns", s.OverrunCount,
		"underruns", s.UnderrunCount,
		"underrun_rate_pct", s.UnderrunRate,
		"overrun_rate_pct", s.OverrunRate,
		"timing_error", s.TimingError)
}

// BufferStatus returns the number of buffered bytes and the capacity
func (o *Orchestrator) BufferStatus() (available, capacity int) {
	if !validProvider(o.provider) {
		return 0, 0
	}
	buf := o.provider.Buffer()
	if buf == nil {
		return 0, 0
	}
	return buf.AvailableRead(), buf.Capacity()
}

// Run streams for duration or until ctx is cancelled, then stops and
// returns the final statistics.
func (o *Orchestrator) Run(ctx context.Context, duration time.Duration) (Stats, error) {
	if err := o.StartStreaming(); err != nil {
		return Stats{StreamID: o.id}, err
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		o.logger.Info("Stream cancelled", "reason", ctx.Err())
	case <-timer.C:
	}

	o.StopStreaming()
	return o.Statistics(), nil
}
