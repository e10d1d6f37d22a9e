package usbaudio

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drgolem/uacsim/pkg/microframe"
	"github.com/drgolem/uacsim/pkg/types"
)

// timingReportEvery is the number of microframes between timing reports
const timingReportEvery = 1000

// Consumer emulates the USB host controller: it reads exactly one frame per
// microframe interval, on an absolute-deadline schedule so that wake-up
// latency does not accumulate. A read that finds less than a full frame is
// an underrun and leaves the buffer untouched.
type Consumer struct {
	provider types.BufferProvider
	layout   microframe.Layout
	interval time.Duration
	clock    types.Clock
	sink     types.FrameSink
	logger   *slog.Logger

	mu      sync.Mutex // serializes Start/Stop
	running atomic.Bool
	wg      sync.WaitGroup

	framesConsumed  atomic.Uint64
	underrunCount   atomic.Uint64
	lastTimingError atomic.Int64
}

// NewConsumer creates a consumer reading from provider's buffer.
// A nil or uninitialized provider is logged; Start will then fail.
func NewConsumer(provider types.BufferProvider, opts ...Option) *Consumer {
	o := buildOptions(opts)

	c := &Consumer{
		provider: provider,
		layout:   o.layout,
		interval: o.interval,
		clock:    o.clock,
		sink:     o.sink,
		logger:   o.logger,
	}
	if !validProvider(provider) {
		c.logger.Error("Consumer created without a valid buffer controller")
	}
	return c
}

// Start launches the consumer loop. Calling Start on a running consumer is a no-op.
func (c *Consumer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running.Load() {
		return nil
	}
	if !validProvider(c.provider) {
		c.logger.Error("Cannot start consumer", "error", ErrNoBuffer)
		return ErrNoBuffer
	}
	if err := c.layout.Validate(); err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	if c.interval <= 0 {
		return fmt.Errorf("consumer: invalid interval %v", c.interval)
	}
	if err := checkCapacity(c.provider, c.layout); err != nil {
		c.logger.Error("Cannot start consumer", "error", err)
		return err
	}

	buf := c.provider.Buffer()
	c.running.Store(true)
	c.wg.Add(1)
	go c.consumerLoop(buf)

	c.logger.Info("Consumer started",
		"interval", c.interval,
		"frame_size", c.layout.FrameSize)
	return nil
}

// Stop signals the loop and waits for it to exit. The loop notices the
// request after its current sleep, so Stop returns within about one interval.
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running.Load() {
		return
	}
	c.running.Store(false)
	c.wg.Wait()

	c.logger.Info("Consumer stopped",
		"frames_consumed", c.framesConsumed.Load(),
		"underruns", c.underrunCount.Load())
}

func (c *Consumer) consumerLoop(buf types.ByteChannel) {
	defer c.wg.Done()

	// Keep the scheduling goroutine on one OS thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	start := c.clock.Now()
	next := start.Add(c.interval)

	for index := uint64(0); ; index++ {
		c.clock.SleepUntil(next)
		if !c.running.Load() {
			return
		}

		c.consumeFrame(buf)

		// Microframe index completes at start + (index+1)×interval
		if n := index + 1; n%timingReportEvery == 0 {
			c.reportTiming(start, n)
		}

		// Advance from the previous deadline, not from now
		next = next.Add(c.interval)
	}
}

// consumeFrame performs the single read attempt of one microframe
func (c *Consumer) consumeFrame(buf types.ByteChannel) {
	frameSize := c.layout.FrameSize

	region, err := buf.AcquireRead(frameSize)
	if err != nil || len(region) != frameSize {
		c.underrunCount.Add(1)
		return
	}

	if c.sink != nil {
		c.sink.WriteFrame(region)
	}

	if err := buf.CommitRead(frameSize); err != nil {
		c.logger.Error("Commit read failed", "error", err)
		c.underrunCount.Add(1)
		return
	}
	c.framesConsumed.Add(1)
}

// reportTiming compares the elapsed time after n microframes with n intervals
func (c *Consumer) reportTiming(start time.Time, n uint64) {
	elapsed := c.clock.Now().Sub(start)
	expected := time.Duration(n) * c.interval

	timingErr := elapsed - expected
	if timingErr < 0 {
		timingErr = -timingErr
	}
	c.lastTimingError.Store(int64(timingErr))

	c.logger.Debug("Microframe timing",
		"microframes", n,
		"timing_error", timingErr)
}

// IsRunning reports whether the loop is active
func (c *Consumer) IsRunning() bool {
	return c.running.Load()
}

// FramesConsumed returns the number of full frames read
func (c *Consumer) FramesConsumed() uint64 {
	return c.framesConsumed.Load()
}

// UnderrunCount returns the number of microframes that found less than a full frame
func (c *Consumer) UnderrunCount() uint64 {
	return c.underrunCount.Load()
}

// TimingError returns the most recently measured schedule deviation
func (c *Consumer) TimingError() time.Duration {
	return time.Duration(c.lastTimingError.Load())
}

var _ types.FrameConsumer = (*Consumer)(nil)
