package usbaudio

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/drgolem/uacsim/pkg/microframe"
	"github.com/drgolem/uacsim/pkg/types"
)

var (
	// ErrNoBuffer is returned by Start when the buffer provider is missing or uninitialized
	ErrNoBuffer = errors.New("no valid buffer controller")

	// ErrNotReady is returned by StartStreaming when the orchestrator could not be built
	ErrNotReady = errors.New("producer or consumer not initialized")

	// ErrUnalignedCapacity is returned by Start when the buffer capacity is
	// not a whole number of frames. Such a buffer eventually leaves less than
	// a frame of contiguous space at its end and the stream stalls.
	ErrUnalignedCapacity = errors.New("buffer capacity is not a multiple of the frame size")
)

type options struct {
	layout   microframe.Layout
	interval time.Duration
	source   types.SampleSource
	sink     types.FrameSink
	clock    types.Clock
	logger   *slog.Logger
	streamID string
}

// Option configures a Producer, Consumer or Orchestrator.
// Options that do not apply to a component are ignored by it.
type Option func(*options)

// WithLayout sets the frame size and audio payload size
func WithLayout(layout microframe.Layout) Option {
	return func(o *options) { o.layout = layout }
}

// WithInterval overrides the 125µs microframe period of the consumer
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithSource sets the producer's sample source (default: seeded white noise)
func WithSource(src types.SampleSource) Option {
	return func(o *options) { o.source = src }
}

// WithSink sets the sink receiving every frame the consumer reads
func WithSink(sink types.FrameSink) Option {
	return func(o *options) { o.sink = sink }
}

// WithClock replaces the consumer's wall clock
func WithClock(clock types.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithLogger sets the logger (default: slog.Default())
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithStreamID sets the orchestrator's stream ID instead of a random UUID
func WithStreamID(id string) Option {
	return func(o *options) { o.streamID = id }
}

func buildOptions(opts []Option) options {
	o := options{
		layout:   microframe.DefaultLayout(),
		interval: microframe.DefaultInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = wallClock{}
	}
	return o
}

// wallClock sleeps until absolute deadlines on the monotonic clock
type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) SleepUntil(deadline time.Time) {
	if d := time.Until(deadline); d > 0 {
		time.Sleep(d)
	}
}

// validProvider reports whether p can hand out a buffer
func validProvider(p types.BufferProvider) bool {
	return p != nil && p.IsInitialized()
}

// checkCapacity reports ErrUnalignedCapacity unless p holds whole frames of layout
func checkCapacity(p types.BufferProvider, layout microframe.Layout) error {
	if layout.FrameSize <= 0 {
		return nil
	}
	if capacity := p.Capacity(); capacity%layout.FrameSize != 0 {
		return fmt.Errorf("%w: capacity %d, frame size %d", ErrUnalignedCapacity, capacity, layout.FrameSize)
	}
	return nil
}
