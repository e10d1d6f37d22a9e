// Package scenario runs the canonical stream scenarios and checks their
// expected outcomes.
package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/drgolem/uacsim/pkg/microframe"
	"github.com/drgolem/uacsim/pkg/rbcontroller"
	"github.com/drgolem/uacsim/pkg/usbaudio"
)

const (
	smallCapacity = 8 * microframe.DefaultFrameSize  // 3072 bytes
	largeCapacity = 80 * microframe.DefaultFrameSize // 30720 bytes

	// underrunTolerance is how far Scenario A may stray from one underrun
	// per elapsed interval
	underrunTolerance = 3
)

// Names lists the scenarios in run order
var Names = []string{"a", "b", "c", "order"}

// Options tune a scenario run
type Options struct {
	// Duration of the timed part of A, C and order (default 1ms)
	Duration time.Duration
	Logger   *slog.Logger
}

// Check is one expectation of a scenario
type Check struct {
	Name   string
	Passed bool
	Detail string
}

// Result is the outcome of a scenario
type Result struct {
	Name          string
	Description   string
	Stats         usbaudio.Stats
	BufferedBytes int
	Checks        []Check
}

// Passed reports whether every check held
func (r Result) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

func (r *Result) check(name string, passed bool, format string, args ...any) {
	r.Checks = append(r.Checks, Check{
		Name:   name,
		Passed: passed,
		Detail: fmt.Sprintf(format, args...),
	})
}

// Run executes the named scenario
func Run(ctx context.Context, name string, opts Options) (Result, error) {
	if opts.Duration <= 0 {
		opts.Duration = time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("scenario", name)

	switch name {
	case "a":
		return consumerAlone(ctx, opts.Duration, logger)
	case "b":
		return producerAlone(ctx, logger)
	case "c":
		return steadyState(ctx, opts.Duration, logger)
	case "order":
		return producerFirst(ctx, opts.Duration, logger)
	default:
		return Result{}, fmt.Errorf("unknown scenario %q (want one of %v)", name, Names)
	}
}

func newController(capacity int, logger *slog.Logger) (*rbcontroller.Controller, error) {
	ctrl := rbcontroller.New(logger)
	if err := ctrl.Initialize(capacity); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// near reports whether got is within tol of want
func near(got, want, tol uint64) bool {
	if got > want {
		return got-want <= tol
	}
	return want-got <= tol
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// consumerAlone: no producer, every microframe underruns
func consumerAlone(ctx context.Context, d time.Duration, logger *slog.Logger) (Result, error) {
	r := Result{
		Name:        "a",
		Description: fmt.Sprintf("consumer alone for %v, %d byte buffer", d, smallCapacity),
	}

	ctrl, err := newController(smallCapacity, logger)
	if err != nil {
		return r, err
	}
	defer ctrl.Close()

	consumer := usbaudio.NewConsumer(ctrl, usbaudio.WithLogger(logger))
	if err := consumer.Start(); err != nil {
		return r, err
	}
	sleep(ctx, d)
	consumer.Stop()

	r.Stats = usbaudio.Stats{
		FramesConsumed: consumer.FramesConsumed(),
		UnderrunCount:  consumer.UnderrunCount(),
		TimingError:    consumer.TimingError(),
	}
	r.Stats.ComputeRates()
	r.BufferedBytes = ctrl.Buffer().AvailableRead()

	expected := uint64(d / microframe.DefaultInterval)
	r.check("no frames consumed", r.Stats.FramesConsumed == 0,
		"consumed %d", r.Stats.FramesConsumed)
	r.check("every microframe underruns", r.Stats.UnderrunCount > 0,
		"underruns %d", r.Stats.UnderrunCount)
	r.check("underruns near expected", near(r.Stats.UnderrunCount, expected, underrunTolerance),
		"underruns %d, expected %d ± %d", r.Stats.UnderrunCount, expected, underrunTolerance)
	return r, nil
}

// producerAlone: no consumer, the buffer fills and every later write overruns
func producerAlone(ctx context.Context, logger *slog.Logger) (Result, error) {
	r := Result{
		Name:        "b",
		Description: fmt.Sprintf("producer alone until full, %d byte buffer", smallCapacity),
	}

	ctrl, err := newController(smallCapacity, logger)
	if err != nil {
		return r, err
	}
	defer ctrl.Close()

	producer := usbaudio.NewProducer(ctrl, usbaudio.WithLogger(logger))
	if err := producer.Start(); err != nil {
		return r, err
	}

	// Wait for overruns to pile up, bounded so a stalled producer still reports
	deadline := time.Now().Add(time.Second)
	for producer.OverrunCount() < 1000 && time.Now().Before(deadline) && ctx.Err() == nil {
		time.Sleep(100 * time.Microsecond)
	}
	producer.Stop()

	r.Stats = usbaudio.Stats{
		FramesProduced: producer.FramesProduced(),
		OverrunCount:   producer.OverrunCount(),
		WriteAttempts:  producer.WriteAttempts(),
	}
	r.Stats.ComputeRates()
	r.BufferedBytes = ctrl.Buffer().AvailableRead()

	capacityFrames := uint64(smallCapacity / microframe.DefaultFrameSize)
	r.check("exactly capacity frames produced", r.Stats.FramesProduced == capacityFrames,
		"produced %d, capacity %d frames", r.Stats.FramesProduced, capacityFrames)
	r.check("later writes overrun", r.Stats.OverrunCount > 0,
		"overruns %d", r.Stats.OverrunCount)
	r.check("buffer full", r.BufferedBytes == smallCapacity,
		"buffered %d of %d bytes", r.BufferedBytes, smallCapacity)
	r.check("attempts accounted", r.Stats.WriteAttempts == r.Stats.FramesProduced+r.Stats.OverrunCount,
		"attempts %d = produced %d + overruns %d", r.Stats.WriteAttempts, r.Stats.FramesProduced, r.Stats.OverrunCount)
	return r, nil
}

// steadyState: consumer then producer through the orchestrator
func steadyState(ctx context.Context, d time.Duration, logger *slog.Logger) (Result, error) {
	r := Result{
		Name:        "c",
		Description: fmt.Sprintf("consumer and producer for %v, %d byte buffer", d, largeCapacity),
	}

	ctrl, err := newController(largeCapacity, logger)
	if err != nil {
		return r, err
	}
	defer ctrl.Close()

	orch := usbaudio.New(ctrl, usbaudio.WithLogger(logger), usbaudio.WithStreamID("scenario-c"))
	stats, err := orch.Run(ctx, d)
	if err != nil {
		return r, err
	}
	r.Stats = stats
	r.BufferedBytes, _ = orch.BufferStatus()

	expected := uint64(d / microframe.DefaultInterval)
	r.check("frames consumed", stats.FramesConsumed > 0,
		"consumed %d, expected about %d", stats.FramesConsumed, expected)
	r.check("underruns near zero", near(stats.UnderrunCount, 0, 2),
		"underruns %d", stats.UnderrunCount)
	r.check("bytes conserved",
		stats.FramesProduced*microframe.DefaultFrameSize == stats.FramesConsumed*microframe.DefaultFrameSize+uint64(r.BufferedBytes),
		"produced %d, consumed %d, buffered %d bytes", stats.FramesProduced, stats.FramesConsumed, r.BufferedBytes)
	return r, nil
}

// producerFirst: reversed start order must not corrupt the counters
func producerFirst(ctx context.Context, d time.Duration, logger *slog.Logger) (Result, error) {
	r := Result{
		Name:        "order",
		Description: fmt.Sprintf("producer started before consumer, %v, %d byte buffer", d, smallCapacity),
	}

	ctrl, err := newController(smallCapacity, logger)
	if err != nil {
		return r, err
	}
	defer ctrl.Close()

	producer := usbaudio.NewProducer(ctrl, usbaudio.WithLogger(logger))
	consumer := usbaudio.NewConsumer(ctrl, usbaudio.WithLogger(logger))

	if err := producer.Start(); err != nil {
		return r, err
	}
	if err := consumer.Start(); err != nil {
		producer.Stop()
		return r, err
	}
	sleep(ctx, d)
	producer.Stop()
	consumer.Stop()

	r.Stats = usbaudio.Stats{
		FramesProduced: producer.FramesProduced(),
		OverrunCount:   producer.OverrunCount(),
		WriteAttempts:  producer.WriteAttempts(),
		FramesConsumed: consumer.FramesConsumed(),
		UnderrunCount:  consumer.UnderrunCount(),
		TimingError:    consumer.TimingError(),
	}
	r.Stats.ComputeRates()
	r.BufferedBytes = ctrl.Buffer().AvailableRead()

	s := r.Stats
	r.check("attempts accounted", s.WriteAttempts == s.FramesProduced+s.OverrunCount,
		"attempts %d = produced %d + overruns %d", s.WriteAttempts, s.FramesProduced, s.OverrunCount)
	r.check("consumed within produced", s.FramesConsumed <= s.FramesProduced,
		"consumed %d, produced %d", s.FramesConsumed, s.FramesProduced)
	r.check("bytes conserved",
		s.FramesProduced*microframe.DefaultFrameSize == s.FramesConsumed*microframe.DefaultFrameSize+uint64(r.BufferedBytes),
		"produced %d, consumed %d, buffered %d bytes", s.FramesProduced, s.FramesConsumed, r.BufferedBytes)
	return r, nil
}
