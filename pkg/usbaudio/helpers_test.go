package usbaudio

import (
	"io"
	"log/slog"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/drgolem/uacsim/pkg/rbcontroller"
	"github.com/drgolem/uacsim/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newController(t *testing.T, capacity int) *rbcontroller.Controller {
	t.Helper()
	c := rbcontroller.New(quietLogger())
	if err := c.Initialize(capacity); err != nil {
		t.Fatalf("Initialize(%d) failed: %v", capacity, err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// waitFor polls cond until it holds or the timeout expires
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeFrames commits n frames of frameSize bytes, byte value = frame index + 1
func writeFrames(t *testing.T, buf types.ByteChannel, frameSize, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		region, err := buf.AcquireWrite(frameSize)
		if err != nil || len(region) != frameSize {
			t.Fatalf("AcquireWrite frame %d: got %d bytes, err %v", i, len(region), err)
		}
		for j := range region {
			region[j] = byte(i + 1)
		}
		if err := buf.CommitWrite(frameSize); err != nil {
			t.Fatalf("CommitWrite frame %d: %v", i, err)
		}
	}
}

// stepClock parks the consumer in every SleepUntil until the test releases
// it, so each microframe can be driven one at a time. Now jumps to the
// deadline being slept on.
type stepClock struct {
	mu        sync.Mutex
	now       time.Time
	lag       time.Duration
	deadlines []time.Time

	sleeping chan struct{}
	step     chan struct{}
	done     chan struct{}
	parked   bool // test goroutine only
}

func newStepClock() *stepClock {
	return &stepClock{
		now:      time.Unix(1_700_000_000, 0),
		sleeping: make(chan struct{}, 1024),
		step:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Add(c.lag)
}

// setLag makes later Now calls report wake-ups d after the deadline
func (c *stepClock) setLag(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lag = d
}

func (c *stepClock) SleepUntil(deadline time.Time) {
	c.mu.Lock()
	c.deadlines = append(c.deadlines, deadline)
	if deadline.After(c.now) {
		c.now = deadline
	}
	c.mu.Unlock()

	c.sleeping <- struct{}{}
	select {
	case <-c.step:
	case <-c.done:
	}
}

func (c *stepClock) Deadlines() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.deadlines...)
}

func (c *stepClock) waitSleeping(t *testing.T) {
	t.Helper()
	select {
	case <-c.sleeping:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for consumer to sleep")
	}
}

// advance completes n microframes and returns once the consumer is parked
// in the following sleep
func (c *stepClock) advance(t *testing.T, n int) {
	t.Helper()
	if !c.parked {
		c.waitSleeping(t)
		c.parked = true
	}
	for i := 0; i < n; i++ {
		c.step <- struct{}{}
		c.waitSleeping(t)
	}
}

// stopConsumer stops a consumer driven by clk
func stopConsumer(t *testing.T, c *Consumer, clk *stepClock) {
	t.Helper()
	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()

	waitFor(t, "running flag to clear", func() bool { return !c.IsRunning() })
	close(clk.done)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for Stop")
	}
}

// jitterClock never blocks; every Now call reports a later time than the
// previous one, as if the consumer always woke up late.
type jitterClock struct {
	mu        sync.Mutex
	base      time.Time
	calls     int
	first     time.Time
	deadlines []time.Time
}

func (c *jitterClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	now := c.base.Add(time.Duration(c.calls) * 37 * time.Microsecond)
	if c.calls == 1 {
		c.first = now
	}
	return now
}

func (c *jitterClock) SleepUntil(deadline time.Time) {
	c.mu.Lock()
	c.deadlines = append(c.deadlines, deadline)
	c.mu.Unlock()
	runtime.Gosched()
}

func (c *jitterClock) snapshot() (time.Time, []time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.first, append([]time.Time(nil), c.deadlines...)
}

// constSource fills every sample with the same value
type constSource float32

func (s constSource) Fill(samples []float32) {
	for i := range samples {
		samples[i] = float32(s)
	}
}

// recordingSink copies every frame it receives
type recordingSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *recordingSink) WriteFrame(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, append([]byte(nil), frame...))
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
