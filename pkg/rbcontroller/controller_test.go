package rbcontroller

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/drgolem/uacsim/pkg/ringbuffer"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitializeCapacity(t *testing.T) {
	for _, capacity := range []int{1, 384, 3072, 30720, 1000} {
		c := New(quietLogger())
		if err := c.Initialize(capacity); err != nil {
			t.Fatalf("Initialize(%d) failed: %v", capacity, err)
		}
		if !c.IsInitialized() {
			t.Errorf("Initialize(%d): IsInitialized() = false", capacity)
		}
		if c.Capacity() != capacity {
			t.Errorf("Initialize(%d): Capacity() = %d", capacity, c.Capacity())
		}
		if c.Buffer() == nil {
			t.Fatalf("Initialize(%d): Buffer() returned nil", capacity)
		}
		if c.Buffer().Capacity() != capacity {
			t.Errorf("Initialize(%d): Buffer().Capacity() = %d", capacity, c.Buffer().Capacity())
		}
	}
}

func TestInitializeTwiceKeepsBuffer(t *testing.T) {
	c := New(quietLogger())
	if err := c.Initialize(3072); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	first := c.Buffer()

	if err := c.Initialize(999); err != nil {
		t.Errorf("Second Initialize: got %v, want nil", err)
	}
	if c.Buffer() != first {
		t.Error("Second Initialize reallocated the buffer")
	}
	if c.Capacity() != 3072 {
		t.Errorf("Capacity after second Initialize: got %d, want 3072", c.Capacity())
	}
}

func TestInitializeFailure(t *testing.T) {
	c := New(quietLogger())

	err := c.Initialize(0)
	if !errors.Is(err, ringbuffer.ErrInvalidCapacity) {
		t.Errorf("Initialize(0): got %v, want ErrInvalidCapacity", err)
	}
	if c.IsInitialized() {
		t.Error("Controller initialized after failure")
	}
	if c.Buffer() != nil {
		t.Error("Buffer() should be nil after failed Initialize")
	}
	if c.Capacity() != 0 {
		t.Errorf("Capacity() after failure: got %d, want 0", c.Capacity())
	}
}

func TestUninitializedBufferIsNil(t *testing.T) {
	c := New(nil)
	if c.Buffer() != nil {
		t.Error("Buffer() on new controller should be nil")
	}
	if c.IsInitialized() {
		t.Error("New controller reports initialized")
	}
}

func TestCloseIdempotent(t *testing.T) {
	c := New(quietLogger())

	// Never initialized
	if err := c.Close(); err != nil {
		t.Errorf("Close on uninitialized controller failed: %v", err)
	}

	if err := c.Initialize(384); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
	if c.IsInitialized() || c.Buffer() != nil {
		t.Error("Controller still initialized after Close")
	}
}

func TestNilControllerNotInitialized(t *testing.T) {
	var c *Controller
	if c.IsInitialized() {
		t.Error("nil controller should not be initialized")
	}
}
