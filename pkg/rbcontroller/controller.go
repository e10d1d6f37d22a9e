// Package rbcontroller owns the lifecycle of the ring buffer shared by a
// stream's producer and consumer.
package rbcontroller

import (
	"fmt"
	"log/slog"

	"github.com/drgolem/uacsim/pkg/ringbuffer"
	"github.com/drgolem/uacsim/pkg/types"
)

// Controller is a passive holder of one ring buffer. It is the only place
// the buffer is created and released; producers and consumers obtain it
// through Buffer. Concurrent access discipline is left to the buffer's
// acquire/commit protocol.
//
// Initialize and Close are lifecycle calls and must not race each other.
type Controller struct {
	ringbuf  *ringbuffer.RingBuffer
	capacity int
	logger   *slog.Logger
}

// New creates an uninitialized controller. A nil logger selects slog.Default().
func New(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{logger: logger}
}

// Initialize allocates a ring buffer of capacityBytes.
// A second call is a no-op that returns nil without reallocating.
// On failure the controller stays uninitialized.
func (c *Controller) Initialize(capacityBytes int) error {
	if c.ringbuf != nil {
		c.logger.Warn("Ring buffer already initialized",
			"capacity_bytes", c.capacity,
			"requested_bytes", capacityBytes)
		return nil
	}

	rb, err := ringbuffer.New(capacityBytes)
	if err != nil {
		c.logger.Error("Failed to initialize ring buffer", "capacity_bytes", capacityBytes, "error", err)
		return fmt.Errorf("initialize ring buffer: %w", err)
	}

	c.ringbuf = rb
	c.capacity = capacityBytes
	c.logger.Info("Ring buffer initialized", "capacity_bytes", capacityBytes)
	return nil
}

// Buffer returns the ring buffer, or nil if the controller is not initialized.
func (c *Controller) Buffer() types.ByteChannel {
	if c.ringbuf == nil {
		return nil
	}
	return c.ringbuf
}

// IsInitialized reports whether Initialize succeeded and Close has not been called.
// A nil controller is never initialized.
func (c *Controller) IsInitialized() bool {
	return c != nil && c.ringbuf != nil
}

// Capacity returns the buffer capacity in bytes, 0 when uninitialized
func (c *Controller) Capacity() int {
	return c.capacity
}

// Close releases the ring buffer. Safe to call multiple times and on a
// controller that was never initialized. Producers and consumers using the
// buffer must be stopped first.
func (c *Controller) Close() error {
	if c.ringbuf == nil {
		return nil
	}
	c.ringbuf = nil
	c.capacity = 0
	c.logger.Debug("Ring buffer released")
	return nil
}

var _ types.BufferProvider = (*Controller)(nil)
