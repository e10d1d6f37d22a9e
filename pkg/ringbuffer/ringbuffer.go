package ringbuffer

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/drgolem/uacsim/pkg/types"
)

// MaxCapacity is the largest buffer New agrees to allocate.
const MaxCapacity = 1 << 30

// Re-export common ringbuffer errors so callers can match them without
// importing pkg/types.
var (
	ErrInsufficientSpace = types.ErrInsufficientSpace
	ErrInsufficientData  = types.ErrInsufficientData
)

var (
	// ErrInvalidCapacity is returned by New for a capacity outside (0, MaxCapacity]
	ErrInvalidCapacity = errors.New("invalid ring buffer capacity")

	// ErrCommitMismatch is returned when a commit size differs from the acquired region
	ErrCommitMismatch = errors.New("commit size does not match acquired region")
)

// RingBuffer is a lock-free single-producer single-consumer byte ring buffer
// with an acquire/commit protocol.
//
// Unlike a power-of-2 ring, the capacity is kept exactly as requested so that
// a buffer of N frames holds exactly N frames. Positions are monotonically
// increasing byte counters; the slot index is position modulo capacity.
//
// Thread safety:
//   - AcquireWrite/CommitWrite must only be called by the producer goroutine
//   - AcquireRead/CommitRead must only be called by the consumer goroutine
//
// The producer publishes data by storing writePos after copying into the
// acquired region; the consumer loads writePos before touching the region.
type RingBuffer struct {
	writePos atomic.Uint64
	_pad1    [56]byte
	readPos  atomic.Uint64
	_pad2    [56]byte

	buffer   []byte
	capacity uint64

	// Owned by the producer and the consumer respectively.
	pendingWrite int
	pendingRead  int
}

// New creates a ring buffer holding exactly capacity bytes.
func New(capacity int) (*RingBuffer, error) {
	if capacity <= 0 || capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: %d bytes (valid range: 1-%d)", ErrInvalidCapacity, capacity, MaxCapacity)
	}

	return &RingBuffer{
		buffer:   make([]byte, capacity),
		capacity: uint64(capacity),
	}, nil
}

// AcquireWrite reserves up to n bytes of free space and returns the writable
// region. The region never wraps, so fewer than n bytes may be granted when
// the free space straddles the end of the storage.
//
// Returns ErrInsufficientSpace when the buffer is full. Never blocks.
// This method must only be called by the producer goroutine.
func (rb *RingBuffer) AcquireWrite(n int) ([]byte, error) {
	rb.pendingWrite = 0
	if n <= 0 {
		return nil, nil
	}

	writePos := rb.writePos.Load()
	readPos := rb.readPos.Load()

	free := rb.capacity - (writePos - readPos)
	if free == 0 {
		return nil, ErrInsufficientSpace
	}

	start := writePos % rb.capacity
	granted := min(uint64(n), free, rb.capacity-start)

	rb.pendingWrite = int(granted)
	return rb.buffer[start : start+granted], nil
}

// CommitWrite publishes n bytes previously obtained from AcquireWrite.
// n must equal the length of the acquired region.
// This method must only be called by the producer goroutine.
func (rb *RingBuffer) CommitWrite(n int) error {
	if n != rb.pendingWrite {
		return fmt.Errorf("%w: commit %d, acquired %d", ErrCommitMismatch, n, rb.pendingWrite)
	}
	rb.pendingWrite = 0
	if n == 0 {
		return nil
	}

	writePos := rb.writePos.Load()
	rb.writePos.Store(writePos + uint64(n))
	return nil
}

// AcquireRead returns a region of up to n committed bytes. As with
// AcquireWrite, the region never wraps.
//
// Returns ErrInsufficientData when the buffer is empty. Never blocks.
// This method must only be called by the consumer goroutine.
func (rb *RingBuffer) AcquireRead(n int) ([]byte, error) {
	rb.pendingRead = 0
	if n <= 0 {
		return nil, nil
	}

	readPos := rb.readPos.Load()
	writePos := rb.writePos.Load()

	available := writePos - readPos
	if available == 0 {
		return nil, ErrInsufficientData
	}

	start := readPos % rb.capacity
	granted := min(uint64(n), available, rb.capacity-start)

	rb.pendingRead = int(granted)
	return rb.buffer[start : start+granted], nil
}

// CommitRead releases n bytes previously obtained from AcquireRead.
// This method must only be called by the consumer goroutine.
func (rb *RingBuffer) CommitRead(n int) error {
	if n != rb.pendingRead {
		return fmt.Errorf("%w: commit %d, acquired %d", ErrCommitMismatch, n, rb.pendingRead)
	}
	rb.pendingRead = 0
	if n == 0 {
		return nil
	}

	readPos := rb.readPos.Load()
	rb.readPos.Store(readPos + uint64(n))
	return nil
}

// AvailableWrite returns the number of bytes available for writing
func (rb *RingBuffer) AvailableWrite() int {
	return int(rb.capacity - rb.used())
}

// AvailableRead returns the number of bytes available for reading
func (rb *RingBuffer) AvailableRead() int {
	return int(rb.used())
}

// used returns the committed byte count. The read cursor is loaded first so
// the difference cannot go negative when called from a third goroutine.
func (rb *RingBuffer) used() uint64 {
	readPos := rb.readPos.Load()
	writePos := rb.writePos.Load()
	return min(writePos-readPos, rb.capacity)
}

// Capacity returns the total size of the ring buffer in bytes
func (rb *RingBuffer) Capacity() int {
	return int(rb.capacity)
}

// Reset clears the ring buffer by resetting read and write positions.
// Only call it while neither producer nor consumer is running.
func (rb *RingBuffer) Reset() {
	rb.readPos.Store(0)
	rb.writePos.Store(0)
	rb.pendingRead = 0
	rb.pendingWrite = 0
}

var _ types.ByteChannel = (*RingBuffer)(nil)
