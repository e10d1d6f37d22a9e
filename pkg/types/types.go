package types

import (
	"time"

	"github.com/drgolem/ringbuffer"
)

// ByteChannel is a bounded single-producer single-consumer byte channel with
// a two-phase acquire/commit protocol.
//
// Acquire calls never block. They grant between 1 and n bytes, or return
// ErrInsufficientSpace / ErrInsufficientData when nothing can be granted.
// A commit must use exactly the length of the region returned by the paired
// acquire call, or be skipped entirely.
//
// Thread safety:
//   - AcquireWrite/CommitWrite must only be called by the producer goroutine
//   - AcquireRead/CommitRead must only be called by the consumer goroutine
type ByteChannel interface {
	AcquireWrite(n int) ([]byte, error)
	CommitWrite(n int) error
	AcquireRead(n int) ([]byte, error)
	CommitRead(n int) error

	// AvailableRead returns the number of committed bytes not yet read
	AvailableRead() int

	// Capacity returns the fixed capacity in bytes
	Capacity() int
}

// BufferProvider hands out the shared ByteChannel to producers and consumers.
// Buffer returns nil while the provider is not initialized.
type BufferProvider interface {
	IsInitialized() bool
	Buffer() ByteChannel
	Capacity() int
}

// FrameProducer is the contract of the producing side of a stream.
type FrameProducer interface {
	Start() error
	Stop()
	IsRunning() bool
	FramesProduced() uint64
	OverrunCount() uint64
}

// FrameConsumer is the contract of the consuming side of a stream.
type FrameConsumer interface {
	Start() error
	Stop()
	IsRunning() bool
	FramesConsumed() uint64
	UnderrunCount() uint64
}

// SampleSource supplies interleaved float32 samples to a producer.
// Fill is only ever called from the producer goroutine and must fill
// the whole slice.
type SampleSource interface {
	Fill(samples []float32)
}

// FrameSink receives every microframe the consumer reads successfully.
// WriteFrame runs on the consumer's real-time schedule: it must not block
// and must not retain frame after returning.
type FrameSink interface {
	WriteFrame(frame []byte)
	Close() error
}

// Clock abstracts the monotonic time source used by the consumer.
type Clock interface {
	Now() time.Time
	SleepUntil(deadline time.Time)
}

// Re-export common ringbuffer errors from github.com/drgolem/ringbuffer
// so every buffer in this module reports capacity conditions the same way.
var (
	// ErrInsufficientSpace indicates the ringbuffer doesn't have enough space for the write operation
	ErrInsufficientSpace = ringbuffer.ErrInsufficientSpace

	// ErrInsufficientData indicates the ringbuffer doesn't have enough data for the read operation
	ErrInsufficientData = ringbuffer.ErrInsufficientData
)
