// Package transport implements the shared-memory pub/sub layer: topic
// segments, ring-buffered slots, the seqlock publish/subscribe protocol,
// and session-scoped discovery.
package transport

import "errors"

// MemoryProvider abstracts access to the bytes backing a topic segment.
// Implementations may be backed by an mmap'd file under /dev/shm or, for
// tests and same-process pairs, a plain in-memory buffer.
type MemoryProvider interface {
	Size() uint32
	ReadAt(offset uint32, dest []byte) error
	WriteAt(offset uint32, src []byte) error
	AtomicLoad32(offset uint32) (uint32, error)
	AtomicStore32(offset uint32, val uint32) error
	AtomicAdd32(offset uint32, delta uint32) (uint32, error)
	AtomicCAS32(offset uint32, old, new uint32) (bool, error)
	AtomicLoad64(offset uint32) (uint64, error)
	AtomicStore64(offset uint32, val uint64) error
	Close() error
}

var (
	// ErrOutOfBounds is returned when an offset+length exceeds the segment size.
	ErrOutOfBounds = errors.New("transport: offset out of bounds")
	// ErrMisaligned is returned when an atomic access isn't naturally aligned.
	ErrMisaligned = errors.New("transport: offset is not aligned")
)
