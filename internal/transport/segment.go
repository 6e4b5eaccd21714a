package transport

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Segment binds a MemoryProvider to the segment wire layout and exposes the
// atomic header fields the publish/subscribe protocol needs.
type Segment struct {
	mem       MemoryProvider
	slotSize  uint32
	slotCount uint32
	Accessor  *AccessorTable
}

// CreateSegment initializes a freshly allocated (all-zero) backing region
// as a new topic segment with the given slot geometry.
func CreateSegment(mem MemoryProvider, slotSize, slotCount uint32) (*Segment, error) {
	if !IsPowerOfTwo(slotCount) || slotCount < MinSlotCount {
		return nil, fmt.Errorf("%w: slot_count must be a power of two >= %d", ErrInvalidGeometry, MinSlotCount)
	}
	if slotSize <= SlotHeaderSize {
		return nil, fmt.Errorf("%w: slot_size must exceed the %d-byte slot header", ErrInvalidGeometry, SlotHeaderSize)
	}
	want := SegmentSize(slotSize, slotCount)
	if mem.Size() < want {
		return nil, fmt.Errorf("%w: backing region is %d bytes, need %d", ErrInvalidGeometry, mem.Size(), want)
	}

	hdr := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(hdr[offMagic:], Magic)
	binary.LittleEndian.PutUint16(hdr[offVersion:], Version)
	binary.LittleEndian.PutUint32(hdr[offSlotSize:], slotSize)
	binary.LittleEndian.PutUint32(hdr[offSlotCount:], slotCount)
	binary.LittleEndian.PutUint64(hdr[offCreatedNs:], uint64(time.Now().UnixNano()))
	if err := mem.WriteAt(0, hdr); err != nil {
		return nil, err
	}

	s := &Segment{mem: mem, slotSize: slotSize, slotCount: slotCount}
	s.Accessor = NewAccessorTable(mem, AccessorTableOffset(slotSize, slotCount), AccessorTableSlots)
	return s, nil
}

// OpenSegment reads an existing segment's header and binds to it.
func OpenSegment(mem MemoryProvider) (*Segment, error) {
	hdr := make([]byte, HeaderSize)
	if err := mem.ReadAt(0, hdr); err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(hdr[offMagic:]) != Magic {
		return nil, ErrBadMagic
	}
	slotSize := binary.LittleEndian.Uint32(hdr[offSlotSize:])
	slotCount := binary.LittleEndian.Uint32(hdr[offSlotCount:])
	if !IsPowerOfTwo(slotCount) {
		return nil, fmt.Errorf("%w: slot_count %d is not a power of two", ErrInvalidGeometry, slotCount)
	}

	s := &Segment{mem: mem, slotSize: slotSize, slotCount: slotCount}
	s.Accessor = NewAccessorTable(mem, AccessorTableOffset(slotSize, slotCount), AccessorTableSlots)
	return s, nil
}

func (s *Segment) SlotSize() uint32  { return s.slotSize }
func (s *Segment) SlotCount() uint32 { return s.slotCount }

// WriteSeq loads the segment's write sequence with acquire semantics
// (the underlying atomic load on all supported platforms is
// sequentially consistent, a strict superset of acquire).
func (s *Segment) WriteSeq() (uint64, error) { return s.mem.AtomicLoad64(offWriteSeq) }

func (s *Segment) setWriteSeq(v uint64) error { return s.mem.AtomicStore64(offWriteSeq, v) }

// BindPublisher enforces invariant 3: at most one publisher per topic. It
// CASes pub_count 0->1 so that a second bind fails with
// ErrPublisherAlreadyBound and leaves segment state unchanged, per spec.md
// §4.1 failure rules and §9's "first wins, second errors" resolution of
// the race-to-create open question.
func (s *Segment) BindPublisher() error {
	ok, err := s.mem.AtomicCAS32(offPubCount, 0, 1)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPublisherAlreadyBound
	}
	return nil
}

// UnbindPublisher releases the publisher slot.
func (s *Segment) UnbindPublisher() error {
	_, err := s.mem.AtomicCAS32(offPubCount, 1, 0)
	return err
}

func (s *Segment) incSubscribers() (uint32, error) { return s.mem.AtomicAdd32(offSubCount, 1) }
func (s *Segment) decSubscribers() (uint32, error) {
	return s.mem.AtomicAdd32(offSubCount, ^uint32(0)) // atomic add of -1
}

// Header returns a snapshot of the segment header for introspection.
type Header struct {
	SlotSize, SlotCount       uint32
	WriteSeq                  uint64
	PubCount, SubCount        uint32
	CreatedNs                 uint64
}

func (s *Segment) ReadHeader() (Header, error) {
	writeSeq, err := s.mem.AtomicLoad64(offWriteSeq)
	if err != nil {
		return Header{}, err
	}
	pubCount, err := s.mem.AtomicLoad32(offPubCount)
	if err != nil {
		return Header{}, err
	}
	subCount, err := s.mem.AtomicLoad32(offSubCount)
	if err != nil {
		return Header{}, err
	}
	raw := make([]byte, 8)
	if err := s.mem.ReadAt(offCreatedNs, raw); err != nil {
		return Header{}, err
	}
	return Header{
		SlotSize:  s.slotSize,
		SlotCount: s.slotCount,
		WriteSeq:  writeSeq,
		PubCount:  pubCount,
		SubCount:  subCount,
		CreatedNs: binary.LittleEndian.Uint64(raw),
	}, nil
}

// Close releases the underlying memory provider.
func (s *Segment) Close() error { return s.mem.Close() }
