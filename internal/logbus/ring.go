package logbus

import (
	"encoding/binary"
	"fmt"

	"github.com/horus-robotics/horus/internal/transport"
)

// Ring is a single global log/telemetry ring shared by every node in a
// session. Entries are appended with a seqlock word identical in spirit to
// the topic slot protocol (internal/transport/slot.go): writers stamp an
// odd sequence before the payload copy and an even one after, so readers
// can detect and skip a torn entry instead of misparsing the ring.
type Ring struct {
	mem      transport.MemoryProvider
	capacity uint32 // ring body size, excluding the header
	bodyOff  uint32
}

// CreateRing initializes a freshly allocated backing region as a new log
// ring of the given body capacity (header space is added on top).
func CreateRing(mem transport.MemoryProvider, capacity uint32) (*Ring, error) {
	want := HeaderSize + capacity
	if mem.Size() < want {
		return nil, fmt.Errorf("logbus: backing region is %d bytes, need %d", mem.Size(), want)
	}
	hdr := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(hdr[offMagic:], Magic)
	binary.LittleEndian.PutUint16(hdr[offVersion:], Version)
	binary.LittleEndian.PutUint32(hdr[offRingSize:], capacity)
	if err := mem.WriteAt(0, hdr); err != nil {
		return nil, err
	}
	return &Ring{mem: mem, capacity: capacity, bodyOff: HeaderSize}, nil
}

// OpenRing attaches to an existing ring.
func OpenRing(mem transport.MemoryProvider) (*Ring, error) {
	hdr := make([]byte, HeaderSize)
	if err := mem.ReadAt(0, hdr); err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(hdr[offMagic:]) != Magic {
		return nil, fmt.Errorf("logbus: bad ring magic")
	}
	capacity := binary.LittleEndian.Uint32(hdr[offRingSize:])
	return &Ring{mem: mem, capacity: capacity, bodyOff: HeaderSize}, nil
}

// Entry is a decoded log/telemetry record.
type Entry struct {
	Seq     uint64
	TSNs    uint64
	NodeID  uint32
	TopicID uint32
	Kind    Kind
	TickUs  uint32
	IPCNs   uint32
	Message string
}

func (e Entry) encodedSize() uint32 { return entryFixedSize + uint32(len(e.Message)) }

// Append writes e into the next free span of the ring. Writers bump-
// allocate their span with a CAS loop on the write cursor: a span that
// would cross the physical end of the ring buffer wraps to offset 0
// instead of splitting, wasting the tail bytes — acceptable for a ring
// sized many orders of magnitude larger than any one entry, and the same
// bump-then-wrap shape the teacher's slab pages use per-page rather than
// per-byte (kernel/threads/arena/slab.go). The cursor itself is kept
// physical (always in [0, capacity)) rather than a monotonically growing
// byte count: a plain AtomicAdd would let the counter drift out of step
// with the actual physical layout every time a span is forced to wrap,
// since the wasted tail bytes are never subtracted back out of a
// monotonic total — the CAS loop folds the wrap decision and the
// publish into one atomic step so the two can never disagree.
func (r *Ring) Append(e Entry) error {
	size := e.encodedSize()
	if size > r.capacity {
		return fmt.Errorf("logbus: entry of %d bytes exceeds ring capacity %d", size, r.capacity)
	}

	seq, err := r.mem.AtomicAdd32(offEntrySeq, 1)
	if err != nil {
		return err
	}

	var start uint32
	for {
		cur, err := r.mem.AtomicLoad32(offWriteOff)
		if err != nil {
			return err
		}
		start = cur
		if start+size > r.capacity {
			start = 0
		}
		ok, err := r.mem.AtomicCAS32(offWriteOff, cur, start+size)
		if err != nil {
			return err
		}
		if ok {
			break
		}
	}
	base := r.bodyOff + start

	if err := r.mem.AtomicStore64(base+entryOffSeq, uint64(seq)<<1|1); err != nil {
		return err
	}

	buf := make([]byte, entryFixedSize)
	binary.LittleEndian.PutUint64(buf[entryOffTSNs-8:], e.TSNs)
	binary.LittleEndian.PutUint32(buf[entryOffNodeID-8:], e.NodeID)
	binary.LittleEndian.PutUint32(buf[entryOffTopicID-8:], e.TopicID)
	buf[entryOffKind-8] = byte(e.Kind)
	binary.LittleEndian.PutUint32(buf[entryOffTickUs-8:], e.TickUs)
	binary.LittleEndian.PutUint32(buf[entryOffIPCNs-8:], e.IPCNs)
	binary.LittleEndian.PutUint16(buf[entryOffMsgLen-8:], uint16(len(e.Message)))
	if err := r.mem.WriteAt(base+8, buf); err != nil {
		return err
	}
	if err := r.mem.WriteAt(base+entryFixedSize, []byte(e.Message)); err != nil {
		return err
	}

	return r.mem.AtomicStore64(base+entryOffSeq, uint64(seq)<<1)
}

// ReadAt decodes the entry whose fixed prefix starts at body offset
// start, or returns ok=false if the slot was torn mid-read.
func (r *Ring) ReadAt(start uint32) (e Entry, ok bool, err error) {
	base := r.bodyOff + start
	seqWord, err := r.mem.AtomicLoad64(base + entryOffSeq)
	if err != nil {
		return Entry{}, false, err
	}
	if seqWord&1 != 0 {
		return Entry{}, false, nil
	}

	buf := make([]byte, entryFixedSize)
	if err := r.mem.ReadAt(base+8, buf); err != nil {
		return Entry{}, false, err
	}
	msgLen := binary.LittleEndian.Uint16(buf[entryOffMsgLen-8:])
	msg := make([]byte, msgLen)
	if err := r.mem.ReadAt(base+entryFixedSize, msg); err != nil {
		return Entry{}, false, err
	}

	seqAfter, err := r.mem.AtomicLoad64(base + entryOffSeq)
	if err != nil {
		return Entry{}, false, err
	}
	if seqAfter != seqWord {
		return Entry{}, false, nil
	}

	return Entry{
		Seq:     seqWord >> 1,
		TSNs:    binary.LittleEndian.Uint64(buf[entryOffTSNs-8:]),
		NodeID:  binary.LittleEndian.Uint32(buf[entryOffNodeID-8:]),
		TopicID: binary.LittleEndian.Uint32(buf[entryOffTopicID-8:]),
		Kind:    Kind(buf[entryOffKind-8]),
		TickUs:  binary.LittleEndian.Uint32(buf[entryOffTickUs-8:]),
		IPCNs:   binary.LittleEndian.Uint32(buf[entryOffIPCNs-8:]),
		Message: string(msg),
	}, true, nil
}

// Close releases the ring's backing memory.
func (r *Ring) Close() error { return r.mem.Close() }

// Capacity returns the ring body's byte capacity, excluding the header.
func (r *Ring) Capacity() uint32 { return r.capacity }

// WriteOffset loads the current physical write cursor (always within
// [0, capacity)), used by a control-plane sweep to know where to stop
// scanning forward from a given start point.
func (r *Ring) WriteOffset() (uint32, error) { return r.mem.AtomicLoad32(offWriteOff) }

// EntrySeq loads the monotonically increasing entry counter, the number
// of entries appended to the ring since creation (not wrapped).
func (r *Ring) EntrySeq() (uint32, error) { return r.mem.AtomicLoad32(offEntrySeq) }
