// Package logbus implements the cross-process log and telemetry ring
// described in spec.md §4.2: a single well-known shared segment that every
// node writes structured entries into, and that the control plane reads
// to derive per-node health.
package logbus

// Wire layout for the global log ring. The header mirrors the transport
// segment header (internal/transport/layout.go) but the ring itself is a
// flat byte arena rather than fixed slots, since entries are variable
// length — the bump-allocator-with-wraparound shape is grounded on the
// teacher's SlabAllocator/SlabPage bitmap pages
// (kernel/threads/arena/slab.go), adapted here from fixed-size objects to
// a single monotonically advancing write cursor over a ring of bytes.
const (
	Magic   uint32 = 0x484C4F47 // "HLOG"
	Version uint16 = 1

	HeaderSize = 32

	offMagic    = 0
	offVersion  = 4
	offRingSize = 8  // u32: total ring capacity in bytes
	offWriteOff = 16 // u32, atomic: next write offset, always in [0, ring_size)
	offEntrySeq = 20 // u32, atomic: monotonically increasing entry counter

	// EntryHeaderSize is the fixed-size prefix of every log entry.
	EntryHeaderSize = 8 + 4 + 4 + 1 + 4 + 4 + 2 // ts_ns+node_id+topic_id+kind+tick_us+ipc_ns+msg_len

	entryOffSeq     = 0 // u64 seqlock word, reusing the transport slot convention
	entryOffTSNs    = 8
	entryOffNodeID  = 16
	entryOffTopicID = 20
	entryOffKind    = 24
	entryOffTickUs  = 25
	entryOffIPCNs   = 29
	entryOffMsgLen  = 33
	entryFixedSize  = 35 // bytes before the variable-length message
)

// DefaultRingSize is the default capacity of the global log ring
// (64 Ki entries' worth of headroom at a conservative average entry size).
const DefaultRingSize = 64 * 1024 * 96

// DefaultLogPath is the well-known shared-memory path for the global ring.
const DefaultLogPath = "/dev/shm/horus/logs"

// Kind enumerates the log entry categories from spec.md §4.2.
type Kind uint8

const (
	KindInfo Kind = iota
	KindWarn
	KindError
	KindPublish
	KindSubscribe
	KindTopicMap
	KindTopicUnmap
)

func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindWarn:
		return "warn"
	case KindError:
		return "error"
	case KindPublish:
		return "publish"
	case KindSubscribe:
		return "subscribe"
	case KindTopicMap:
		return "topic_map"
	case KindTopicUnmap:
		return "topic_unmap"
	default:
		return "unknown"
	}
}
