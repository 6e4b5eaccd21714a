package logbus

import (
	"testing"

	"github.com/horus-robotics/horus/internal/transport"
	"github.com/stretchr/testify/require"
)

func newTestRing(t *testing.T, capacity uint32) *Ring {
	t.Helper()
	mem := transport.NewInMemoryProvider(HeaderSize + capacity)
	r, err := CreateRing(mem, capacity)
	require.NoError(t, err)
	return r
}

func TestRingAppendAndReadBack(t *testing.T) {
	r := newTestRing(t, 4096)

	e := Entry{TSNs: 42, NodeID: 7, TopicID: 3, Kind: KindInfo, TickUs: 500, IPCNs: 100, Message: "boot complete"}
	require.NoError(t, r.Append(e))

	got, ok, err := r.ReadAt(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, e.NodeID, got.NodeID)
	require.Equal(t, e.Message, got.Message)
	require.Equal(t, uint64(1), got.Seq)
}

func TestRingRejectsOversizeEntry(t *testing.T) {
	r := newTestRing(t, 64)
	err := r.Append(Entry{Message: string(make([]byte, 200))})
	require.Error(t, err)
}

func TestRingWriteCursorWrapsWithoutDrift(t *testing.T) {
	// Entries sized so the third one can't fit before the physical end of
	// the ring, forcing a wrap. The cursor must land at the entry's
	// encoded size, not at whatever a naive running total would compute
	// from entry count * size — that's exactly the drift the physical
	// (not monotonic) write cursor exists to prevent.
	var entrySize uint32 = entryFixedSize + 10
	capacity := entrySize*2 + 5

	r := newTestRing(t, capacity)
	e := Entry{NodeID: 1, Kind: KindInfo, Message: string(make([]byte, 10))}

	require.NoError(t, r.Append(e))
	off, err := r.WriteOffset()
	require.NoError(t, err)
	require.Equal(t, entrySize, off)

	require.NoError(t, r.Append(e))
	off, err = r.WriteOffset()
	require.NoError(t, err)
	require.Equal(t, entrySize*2, off)

	// The third append doesn't fit in the remaining 5 bytes and wraps to 0.
	require.NoError(t, r.Append(e))
	off, err = r.WriteOffset()
	require.NoError(t, err)
	require.Equal(t, entrySize, off)

	got, ok, err := r.ReadAt(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, e.NodeID, got.NodeID)
}

func TestHealthDerivation(t *testing.T) {
	now := int64(10_000_000_000)

	require.Equal(t, HealthHealthy, Derive(NodeStats{LastSeenNs: now}, now))
	require.Equal(t, HealthWarning, Derive(NodeStats{LastSeenNs: now, MaxTickUs: 150_000}, now))
	require.Equal(t, HealthError, Derive(NodeStats{LastSeenNs: now, ErrorCount: 5}, now))
	require.Equal(t, HealthCritical, Derive(NodeStats{LastSeenNs: now, ErrorCount: 11}, now))
	require.Equal(t, HealthUnknown, Derive(NodeStats{LastSeenNs: 0}, now))
}

func TestAccumulateFoldsEntries(t *testing.T) {
	var stats NodeStats
	Accumulate(&stats, Entry{NodeID: 3, TSNs: 100, Kind: KindError, TickUs: 10})
	Accumulate(&stats, Entry{NodeID: 3, TSNs: 200, Kind: KindInfo, TickUs: 50})
	require.Equal(t, 1, stats.ErrorCount)
	require.Equal(t, uint32(50), stats.MaxTickUs)
	require.Equal(t, int64(200), stats.LastSeenNs)
}

func TestDirectoryResolvesTopicMapEntries(t *testing.T) {
	d := NewDirectory()
	d.Apply(Entry{Kind: KindTopicMap, TopicID: 9, Message: "odom/front"})

	name, ok := d.TopicName(9)
	require.True(t, ok)
	require.Equal(t, "odom/front", name)

	d.Apply(Entry{Kind: KindTopicUnmap, TopicID: 9})
	_, ok = d.TopicName(9)
	require.False(t, ok)
}
