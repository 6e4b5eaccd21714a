package control

import (
	"path/filepath"
	"testing"

	"github.com/horus-robotics/horus/internal/logbus"
	"github.com/horus-robotics/horus/internal/transport"
	"github.com/stretchr/testify/require"
)

func newTestRing(t *testing.T, capacity uint32) *logbus.Ring {
	t.Helper()
	mem := transport.NewInMemoryProvider(logbus.HeaderSize + capacity)
	r, err := logbus.CreateRing(mem, capacity)
	require.NoError(t, err)
	return r
}

func TestViewNodesFoldsRingIntoHealthPerNode(t *testing.T) {
	ring := newTestRing(t, 4096)
	require.NoError(t, ring.Append(logbus.Entry{NodeID: 1, TopicID: 5, TSNs: 100, Kind: logbus.KindInfo, TickUs: 10}))
	require.NoError(t, ring.Append(logbus.Entry{NodeID: 1, TopicID: 5, TSNs: 200, Kind: logbus.KindError, TickUs: 20}))
	require.NoError(t, ring.Append(logbus.Entry{NodeID: 2, TopicID: 5, TSNs: 300, Kind: logbus.KindInfo, TickUs: 5}))

	ps, err := OpenParamStore(filepath.Join(t.TempDir(), "params.json"))
	require.NoError(t, err)
	view := NewView(t.TempDir(), ring, ps, func() int64 { return 300 })

	nodes, err := view.Nodes(0, 0)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	byID := make(map[uint32]NodeView, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	require.Equal(t, 1, byID[1].Stats.ErrorCount)
	require.Equal(t, 0, byID[2].Stats.ErrorCount)
}

func TestViewNodesFiltersByNodeID(t *testing.T) {
	ring := newTestRing(t, 4096)
	require.NoError(t, ring.Append(logbus.Entry{NodeID: 1, TSNs: 1, Kind: logbus.KindInfo}))
	require.NoError(t, ring.Append(logbus.Entry{NodeID: 2, TSNs: 2, Kind: logbus.KindInfo}))

	ps, err := OpenParamStore(filepath.Join(t.TempDir(), "params.json"))
	require.NoError(t, err)
	view := NewView(t.TempDir(), ring, ps, nil)

	nodes, err := view.Nodes(2, 0)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, uint32(2), nodes[0].ID)
}

func TestViewTopicsDiscoversNoSegmentsInEmptyRoot(t *testing.T) {
	ps, err := OpenParamStore(filepath.Join(t.TempDir(), "params.json"))
	require.NoError(t, err)
	view := NewView(t.TempDir(), newTestRing(t, 64), ps, nil)

	topics, err := view.Topics()
	require.NoError(t, err)
	require.Empty(t, topics)
}
