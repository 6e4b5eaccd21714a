package control

import (
	"fmt"

	"github.com/horus-robotics/horus/internal/logbus"
	"github.com/horus-robotics/horus/internal/transport"
)

// TopicView describes one discovered topic segment for introspection, as
// read from its header by transport.Discover.
type TopicView struct {
	Name      string
	SlotSize  uint32
	SlotCount uint32
	WriteSeq  uint64
	Pubs      uint32
	Subs      uint32
}

// NodeView describes one node's derived health and latest telemetry,
// folded from the log ring per spec.md §4.2.
type NodeView struct {
	Name   string
	ID     uint32
	Health logbus.HealthState
	Stats  logbus.NodeStats
}

// View composes (i) session topic segments, (ii) the log ring (filtered
// by node or topic), and (iii) the parameter store into the read-only
// snapshot spec.md §4.8 describes. It holds no long-lived state of its
// own beyond the directory, which accumulates TopicMap/TopicUnmap/name
// registrations as Refresh sweeps the ring.
type View struct {
	SessionRoot string
	Ring        *logbus.Ring
	Dir         *logbus.Directory
	Params      *ParamStore

	nowNs func() int64
}

// NewView constructs a View over a session's shared-memory root and the
// shared log ring, with a fresh, process-local directory (spec.md §9:
// injected per instance, not a hidden global).
func NewView(sessionRoot string, ring *logbus.Ring, params *ParamStore, nowNs func() int64) *View {
	return &View{
		SessionRoot: sessionRoot,
		Ring:        ring,
		Dir:         logbus.NewDirectory(),
		Params:      params,
		nowNs:       nowNs,
	}
}

// Topics enumerates the session's currently bound topic segments by
// reading each candidate file's header (spec.md §4.1 "Discovery").
func (v *View) Topics() ([]TopicView, error) {
	infos, err := transport.Discover(v.SessionRoot)
	if err != nil {
		return nil, fmt.Errorf("control: discovering topics: %w", err)
	}
	out := make([]TopicView, 0, len(infos))
	for _, info := range infos {
		out = append(out, TopicView{
			Name:      info.Topic,
			SlotSize:  info.SlotSize,
			SlotCount: info.SlotCount,
			WriteSeq:  info.WriteSeq,
			Pubs:      info.PubCount,
			Subs:      info.SubCount,
		})
	}
	return out, nil
}

// Nodes sweeps the log ring and folds it into a per-node health view,
// per spec.md §4.2's health-state table. nodeFilter, if non-zero,
// restricts the sweep to a single node id; topicFilter, if non-zero,
// restricts it to entries tagged with that topic id.
func (v *View) Nodes(nodeFilter, topicFilter uint32) ([]NodeView, error) {
	entries, err := logbus.Sweep(v.Ring)
	if err != nil {
		return nil, fmt.Errorf("control: sweeping log ring: %w", err)
	}

	stats := make(map[uint32]*logbus.NodeStats)
	order := make([]uint32, 0)
	for _, e := range entries {
		v.Dir.Apply(e)
		if nodeFilter != 0 && e.NodeID != nodeFilter {
			continue
		}
		if topicFilter != 0 && e.TopicID != topicFilter {
			continue
		}
		s, ok := stats[e.NodeID]
		if !ok {
			s = &logbus.NodeStats{}
			stats[e.NodeID] = s
			order = append(order, e.NodeID)
		}
		logbus.Accumulate(s, e)
	}

	now := int64(0)
	if v.nowNs != nil {
		now = v.nowNs()
	}

	out := make([]NodeView, 0, len(order))
	for _, id := range order {
		name, _ := v.Dir.NodeName(id)
		if name == "" {
			name = fmt.Sprintf("node-%d", id)
		}
		out = append(out, NodeView{
			Name:   name,
			ID:     id,
			Health: logbus.Derive(*stats[id], now),
			Stats:  *stats[id],
		})
	}
	return out, nil
}
