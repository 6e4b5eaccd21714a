package logbus

import "sync"

// Directory resolves the small integer node/topic ids carried in each log
// entry back to human-readable names, maintained alongside the ring so
// readers don't have to carry string tables through shared memory
// themselves (spec.md §4.2: "the control plane resolves ids to names via
// a small directory maintained alongside the ring").
type Directory struct {
	mu     sync.RWMutex
	nodes  map[uint32]string
	topics map[uint32]string
}

// NewDirectory returns an empty in-process directory. It is populated as
// TopicMap/TopicUnmap entries and node registrations are observed.
func NewDirectory() *Directory {
	return &Directory{nodes: make(map[uint32]string), topics: make(map[uint32]string)}
}

func (d *Directory) RegisterNode(id uint32, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes[id] = name
}

func (d *Directory) RegisterTopic(id uint32, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.topics[id] = name
}

func (d *Directory) UnregisterTopic(id uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.topics, id)
}

// NodeName resolves a node id, returning ok=false if unknown.
func (d *Directory) NodeName(id uint32) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.nodes[id]
	return name, ok
}

// TopicName resolves a topic id, returning ok=false if unknown or unmapped.
func (d *Directory) TopicName(id uint32) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.topics[id]
	return name, ok
}

// Apply folds directory-relevant entries (TopicMap/TopicUnmap) into the
// directory as they are observed during a ring sweep.
func (d *Directory) Apply(e Entry) {
	switch e.Kind {
	case KindTopicMap:
		d.RegisterTopic(e.TopicID, e.Message)
	case KindTopicUnmap:
		d.UnregisterTopic(e.TopicID)
	}
}
