// Package session mints and tears down the per-orchestrator-invocation
// identifier that scopes a run's shared-memory namespace, per spec.md §3
// "Session id" and invariant 7 ("session shared-memory directories are
// removed on normal orchestrator exit and on receipt of termination
// signals delivered to the orchestrator").
package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/horus-robotics/horus/internal/transport"
)

// ID is a freshly minted 128-bit random session identifier, rendered as
// the UUID's canonical hex form for use in file paths and the
// HORUS_SESSION_ID environment variable.
type ID string

// New mints a fresh session id. Backed by google/uuid (already pulled in
// transitively by the teacher via libp2p; promoted here to a direct,
// load-bearing use) rather than a hand-rolled crypto/rand reader, since a
// 128-bit random identifier is exactly what a UUIDv4 already is.
func New() ID {
	return ID(uuid.NewString())
}

// Session owns the on-disk shared-memory namespace for one orchestrator
// invocation: /dev/shm/horus/sessions/<sid>/...
type Session struct {
	ID   ID
	Root string // /dev/shm/horus/sessions/<sid> (or the fallback temp root)
}

// Create allocates a session directory under shmRoot (normally
// transport.DefaultShmRoot()), mode 0700 restricted to the owning user per
// spec.md §5 "shared-memory segments are created with mode 0600 restricted
// to the owning user" (the containing directory follows the same policy).
func Create(shmRoot string) (*Session, error) {
	if shmRoot == "" {
		shmRoot = transport.DefaultShmRoot()
	}
	id := New()
	root := filepath.Join(shmRoot, "sessions", string(id))
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("session: creating %s: %w", root, err)
	}
	return &Session{ID: id, Root: root}, nil
}

// TopicSegmentPath returns the backing file path for a topic within this
// session, delegating to transport's canonical naming.
func (s *Session) TopicSegmentPath(topic string) string {
	return transport.SegmentPath(s.Root, topic)
}

// Destroy removes the session directory tree, satisfying invariant 7.
// Safe to call more than once; a missing directory is not an error.
func (s *Session) Destroy() error {
	if s == nil || s.Root == "" {
		return nil
	}
	if err := os.RemoveAll(s.Root); err != nil {
		return fmt.Errorf("session: removing %s: %w", s.Root, err)
	}
	return nil
}

// Env returns the HORUS_SESSION_ID environment assignment the
// orchestrator threads into every spawned child, per spec.md §6
// "Environment variables".
func (s *Session) Env() string {
	return "HORUS_SESSION_ID=" + string(s.ID)
}
