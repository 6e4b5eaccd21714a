package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// lockAcquireTimeout bounds how long a caller waits for a workspace's
// .horus/.lock before giving up, so a stuck install/restore elsewhere
// fails loudly instead of hanging forever.
const lockAcquireTimeout = 10 * time.Second

// Lock serializes concurrent install/freeze/restore operations against
// the same workspace via an advisory file lock at .horus/.lock, per
// spec.md's note that the overlay is "not safe for concurrent mutation
// from two processes without an external lock".
type Lock struct {
	fl *flock.Flock
}

// AcquireLock blocks (up to lockAcquireTimeout) until the workspace lock
// is obtained, returning a Lock the caller must Release.
func (w *Workspace) AcquireLock(ctx context.Context) (*Lock, error) {
	fl := flock.New(w.LockPath())

	ctx, cancel := context.WithTimeout(ctx, lockAcquireTimeout)
	defer cancel()

	ok, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("workspace: acquiring lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("workspace: timed out waiting for lock at %s", w.LockPath())
	}
	return &Lock{fl: fl}, nil
}

// Release unlocks the workspace.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
