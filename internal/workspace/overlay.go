// Package workspace implements the per-project `.horus/` overlay of
// spec.md §4.5: installing locked packages into a workspace, freezing the
// overlay back into an environment manifest, and restoring one onto a
// fresh workspace.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is a single project's `.horus/` directory.
type Workspace struct {
	Root string // the project directory containing .horus/
}

// Open ensures a workspace's overlay directory tree exists and returns a
// handle to it: packages/, bin/, lib/, include/, cache/ (spec.md §4.5
// "Overlay semantics").
func Open(root string) (*Workspace, error) {
	ws := &Workspace{Root: root}
	for _, dir := range ws.dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("workspace: creating %s: %w", dir, err)
		}
	}
	return ws, nil
}

func (w *Workspace) horusDir() string    { return filepath.Join(w.Root, ".horus") }
func (w *Workspace) PackagesDir() string { return filepath.Join(w.horusDir(), "packages") }
func (w *Workspace) BinDir() string      { return filepath.Join(w.horusDir(), "bin") }
func (w *Workspace) LibDir() string      { return filepath.Join(w.horusDir(), "lib") }
func (w *Workspace) IncludeDir() string  { return filepath.Join(w.horusDir(), "include") }
func (w *Workspace) CacheDir() string    { return filepath.Join(w.horusDir(), "cache") }
func (w *Workspace) LockPath() string    { return filepath.Join(w.horusDir(), ".lock") }

func (w *Workspace) dirs() []string {
	return []string{w.PackagesDir(), w.BinDir(), w.LibDir(), w.IncludeDir(), w.CacheDir()}
}

// OverlayKind classifies what a given package entry under packages/
// currently is, enforcing invariant 5 (a package name is never both a
// symlink and a local directory at once — by construction each entry is
// exactly one of these).
type OverlayKind int

const (
	OverlayAbsent OverlayKind = iota
	OverlaySymlink
	OverlayDirectory
	OverlayPathSidecar
	OverlaySystemSidecar
)

// Inspect reports what currently occupies packages/<name>.
func (w *Workspace) Inspect(name string) (OverlayKind, error) {
	entry := filepath.Join(w.PackagesDir(), name)
	info, err := os.Lstat(entry)
	switch {
	case err == nil:
		if info.Mode()&os.ModeSymlink != 0 {
			return OverlaySymlink, nil
		}
		return OverlayDirectory, nil
	case os.IsNotExist(err):
		// fall through to sidecar checks
	default:
		return OverlayAbsent, err
	}

	if _, err := os.Stat(filepath.Join(w.PackagesDir(), name+".path.json")); err == nil {
		return OverlayPathSidecar, nil
	}
	if _, err := os.Stat(filepath.Join(w.PackagesDir(), name+".system.json")); err == nil {
		return OverlaySystemSidecar, nil
	}
	return OverlayAbsent, nil
}

// LinkToCache replaces packages/<name> with a symlink to a global cache
// entry, remove-then-link per spec.md's atomicity note.
func (w *Workspace) LinkToCache(name, cacheEntryDir string) error {
	entry := filepath.Join(w.PackagesDir(), name)
	_ = os.RemoveAll(entry)
	for _, suffix := range []string{".path.json", ".system.json"} {
		_ = os.Remove(filepath.Join(w.PackagesDir(), name+suffix))
	}
	if err := os.Symlink(cacheEntryDir, entry); err != nil {
		return fmt.Errorf("workspace: linking %q into overlay: %w", name, err)
	}
	return nil
}

// Remove deletes a package's overlay entry and any sidecars, per
// spec.md's workspace-overlay-entry lifecycle ("removed on pkg remove").
func (w *Workspace) Remove(name string) error {
	entry := filepath.Join(w.PackagesDir(), name)
	if err := os.RemoveAll(entry); err != nil {
		return err
	}
	for _, suffix := range []string{".path.json", ".system.json"} {
		_ = os.Remove(filepath.Join(w.PackagesDir(), name+suffix))
	}
	return nil
}

// LinkBinary exposes an executable under bin/. The Installer does not
// call it.
func (w *Workspace) LinkBinary(name, target string) error {
	link := filepath.Join(w.BinDir(), name)
	_ = os.Remove(link)
	return os.Symlink(target, link)
}
