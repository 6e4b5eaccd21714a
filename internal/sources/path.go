package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PathAdapter links a workspace dependency directly to a directory on
// disk, per spec.md §4.4: "creates a symlink from the workspace overlay
// to the path as provided ... writes a `<name>.path.json` sidecar."
type PathAdapter struct{}

func NewPathAdapter() *PathAdapter { return &PathAdapter{} }

func (p *PathAdapter) Kind() Kind { return KindPath }

// ProbeVersions always returns the sentinel "dev" version: Path
// dependencies are leaves taken verbatim from their own manifest.
func (p *PathAdapter) ProbeVersions(_ context.Context, _ string) ([]string, error) {
	return []string{"dev"}, nil
}

// Fetch is a no-op for Path sources: there is nothing to download.
func (p *PathAdapter) Fetch(_ context.Context, name, version string) (Fetched, error) {
	return Fetched{Version: version}, nil
}

// Link creates the overlay symlink and sidecar for a Path dependency.
// sourcePath must already be resolved to an absolute path (callers use
// manifest.Manifest.ResolvePathDependency against the dependent's own
// manifest directory).
func (p *PathAdapter) Link(overlayDir, name, sourcePath string) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPathNotFound, sourcePath)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrPathNotADirectory, sourcePath)
	}

	link := filepath.Join(overlayDir, name)
	_ = os.Remove(link) // overlay replacement is remove-then-link (spec.md §4.5)
	if err := os.Symlink(sourcePath, link); err != nil {
		return fmt.Errorf("sources: linking path dependency %q: %w", name, err)
	}

	sidecar, err := json.Marshal(map[string]string{"name": name, "version": "dev", "source_path": sourcePath})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(overlayDir, name+".path.json"), sidecar, 0o644)
}
