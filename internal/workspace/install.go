package workspace

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/horus-robotics/horus/internal/cache"
	"github.com/horus-robotics/horus/internal/manifest"
	"github.com/horus-robotics/horus/internal/sources"
)

// Installer drives spec.md §4.5 "Install": materialize a locked
// package's global cache entry if missing, link or populate its overlay
// entry, write any sidecar, then recurse into its own manifest's
// dependencies (breadth-first, idempotent via a visited set).
type Installer struct {
	WS       *Workspace
	Cache    *cache.Store
	Adapters map[sources.Kind]sources.Adapter
	// ManifestOf loads the package-local manifest for a locked package,
	// used to discover its transitive dependencies already present in
	// the overall locked set. Returns (nil, nil) when a package carries
	// no further dependencies to install (System, or a manifest-less
	// Path leaf).
	ManifestOf func(pkg manifest.LockedPackage, cacheOrLinkDir string) (*manifest.Manifest, error)
}

// InstallAll installs every root package and, transitively, every
// dependency reachable from it that's present in lockedByName. A package
// already visited (by name) in this call is skipped, satisfying the
// idempotent-via-visited-set requirement even when multiple roots share
// a dependency.
func (in *Installer) InstallAll(ctx context.Context, roots []manifest.LockedPackage, lockedByName map[string]manifest.LockedPackage) error {
	visited := make(map[string]bool)
	queue := append([]manifest.LockedPackage{}, roots...)

	for len(queue) > 0 {
		pkg := queue[0]
		queue = queue[1:]
		if visited[pkg.Name] {
			continue
		}
		visited[pkg.Name] = true

		dir, err := in.installOne(ctx, pkg)
		if err != nil {
			return fmt.Errorf("workspace: installing %q: %w", pkg.Name, err)
		}
		if dir == "" || in.ManifestOf == nil {
			continue
		}

		childManifest, err := in.ManifestOf(pkg, dir)
		if err != nil {
			return fmt.Errorf("workspace: reading manifest for %q: %w", pkg.Name, err)
		}
		if childManifest == nil {
			continue
		}
		for _, dep := range childManifest.Dependencies {
			if visited[dep.Name] {
				continue
			}
			if locked, ok := lockedByName[dep.Name]; ok {
				queue = append(queue, locked)
			}
		}
	}
	return nil
}

// installOne materializes and links a single locked package, returning
// the directory its own manifest (if any) can be read from.
func (in *Installer) installOne(ctx context.Context, pkg manifest.LockedPackage) (string, error) {
	adapter, ok := in.Adapters[sources.Kind(pkg.Source)]
	if !ok {
		return "", fmt.Errorf("no adapter registered for source %q", pkg.Source)
	}

	switch pkg.Source {
	case manifest.SourceSystem:
		if err := sources.WriteSystemSidecar(in.WS.PackagesDir(), pkg.Name, pkg.Version); err != nil {
			return "", err
		}
		return "", nil

	case manifest.SourcePath:
		pathAdapter, ok := adapter.(*sources.PathAdapter)
		if !ok {
			return "", fmt.Errorf("system adapter for Path source has wrong type")
		}
		if err := pathAdapter.Link(in.WS.PackagesDir(), pkg.Name, pkg.Path); err != nil {
			return "", err
		}
		return pkg.Path, nil

	default:
		fetched, err := adapter.Fetch(ctx, pkg.Name, pkg.Version)
		if err != nil {
			return "", err
		}
		if fetched.CachePath == "" {
			return "", nil
		}
		if err := in.WS.LinkToCache(pkg.Name, fetched.CachePath); err != nil {
			return "", err
		}
		return filepath.Join(in.WS.PackagesDir(), pkg.Name), nil
	}
}
