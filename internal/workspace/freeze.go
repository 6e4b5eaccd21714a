package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/horus-robotics/horus/internal/cache"
	"github.com/horus-robotics/horus/internal/manifest"
)

// pathSidecar and systemSidecar mirror the JSON written by
// sources.PathAdapter.Link and sources.WriteSystemSidecar respectively;
// freeze reads them back to reconstruct a LockedPackage without importing
// the sources package (workspace only needs the field shapes here).
type pathSidecar struct {
	Path string `json:"source_path"`
}

type systemSidecar struct {
	Version string `json:"version"`
}

// Freeze walks the overlay's packages/ directory and reconstructs the
// locked-package set it represents, per spec.md §4.5 "Freeze": "normalize
// each overlay entry — link, directory, or sidecar — into a
// LockedPackage". horusVersion is stamped into the resulting manifest
// as-is (the caller knows the running binary's version).
func (w *Workspace) Freeze(name, description, horusVersion string) (*manifest.Environment, error) {
	entries, err := os.ReadDir(w.PackagesDir())
	if err != nil {
		return nil, fmt.Errorf("workspace: reading packages dir: %w", err)
	}

	seen := make(map[string]bool)
	var packages []manifest.LockedPackage
	for _, entry := range entries {
		base := entry.Name()
		pkgName := base
		isSidecar := strings.HasSuffix(base, ".path.json") || strings.HasSuffix(base, ".system.json")
		if isSidecar {
			pkgName = strings.TrimSuffix(strings.TrimSuffix(base, ".path.json"), ".system.json")
		}
		if seen[pkgName] {
			continue
		}
		seen[pkgName] = true

		pkg, err := w.freezeOne(pkgName)
		if err != nil {
			return nil, fmt.Errorf("workspace: freezing %q: %w", pkgName, err)
		}
		if pkg != nil {
			packages = append(packages, *pkg)
		}
	}

	probe := probeSystem()
	env := &manifest.Environment{
		HorusID:      manifest.ComputeHorusID(packages, probe),
		Name:         name,
		Description:  description,
		Packages:     packages,
		System:       probe,
		CreatedAt:    frozenTime(),
		HorusVersion: horusVersion,
	}
	return env, nil
}

// freezeOne classifies a single overlay entry and builds its
// LockedPackage. Returns (nil, nil) for an entry that leaves no
// reconstructable record (shouldn't normally happen, but is not fatal).
func (w *Workspace) freezeOne(name string) (*manifest.LockedPackage, error) {
	kind, err := w.Inspect(name)
	if err != nil {
		return nil, err
	}
	// PathAdapter.Link leaves both a symlink and a .path.json sidecar; the
	// sidecar is what marks the entry as a Path dependency.
	if kind == OverlaySymlink {
		if _, statErr := os.Stat(filepath.Join(w.PackagesDir(), name+".path.json")); statErr == nil {
			kind = OverlayPathSidecar
		}
	}

	switch kind {
	case OverlaySymlink:
		target, err := os.Readlink(filepath.Join(w.PackagesDir(), name))
		if err != nil {
			return nil, err
		}
		base := filepath.Base(target)
		pkgName, version := splitCacheEntryName(name, base)
		source, err := sourceFromCachePrefix(base)
		if err != nil {
			return nil, err
		}
		checksum, err := cache.HashDir(target)
		if err != nil {
			return nil, err
		}
		return &manifest.LockedPackage{Name: pkgName, Version: version, Source: source, Checksum: checksum}, nil

	case OverlayDirectory:
		// A plain directory with no recorded sidecar: treat as an
		// already-materialized local copy with no further provenance.
		return &manifest.LockedPackage{Name: name, Version: manifest.DevVersion, Source: manifest.SourcePath}, nil

	case OverlayPathSidecar:
		var side pathSidecar
		if err := readSidecarJSON(filepath.Join(w.PackagesDir(), name+".path.json"), &side); err != nil {
			return nil, err
		}
		return &manifest.LockedPackage{Name: name, Version: manifest.DevVersion, Source: manifest.SourcePath, Path: side.Path}, nil

	case OverlaySystemSidecar:
		var side systemSidecar
		if err := readSidecarJSON(filepath.Join(w.PackagesDir(), name+".system.json"), &side); err != nil {
			return nil, err
		}
		return &manifest.LockedPackage{Name: name, Version: side.Version, Source: manifest.SourceSystem}, nil

	default:
		return nil, nil
	}
}

func readSidecarJSON(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// splitCacheEntryName pulls name@version apart from a cache entry's base
// directory name, falling back to the overlay entry name when the cache
// directory doesn't carry the expected "@" separator.
func splitCacheEntryName(overlayName, cacheBase string) (name, version string) {
	trimmed := cacheBase
	for _, prefix := range []string{"pypi_", "cratesio_"} {
		trimmed = strings.TrimPrefix(trimmed, prefix)
	}
	if at := strings.LastIndex(trimmed, "@"); at >= 0 {
		return overlayName, trimmed[at+1:]
	}
	return overlayName, ""
}

// sourceFromCachePrefix infers which adapter populated a cache entry from
// its directory name prefix, per the on-disk naming convention each
// adapter's Fetch uses (see internal/sources).
func sourceFromCachePrefix(cacheBase string) (manifest.SourceKind, error) {
	switch {
	case strings.HasPrefix(cacheBase, "pypi_"):
		return manifest.SourcePyPI, nil
	case strings.HasPrefix(cacheBase, "cratesio_"):
		return manifest.SourceCratesIO, nil
	default:
		return manifest.SourceRegistry, nil
	}
}

func probeSystem() manifest.SystemProbe {
	return manifest.SystemProbe{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// frozenTime is the one place freeze needs wall-clock time; callers in
// tests can construct Environment values directly to avoid depending on
// real time.
func frozenTime() time.Time {
	return time.Now().UTC()
}
