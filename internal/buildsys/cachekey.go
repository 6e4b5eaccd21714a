package buildsys

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sort"
)

// ComputeCacheKey hashes a target's source mtime set, its release/debug
// flag, and its overlay dependency set's content hash (spec.md §4.6:
// "cache key per target = hash(source mtime set, release flag, overlay
// dependency set)"). The overlay dependency set enters by content hash
// rather than by mtime, per the Open Questions resolution: mtimes are
// unreliable across a symlinked overlay, but a cache entry's content
// hash is stable.
func ComputeCacheKey(sourceFiles []string, release bool, overlayDepsContentHash string) ([32]byte, error) {
	sorted := append([]string{}, sourceFiles...)
	sort.Strings(sorted)

	h := sha256.New()
	for _, path := range sorted {
		info, err := os.Stat(path)
		if err != nil {
			return [32]byte{}, fmt.Errorf("buildsys: stating source %s: %w", path, err)
		}
		fmt.Fprintf(h, "%s\x00%d\x00", path, info.ModTime().UnixNano())
	}
	fmt.Fprintf(h, "release=%v\x00deps=%s\x00", release, overlayDepsContentHash)

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}
