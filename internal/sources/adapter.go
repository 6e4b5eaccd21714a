// Package sources implements the package source adapters of spec.md
// §4.4: Registry, PyPI, CratesIO, System, and Path. Each adapter exposes
// the same two operations — enumerate versions and materialize a version
// into the global cache — behind the Adapter interface, the tagged-
// variant-as-interface shape used throughout the teacher's own pluggable
// subsystems (e.g. kernel/threads/sab's MemoryProvider).
package sources

import "context"

// Kind names a source adapter variant, also used as the sidecar
// metadata.json "source" field.
type Kind string

const (
	KindRegistry Kind = "Registry"
	KindPyPI     Kind = "PyPI"
	KindCratesIO Kind = "CratesIO"
	KindSystem   Kind = "System"
	KindPath     Kind = "Path"
)

// Fetched describes a materialized package payload: either a directory
// under the global cache, or (System/Path) no cache entry at all.
type Fetched struct {
	CachePath string // empty for System/Path
	Version   string
	Checksum  string // empty when the source doesn't provide one (System/Path)
}

// Adapter is the polymorphic package source interface from spec.md §4.4:
// "exposes fetch(name, version) -> CachePath and probe_versions(name) ->
// [Version]".
type Adapter interface {
	Kind() Kind
	ProbeVersions(ctx context.Context, name string) ([]string, error)
	Fetch(ctx context.Context, name, version string) (Fetched, error)
}

// Prompter asks the interactive question a System-adapter restore or a
// name found in both PyPI and CratesIO may require (spec.md §4.4 "Ambiguity arbitration"
// and §7). Implementations back onto stdin/stdout in the CLI and a
// scripted responder in tests.
type Prompter interface {
	// Choose presents options and returns the selected one, or an empty
	// string if the user cancels.
	Choose(question string, options []string) (string, error)
}
