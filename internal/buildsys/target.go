// Package buildsys implements the build driver of spec.md §4.6: language
// dispatch, incremental caching keyed by source/overlay content, and
// batch compilation of native targets sharing overlay libraries.
package buildsys

import "github.com/horus-robotics/horus/internal/manifest"

// Target is one buildable unit: a manifest plus the specific entrypoint
// within it (a workspace can hold several targets sharing one overlay).
type Target struct {
	Name     string
	Manifest *manifest.Manifest
	// SourcePath is the target's primary entrypoint file (the manifest's
	// directory for an interpreted target, or a specific source file for
	// native/C++ ones).
	SourcePath string
	Release    bool
}

// Result describes the outcome of building (or skipping) a target.
type Result struct {
	ArtifactPath string
	FromCache    bool
}
