package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/horus-robotics/horus/internal/cache"
	"github.com/horus-robotics/horus/internal/resolver"
	"github.com/horus-robotics/horus/internal/sources"
	"github.com/horus-robotics/horus/internal/transport"
)

// userError marks an error that maps to exit code 1 (spec.md §6: "bad
// manifest, resolution failure, unknown target").
type userError struct{ err error }

func (u *userError) Error() string { return u.err.Error() }
func (u *userError) Unwrap() error { return u.err }

func asUserError(err error) error {
	if err == nil {
		return nil
	}
	return &userError{err: err}
}

// networkError marks an error that maps to exit code 2 (spec.md §6:
// "network/registry error").
type networkError struct{ err error }

func (n *networkError) Error() string { return n.err.Error() }
func (n *networkError) Unwrap() error { return n.err }

func asNetworkError(err error) error {
	if err == nil {
		return nil
	}
	return &networkError{err: err}
}

// errCancelled is returned by commands interrupted via signal, mapping to
// exit code 130.
var errCancelled = errors.New("cancelled")

// exitCodeFor implements spec.md §6's exit code table.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var uerr *userError
	var nerr *networkError
	switch {
	case errors.Is(err, errCancelled):
		return 130
	case errors.As(err, &nerr):
		return 2
	case errors.As(err, &uerr):
		return 1
	default:
		return 1
	}
}

// solutionsFor maps a known error sentinel to the one-line remediation
// hint the "Solutions:" block renders, per SPEC_FULL.md §7. Unrecognized
// errors get no hint (nil).
func solutionsFor(err error) []string {
	switch {
	case errors.Is(err, sources.ErrAmbiguousSource):
		return []string{"pass --source pypi or --source cratesio to disambiguate"}
	case errors.Is(err, sources.ErrSystemPackageAbsent):
		return []string{"install the package via your system package manager, or drop it from horus.yaml"}
	case errors.Is(err, sources.ErrToolchainMissing):
		return []string{"install the missing toolchain and ensure it's on PATH"}
	case errors.Is(err, sources.ErrPathNotFound), errors.Is(err, sources.ErrPathNotADirectory):
		return []string{"check the path dependency's `path:` field in horus.yaml"}
	case errors.Is(err, cache.ErrChecksumMismatch):
		return []string{"the cached or downloaded package is corrupt; remove its cache entry and retry"}
	case errors.Is(err, transport.ErrPublisherAlreadyBound):
		return []string{"only one process may publish a given topic per session; check for a duplicate publisher"}
	case errors.Is(err, transport.ErrSegmentMissing):
		return []string{"start the publisher before the subscriber, or check HORUS_SESSION_ID"}
	default:
		var rerr *resolver.ResolveError
		if errors.As(err, &rerr) {
			return []string{"loosen the conflicting version constraints in horus.yaml"}
		}
		return nil
	}
}

// renderError formats err for stderr, appending a "Solutions:" block when
// one or more hints are recognized for it (SPEC_FULL.md §7).
func renderError(err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "error: %s", err)
	if hints := solutionsFor(err); len(hints) > 0 {
		b.WriteString("\nSolutions:")
		for _, h := range hints {
			fmt.Fprintf(&b, "\n  - %s", h)
		}
	}
	return b.String()
}
