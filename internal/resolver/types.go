// Package resolver implements the dependency resolution algorithm of
// spec.md §4.3: a backtracking search over a DAG of Registry and Path
// specs, unifying Registry versions via semver constraints and leaving
// Path dependencies untouched.
//
// The version-ordering and topological-sort shape is grounded on the
// teacher's ModuleRegistry.GetDependencyOrder (kernel/threads/registry/
// loader.go), which walks a dependency map with Kahn's algorithm and
// rejects version mismatches against min/max bounds; here the bespoke
// VersionTriple bounds check is replaced with real semver constraint
// satisfaction via Masterminds/semver, and the walk gains backtracking so
// a provider's declared dependency set can still be satisfied if the
// locally-first candidate turns out to conflict downstream.
package resolver

import "github.com/Masterminds/semver/v3"

// SourceKind distinguishes a Registry spec (participates in semver
// unification) from a Path spec (a leaf, verbatim version).
type SourceKind int

const (
	SourceRegistry SourceKind = iota
	SourcePath
)

// Spec is a single dependency requirement, either top-level (from the
// workspace manifest) or transitive (declared by an already-selected
// package's own manifest).
type Spec struct {
	Name       string
	Source     SourceKind
	VersionReq string // semver constraint string, e.g. "^1.2"; "*" default
	Path       string // set when Source == SourcePath
}

// Resolved is one name's final selected version in a solution.
type Resolved struct {
	Name    string
	Version string
	Source  SourceKind
	Path    string
}

// Warning is a non-fatal condition surfaced alongside a successful
// resolve, e.g. PathOverridesRegistry.
type Warning struct {
	Kind string
	Name string
	Detail string
}

const WarningPathOverridesRegistry = "PathOverridesRegistry"

// Solution is the output of a successful Resolve call.
type Solution struct {
	Packages []Resolved
	Warnings []Warning
}

// constraint accumulates every semver requirement seen so far for one
// package name, so a later candidate can be checked against all of them
// at once rather than just the edge that introduced it.
type constraint struct {
	reqs []*semver.Constraints
}

func (c *constraint) add(req *semver.Constraints) { c.reqs = append(c.reqs, req) }

func (c *constraint) satisfiedBy(v *semver.Version) bool {
	for _, r := range c.reqs {
		if !r.Check(v) {
			return false
		}
	}
	return true
}
