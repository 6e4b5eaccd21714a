package resolver

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/singleflight"
)

// Provider answers the two questions the resolver needs of a package
// source: which versions exist, and what a given version depends on.
// Package source adapters (internal/sources) implement the actual
// fetching; Provider only deals in metadata.
type Provider interface {
	// ProbeVersions returns every known version of name, in no
	// particular order; the resolver itself sorts highest-first.
	ProbeVersions(ctx context.Context, name string) ([]*semver.Version, error)
	// DependenciesOf returns the dependency specs declared by name at
	// version (i.e. that version's own manifest).
	DependenciesOf(ctx context.Context, name, version string) ([]Spec, error)
}

// memoProvider wraps a Provider so that repeated queries for the same
// (name) or (name, version) within a single resolve invocation hit the
// underlying provider exactly once, per spec.md §4.3 "Caching": "Provider
// queries ... are memoized per resolve invocation." The backtracking
// search issues its queries one at a time; singleflight collapses
// duplicate queries only when they are in flight at the same moment.
type memoProvider struct {
	inner Provider
	group singleflight.Group

	versions     map[string][]*semver.Version
	dependencies map[string][]Spec
}

func newMemoProvider(inner Provider) *memoProvider {
	return &memoProvider{
		inner:        inner,
		versions:     make(map[string][]*semver.Version),
		dependencies: make(map[string][]Spec),
	}
}

func (m *memoProvider) ProbeVersions(ctx context.Context, name string) ([]*semver.Version, error) {
	if v, ok := m.versions[name]; ok {
		return v, nil
	}
	v, err, _ := m.group.Do("versions:"+name, func() (interface{}, error) {
		return m.inner.ProbeVersions(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	versions := v.([]*semver.Version)
	m.versions[name] = versions
	return versions, nil
}

func (m *memoProvider) DependenciesOf(ctx context.Context, name, version string) ([]Spec, error) {
	key := name + "@" + version
	if d, ok := m.dependencies[key]; ok {
		return d, nil
	}
	d, err, _ := m.group.Do("deps:"+key, func() (interface{}, error) {
		return m.inner.DependenciesOf(ctx, name, version)
	})
	if err != nil {
		return nil, err
	}
	deps := d.([]Spec)
	m.dependencies[key] = deps
	return deps, nil
}

// StaticProvider is an in-memory Provider backed by fixed test/fixture
// data, useful for unit tests and for the System/Path adapters whose
// dependency graphs are known up front.
type StaticProvider struct {
	Versions     map[string][]string     // name -> version strings
	Dependencies map[string][]Spec       // "name@version" -> deps
}

func (s *StaticProvider) ProbeVersions(_ context.Context, name string) ([]*semver.Version, error) {
	raw, ok := s.Versions[name]
	if !ok {
		return nil, fmt.Errorf("resolver: no known versions for %q", name)
	}
	out := make([]*semver.Version, 0, len(raw))
	for _, r := range raw {
		v, err := semver.NewVersion(r)
		if err != nil {
			return nil, fmt.Errorf("resolver: invalid version %q for %q: %w", r, name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *StaticProvider) DependenciesOf(_ context.Context, name, version string) ([]Spec, error) {
	return s.Dependencies[name+"@"+version], nil
}
