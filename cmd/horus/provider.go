package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/horus-robotics/horus/internal/manifest"
	"github.com/horus-robotics/horus/internal/resolver"
	"github.com/horus-robotics/horus/internal/sources"
)

// horusPrefix names the convention spec.md §4.4 assumes for "Ambiguity
// arbitration": a HORUS-prefixed name always means the first-party
// Registry, never PyPI/CratesIO.
const horusPrefix = "horus-"

// routingProvider implements resolver.Provider over the package source
// adapters: it decides, per package name, which adapter answers for it,
// then asks that adapter for versions and (for Registry packages only)
// fetches the tarball to read its own horus.yaml for transitive specs.
// PyPI and CratesIO packages are leaves from the resolver's perspective —
// pip/cargo own their own transitive dependency graph, so no further
// Registry-level specs are produced for them.
type routingProvider struct {
	ctx      context.Context
	adapters map[sources.Kind]sources.Adapter
	prompter sources.Prompter

	routed map[string]sources.Kind
}

func newRoutingProvider(ctx context.Context, adapters map[sources.Kind]sources.Adapter, prompter sources.Prompter) *routingProvider {
	return &routingProvider{ctx: ctx, adapters: adapters, prompter: prompter, routed: make(map[string]sources.Kind)}
}

func (rp *routingProvider) route(name string) (sources.Kind, error) {
	if kind, ok := rp.routed[name]; ok {
		return kind, nil
	}
	if strings.HasPrefix(strings.ToLower(name), horusPrefix) {
		rp.routed[name] = sources.KindRegistry
		return sources.KindRegistry, nil
	}
	pypi, hasPyPI := rp.adapters[sources.KindPyPI]
	crates, hasCrates := rp.adapters[sources.KindCratesIO]
	if !hasPyPI || !hasCrates {
		rp.routed[name] = sources.KindRegistry
		return sources.KindRegistry, nil
	}
	kind, err := sources.ResolveAmbiguousSource(rp.ctx, name, pypi, crates, rp.prompter)
	if err != nil {
		return "", err
	}
	rp.routed[name] = kind
	return kind, nil
}

func (rp *routingProvider) ProbeVersions(ctx context.Context, name string) ([]*semver.Version, error) {
	kind, err := rp.route(name)
	if err != nil {
		return nil, err
	}
	adapter, ok := rp.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("resolver: no adapter registered for %q's source %q", name, kind)
	}
	raw, err := adapter.ProbeVersions(ctx, name)
	if err != nil {
		return nil, err
	}
	out := make([]*semver.Version, 0, len(raw))
	for _, r := range raw {
		v, err := semver.NewVersion(r)
		if err != nil {
			continue // skip non-semver releases (e.g. PyPI pre-release oddities)
		}
		out = append(out, v)
	}
	return out, nil
}

func (rp *routingProvider) DependenciesOf(ctx context.Context, name, version string) ([]resolver.Spec, error) {
	kind, err := rp.route(name)
	if err != nil {
		return nil, err
	}
	if kind != sources.KindRegistry {
		return nil, nil
	}
	adapter := rp.adapters[kind]
	fetched, err := adapter.Fetch(ctx, name, version)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Load(filepath.Join(fetched.CachePath, "horus.yaml"))
	if err != nil {
		return nil, nil // a registry tarball with no horus.yaml simply has no further specs
	}
	return manifestSpecs(m), nil
}

// manifestSpecs converts a manifest's declared dependencies into resolver
// specs, resolving Path entries against the manifest's own directory.
func manifestSpecs(m *manifest.Manifest) []resolver.Spec {
	out := make([]resolver.Spec, 0, len(m.Dependencies))
	for _, d := range m.Dependencies {
		if d.IsPath() {
			out = append(out, resolver.Spec{Name: d.Name, Source: resolver.SourcePath, Path: m.ResolvePathDependency(d)})
			continue
		}
		out = append(out, resolver.Spec{Name: d.Name, Source: resolver.SourceRegistry, VersionReq: d.VersionReq})
	}
	return out
}

// lockedFromSolution converts a resolved solution's packages into locked
// packages, filling in each package's concrete source kind and checksum
// via its adapter's Fetch (already-cached after resolution's
// DependenciesOf calls, so this is typically a cache hit).
func (rp *routingProvider) lockedFromSolution(ctx context.Context, sol *resolver.Solution) ([]manifest.LockedPackage, error) {
	out := make([]manifest.LockedPackage, 0, len(sol.Packages))
	for _, p := range sol.Packages {
		if p.Source == resolver.SourcePath {
			out = append(out, manifest.LockedPackage{Name: p.Name, Version: manifest.DevVersion, Source: manifest.SourcePath, Path: p.Path})
			continue
		}
		kind, err := rp.route(p.Name)
		if err != nil {
			return nil, err
		}
		adapter := rp.adapters[kind]
		fetched, err := adapter.Fetch(ctx, p.Name, p.Version)
		if err != nil {
			return nil, err
		}
		out = append(out, manifest.LockedPackage{
			Name:     p.Name,
			Version:  p.Version,
			Source:   manifest.SourceKind(kind),
			Checksum: fetched.Checksum,
		})
	}
	return out, nil
}
