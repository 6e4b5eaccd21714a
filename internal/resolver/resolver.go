package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Resolver runs the backtracking search of spec.md §4.3 over a Provider.
type Resolver struct {
	provider *memoProvider
}

// New wraps provider with per-invocation memoization and returns a ready
// Resolver.
func New(provider Provider) *Resolver {
	return &Resolver{provider: newMemoProvider(provider)}
}

// state is the resolver's working assignment. Every branch attempt clones
// it rather than mutating in place and rolling back by hand: simpler to
// reason about than delta-undo, and dependency graphs are small enough
// that the extra copying is immaterial.
type state struct {
	chosen      map[string]Resolved
	constraints map[string][]*semver.Constraints
	warnings    []Warning
}

func newState() state {
	return state{chosen: map[string]Resolved{}, constraints: map[string][]*semver.Constraints{}}
}

func (s state) clone() state {
	chosen := make(map[string]Resolved, len(s.chosen))
	for k, v := range s.chosen {
		chosen[k] = v
	}
	constraints := make(map[string][]*semver.Constraints, len(s.constraints))
	for k, v := range s.constraints {
		cp := make([]*semver.Constraints, len(v))
		copy(cp, v)
		constraints[k] = cp
	}
	warnings := make([]Warning, len(s.warnings))
	copy(warnings, s.warnings)
	return state{chosen: chosen, constraints: constraints, warnings: warnings}
}

// Resolve runs the algorithm against top-level specs (spec.md §4.3 step
// 1: "Build a DAG seeded by top-level specs").
func (r *Resolver) Resolve(ctx context.Context, top []Spec) (*Solution, error) {
	st, err := r.solve(ctx, top, newState())
	if err != nil {
		return nil, err
	}

	packages := make([]Resolved, 0, len(st.chosen))
	for _, res := range st.chosen {
		packages = append(packages, res)
	}
	sort.Slice(packages, func(i, j int) bool { return packages[i].Name < packages[j].Name })
	return &Solution{Packages: packages, Warnings: st.warnings}, nil
}

func (r *Resolver) solve(ctx context.Context, pending []Spec, st state) (state, error) {
	if len(pending) == 0 {
		return st, nil
	}
	spec, rest := pending[0], pending[1:]

	if spec.Source == SourcePath {
		return r.solvePath(ctx, spec, rest, st)
	}
	return r.solveRegistry(ctx, spec, rest, st)
}

func (r *Resolver) solvePath(ctx context.Context, spec Spec, rest []Spec, st state) (state, error) {
	next := st.clone()
	if existing, ok := next.chosen[spec.Name]; ok && existing.Source == SourceRegistry {
		next.warnings = append(next.warnings, Warning{
			Kind:   WarningPathOverridesRegistry,
			Name:   spec.Name,
			Detail: fmt.Sprintf("path dependency %q overrides previously-selected registry version %s", spec.Name, existing.Version),
		})
	}
	// Path dependencies are leaves: their own manifest's version is taken
	// verbatim and they do not participate in semver unification.
	next.chosen[spec.Name] = Resolved{Name: spec.Name, Version: spec.pathVersion(), Source: SourcePath, Path: spec.Path}
	return r.solve(ctx, rest, next)
}

// pathVersion is a placeholder until the caller supplies the path
// manifest's own declared version; Spec carries VersionReq for that
// purpose when known (empty defaults to the "dev" sentinel downstream, in
// internal/manifest.DevVersion).
func (s Spec) pathVersion() string {
	if s.VersionReq != "" && s.VersionReq != "*" {
		return s.VersionReq
	}
	return "dev"
}

func (r *Resolver) solveRegistry(ctx context.Context, spec Spec, rest []Spec, st state) (state, error) {
	req, err := semver.NewConstraint(spec.VersionReq)
	if err != nil {
		return state{}, fmt.Errorf("resolver: invalid version constraint %q for %q: %w", spec.VersionReq, spec.Name, err)
	}

	if existing, ok := st.chosen[spec.Name]; ok {
		if existing.Source == SourcePath {
			// Path already won this name; Registry specs on the same name
			// are non-fatal and simply don't further constrain it.
			return r.solve(ctx, rest, st)
		}
		v, verr := semver.NewVersion(existing.Version)
		if verr != nil {
			return state{}, verr
		}
		if !req.Check(v) {
			return state{}, &ResolveError{Conflicts: []UnsatisfiedConstraint{{
				Name:        spec.Name,
				Constraints: append(constraintStrings(st.constraints[spec.Name]), spec.VersionReq),
			}}}
		}
		next := st.clone()
		next.constraints[spec.Name] = append(next.constraints[spec.Name], req)
		return r.solve(ctx, rest, next)
	}

	versions, err := r.provider.ProbeVersions(ctx, spec.Name)
	if err != nil {
		return state{}, err
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].GreaterThan(versions[j]) })

	var lastErr error
	for _, v := range versions {
		if !req.Check(v) {
			continue
		}
		deps, err := r.provider.DependenciesOf(ctx, spec.Name, v.String())
		if err != nil {
			return state{}, err
		}

		next := st.clone()
		next.constraints[spec.Name] = []*semver.Constraints{req}
		next.chosen[spec.Name] = Resolved{Name: spec.Name, Version: v.String(), Source: SourceRegistry}

		newPending := make([]Spec, 0, len(rest)+len(deps))
		newPending = append(newPending, rest...)
		newPending = append(newPending, deps...)

		result, err := r.solve(ctx, newPending, next)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	if lastErr != nil {
		if re, ok := lastErr.(*ResolveError); ok {
			return state{}, re
		}
		return state{}, lastErr
	}
	return state{}, &ResolveError{Conflicts: []UnsatisfiedConstraint{{
		Name:        spec.Name,
		Constraints: []string{spec.VersionReq},
	}}}
}

func constraintStrings(cs []*semver.Constraints) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}
