package buildsys

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/horus-robotics/horus/internal/cache"
	"github.com/horus-robotics/horus/internal/manifest"
	"github.com/horus-robotics/horus/internal/workspace"
)

// Driver dispatches a build by a target's declared language and skips
// recompilation on a cache hit, per spec.md §4.6.
type Driver struct {
	WS    *workspace.Workspace
	Cache *cache.Store
	store *Store
}

// NewDriver opens the workspace's incremental build cache at
// .horus/cache/build.cache.
func NewDriver(ws *workspace.Workspace, store *cache.Store) (*Driver, error) {
	s, err := Open(filepath.Join(ws.CacheDir(), "build.cache"))
	if err != nil {
		return nil, err
	}
	return &Driver{WS: ws, Cache: store, store: s}, nil
}

// Build compiles (or reuses the cached artifact for) a single target.
// sources is the concrete file list compiled for native/C++ targets;
// overlayDepsContentHash is a stable digest of the workspace's overlay
// dependency set (e.g. the environment's horus_id).
func (d *Driver) Build(ctx context.Context, t Target, sources []string, overlayDepsContentHash string) (Result, error) {
	targetHash := TargetHash(t.Manifest.Dir, t.Name)
	wantKey, err := ComputeCacheKey(sources, t.Release, overlayDepsContentHash)
	if err != nil {
		return Result{}, err
	}

	if gotKey, artifact, found, err := d.store.Lookup(targetHash); err == nil && found && gotKey == wantKey {
		return Result{ArtifactPath: artifact, FromCache: true}, nil
	}

	artifact, err := d.buildOne(ctx, t, sources)
	if err != nil {
		return Result{}, err
	}

	if err := d.store.Put(targetHash, wantKey, artifact); err != nil {
		return Result{}, fmt.Errorf("buildsys: recording cache entry for %q: %w", t.Name, err)
	}
	return Result{ArtifactPath: artifact}, nil
}

func (d *Driver) buildOne(ctx context.Context, t Target, sources []string) (string, error) {
	libSearchPath := []string{d.WS.LibDir(), d.Cache.Root()}
	includeSearchPath := []string{d.WS.IncludeDir()}

	switch t.Manifest.Language {
	case manifest.LanguageRust:
		return buildNative(ctx, t, libSearchPath)
	case manifest.LanguagePython:
		env := prepareInterpreted(t, d.WS.PackagesDir(), "")
		_ = env // execution environment is consumed by the orchestrator at launch time
		return t.SourcePath, nil
	case manifest.LanguageCpp:
		return buildCpp(ctx, t, sources, includeSearchPath, libSearchPath, d.WS.LibDir())
	default:
		return "", fmt.Errorf("buildsys: unsupported language %q", t.Manifest.Language)
	}
}

// BuildBatch builds every native target in dependency order, amortizing
// shared overlay library resolution across the batch (spec.md §4.6
// "Batch optimization"). Interpreted targets never reach this path since
// they have no compile step.
func (d *Driver) BuildBatch(ctx context.Context, targets []Target, sourcesByName map[string][]string, overlayDepsContentHash string) (map[string]Result, error) {
	libSearchPath := []string{d.WS.LibDir(), d.Cache.Root()}
	includeSearchPath := []string{d.WS.IncludeDir()}

	plan, err := PlanBatch(targets, libSearchPath, includeSearchPath)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]Target, len(targets))
	for _, t := range targets {
		byName[t.Name] = t
	}

	results := make(map[string]Result, len(targets))
	for _, name := range plan.Order {
		t := byName[name]
		res, err := d.Build(ctx, t, sourcesByName[name], overlayDepsContentHash)
		if err != nil {
			return results, fmt.Errorf("buildsys: building %q: %w", name, err)
		}
		results[name] = res
	}
	return results, nil
}
