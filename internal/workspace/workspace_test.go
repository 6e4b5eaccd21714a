package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/horus-robotics/horus/internal/cache"
	"github.com/horus-robotics/horus/internal/manifest"
	"github.com/horus-robotics/horus/internal/sources"
)

type stubAdapter struct {
	kind     sources.Kind
	versions map[string][]string
	fetch    func(ctx context.Context, name, version string) (sources.Fetched, error)
}

func (s *stubAdapter) Kind() sources.Kind { return s.kind }

func (s *stubAdapter) ProbeVersions(_ context.Context, name string) ([]string, error) {
	return s.versions[name], nil
}

func (s *stubAdapter) Fetch(ctx context.Context, name, version string) (sources.Fetched, error) {
	return s.fetch(ctx, name, version)
}

func newFetchingStore(t *testing.T, prefix string) (*cache.Store, *stubAdapter) {
	t.Helper()
	store, err := cache.Open(t.TempDir())
	require.NoError(t, err)

	adapter := &stubAdapter{
		kind:     sources.Kind(prefix),
		versions: map[string][]string{},
	}
	adapter.fetch = func(ctx context.Context, name, version string) (sources.Fetched, error) {
		cacheName := prefixFor(prefix) + name
		dir, err := store.Materialize(cacheName, version, "", func(tmp string) error {
			return os.WriteFile(filepath.Join(tmp, "marker"), []byte(name+"@"+version), 0o644)
		})
		if err != nil {
			return sources.Fetched{}, err
		}
		return sources.Fetched{CachePath: dir, Version: version}, nil
	}
	return store, adapter
}

func prefixFor(kind string) string {
	switch sources.Kind(kind) {
	case sources.KindPyPI:
		return "pypi_"
	case sources.KindCratesIO:
		return "cratesio_"
	default:
		return ""
	}
}

// TestFreezeRestoreRoundTrip covers testable property 8: freeze then
// restore into an empty workspace reproduces the same locked-package set.
func TestFreezeRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	pypiStore, pypiAdapter := newFetchingStore(t, string(sources.KindPyPI))
	pypiAdapter.versions["requests"] = []string{"2.31.0"}

	ws, err := Open(t.TempDir())
	require.NoError(t, err)

	installer := &Installer{
		WS:    ws,
		Cache: pypiStore,
		Adapters: map[sources.Kind]sources.Adapter{
			sources.KindPyPI: pypiAdapter,
			sources.KindPath: sources.NewPathAdapter(),
		},
	}

	locked := manifest.LockedPackage{Name: "requests", Version: "2.31.0", Source: manifest.SourcePyPI}
	require.NoError(t, installer.InstallAll(ctx, []manifest.LockedPackage{locked}, map[string]manifest.LockedPackage{"requests": locked}))

	env, err := ws.Freeze("demo", "", "0.1.0")
	require.NoError(t, err)
	require.Len(t, env.Packages, 1)
	require.Equal(t, "requests", env.Packages[0].Name)
	require.Equal(t, "2.31.0", env.Packages[0].Version)
	require.Equal(t, manifest.SourcePyPI, env.Packages[0].Source)
	require.NotEmpty(t, env.HorusID)

	ws2, err := Open(t.TempDir())
	require.NoError(t, err)
	installer2 := &Installer{
		WS:    ws2,
		Cache: pypiStore,
		Adapters: map[sources.Kind]sources.Adapter{
			sources.KindPyPI: pypiAdapter,
			sources.KindPath: sources.NewPathAdapter(),
		},
	}
	restorer := &Restorer{Installer: installer2, System: sources.NewSystemAdapter()}
	warnings, err := restorer.Restore(ctx, env)
	require.NoError(t, err)
	require.Empty(t, warnings)

	kind, err := ws2.Inspect("requests")
	require.NoError(t, err)
	require.Equal(t, OverlaySymlink, kind)

	env2, err := ws2.Freeze("demo", "", "0.1.0")
	require.NoError(t, err)
	require.Equal(t, env.HorusID, env2.HorusID)
}

// S5: freeze captures numpy@1.26.0 sourced from System; restoring onto a
// host where numpy is absent, with the user choosing install-global,
// replaces the system sidecar with a regular link to a pypi_numpy cache
// entry.
func TestRestoreFallsBackFromMissingSystemDependency(t *testing.T) {
	ctx := context.Background()

	pypiStore, pypiAdapter := newFetchingStore(t, string(sources.KindPyPI))
	pypiAdapter.versions["numpy"] = []string{"1.26.0"}

	ws, err := Open(t.TempDir())
	require.NoError(t, err)
	installer := &Installer{
		WS:    ws,
		Cache: pypiStore,
		Adapters: map[sources.Kind]sources.Adapter{
			sources.KindPyPI: pypiAdapter,
		},
	}

	absentSystem := sources.NewSystemAdapter()
	absentSystem.Probe = func(_ context.Context, name string) (string, bool, error) {
		return "", false, nil
	}

	restorer := &Restorer{
		Installer: installer,
		System:    absentSystem,
		Prompter:  &scriptedPrompter{answer: "install-global"},
	}

	env := &manifest.Environment{
		Packages: []manifest.LockedPackage{
			{Name: "numpy", Version: "1.26.0", Source: manifest.SourceSystem},
		},
	}

	warnings, err := restorer.Restore(ctx, env)
	require.NoError(t, err)
	require.Empty(t, warnings)

	kind, err := ws.Inspect("numpy")
	require.NoError(t, err)
	require.Equal(t, OverlaySymlink, kind)

	target, err := os.Readlink(filepath.Join(ws.PackagesDir(), "numpy"))
	require.NoError(t, err)
	require.Contains(t, filepath.Base(target), "pypi_numpy@1.26.0")

	_, statErr := os.Stat(filepath.Join(ws.PackagesDir(), "numpy.system.json"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRestoreSkipsPathDependencyWithWarning(t *testing.T) {
	ws, err := Open(t.TempDir())
	require.NoError(t, err)
	installer := &Installer{WS: ws, Adapters: map[sources.Kind]sources.Adapter{}}
	restorer := &Restorer{Installer: installer, System: sources.NewSystemAdapter()}

	env := &manifest.Environment{
		Packages: []manifest.LockedPackage{
			{Name: "localsim", Version: manifest.DevVersion, Source: manifest.SourcePath, Path: "/tmp/does-not-exist"},
		},
	}

	warnings, err := restorer.Restore(context.Background(), env)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Equal(t, "localsim", warnings[0].Package)

	kind, err := ws.Inspect("localsim")
	require.NoError(t, err)
	require.Equal(t, OverlayAbsent, kind)
}

func TestLockPreventsConcurrentAcquire(t *testing.T) {
	ws, err := Open(t.TempDir())
	require.NoError(t, err)

	lock, err := ws.AcquireLock(context.Background())
	require.NoError(t, err)
	defer lock.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	_, err = ws.AcquireLock(ctx)
	require.Error(t, err)
}

type scriptedPrompter struct {
	answer string
}

func (s *scriptedPrompter) Choose(_ string, _ []string) (string, error) { return s.answer, nil }
