package manifest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseAcceptsBothDependencyForms(t *testing.T) {
	doc := `
name: perception
version: 0.3.1
language: rust
dependencies:
  - horus-math@^1.2
  - numpy
  - localsim:
      path: ../localsim
`
	m, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, "perception", m.Name)
	require.Len(t, m.Dependencies, 3)

	require.Equal(t, Dependency{Name: "horus-math", VersionReq: "^1.2"}, m.Dependencies[0])
	require.Equal(t, Dependency{Name: "numpy", VersionReq: "*"}, m.Dependencies[1])
	require.True(t, m.Dependencies[2].IsPath())
	require.Equal(t, "../localsim", m.Dependencies[2].Path)
}

func TestParseRejectsMissingFields(t *testing.T) {
	_, err := Parse([]byte("version: 1.0.0\nlanguage: rust\n"))
	require.Error(t, err)

	_, err = Parse([]byte("name: x\nversion: 1.0.0\nlanguage: cobol\n"))
	require.Error(t, err)
}

func TestParseRejectsDuplicateDependency(t *testing.T) {
	doc := `
name: x
version: 1.0.0
language: python
dependencies:
  - numpy@^1.0
  - numpy@^2.0
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
}

func TestResolvePathDependencyIsRelativeToManifestDir(t *testing.T) {
	m := &Manifest{Dir: "/workspaces/robot/perception"}
	dep := Dependency{Name: "localsim", Path: "../localsim"}
	require.Equal(t, "/workspaces/robot/localsim", m.ResolvePathDependency(dep))

	abs := Dependency{Name: "shared", Path: "/opt/shared"}
	require.Equal(t, "/opt/shared", m.ResolvePathDependency(abs))
}

func TestEnvironmentValidateForPublishRejectsPathSource(t *testing.T) {
	env := &Environment{
		Packages: []LockedPackage{
			{Name: "numpy", Version: "1.26.0", Source: SourceRegistry},
			{Name: "localsim", Version: DevVersion, Source: SourcePath},
		},
	}
	err := env.ValidateForPublish()
	require.ErrorIs(t, err, ErrPathSourceForbidden)
}

func TestComputeHorusIDIsStableAndOrderIndependent(t *testing.T) {
	probe := SystemProbe{OS: "linux", Arch: "amd64", RustVersion: "1.79.0"}
	a := []LockedPackage{
		{Name: "b-pkg", Version: "1.0.0", Checksum: "cc", Source: SourceRegistry},
		{Name: "a-pkg", Version: "2.0.0", Checksum: "aa", Source: SourceRegistry},
	}
	b := []LockedPackage{a[1], a[0]} // reversed order

	id1 := ComputeHorusID(a, probe)
	id2 := ComputeHorusID(b, probe)
	require.Equal(t, id1, id2)
	require.Len(t, id1, 12)
}

func TestComputeHorusIDChangesWithContent(t *testing.T) {
	probe := SystemProbe{OS: "linux", Arch: "amd64"}
	pkgs := []LockedPackage{{Name: "numpy", Version: "1.26.0", Source: SourceRegistry}}
	id1 := ComputeHorusID(pkgs, probe)

	pkgs[0].Version = "1.26.1"
	id2 := ComputeHorusID(pkgs, probe)
	require.NotEqual(t, id1, id2)
}

func TestEnvironmentRoundTripFields(t *testing.T) {
	env := &Environment{
		HorusID:   "deadbeef0001",
		Name:      "robot-env",
		CreatedAt: time.Now(),
		Packages: []LockedPackage{
			{Name: "numpy", Version: "1.26.0", Source: SourceRegistry, Checksum: "abc"},
		},
		System: SystemProbe{OS: "linux", Arch: "arm64"},
	}
	require.NoError(t, env.ValidateForPublish())
}
