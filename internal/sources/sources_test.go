package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type scriptedPrompter struct {
	answer string
	err    error
}

func (s *scriptedPrompter) Choose(_ string, _ []string) (string, error) { return s.answer, s.err }

func TestPathAdapterLinksAndWritesSidecar(t *testing.T) {
	overlay := t.TempDir()
	target := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(target, "marker"), []byte("x"), 0o644))

	p := NewPathAdapter()
	require.NoError(t, p.Link(overlay, "localsim", target))

	linkInfo, err := os.Lstat(filepath.Join(overlay, "localsim"))
	require.NoError(t, err)
	require.True(t, linkInfo.Mode()&os.ModeSymlink != 0)
	require.FileExists(t, filepath.Join(overlay, "localsim.path.json"))
}

func TestPathAdapterRejectsMissingTarget(t *testing.T) {
	overlay := t.TempDir()
	p := NewPathAdapter()
	err := p.Link(overlay, "ghost", filepath.Join(overlay, "does-not-exist"))
	require.ErrorIs(t, err, ErrPathNotFound)
}

func TestPathAdapterRejectsFileTarget(t *testing.T) {
	overlay := t.TempDir()
	file := filepath.Join(overlay, "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	p := NewPathAdapter()
	err := p.Link(overlay, "bad", file)
	require.ErrorIs(t, err, ErrPathNotADirectory)
}

func TestSystemAdapterFailsClosedWithoutPrompter(t *testing.T) {
	choice, err := PromptForMissingSystemPackage(nil, "numpy")
	require.NoError(t, err)
	require.Equal(t, ChoiceSkip, choice)
}

func TestSystemAdapterPromptsAndParsesChoice(t *testing.T) {
	choice, err := PromptForMissingSystemPackage(&scriptedPrompter{answer: "install-global"}, "numpy")
	require.NoError(t, err)
	require.Equal(t, ChoiceInstallGlobal, choice)
}

func TestSystemAdapterFetchUsesProbeOverride(t *testing.T) {
	s := NewSystemAdapter()
	s.Probe = func(_ context.Context, name string) (string, bool, error) {
		if name == "numpy" {
			return "1.26.0", true, nil
		}
		return "", false, nil
	}

	fetched, err := s.Fetch(context.Background(), "numpy", "1.26.0")
	require.NoError(t, err)
	require.Equal(t, "1.26.0", fetched.Version)
	require.Empty(t, fetched.CachePath)

	_, err = s.Fetch(context.Background(), "missing-pkg", "")
	require.ErrorIs(t, err, ErrSystemPackageAbsent)
}

// S4: pkg install ripgrep present in both PyPI and CratesIO; user picks
// CratesIO.
func TestDecideSourcePromptsWhenBothPresent(t *testing.T) {
	choice, err := decideSource("ripgrep", true, true, &scriptedPrompter{answer: string(KindCratesIO)})
	require.NoError(t, err)
	require.Equal(t, KindCratesIO, choice)
}

func TestDecideSourceSilentWhenOnlyOnePresent(t *testing.T) {
	choice, err := decideSource("numpy", true, false, nil)
	require.NoError(t, err)
	require.Equal(t, KindPyPI, choice)

	choice, err = decideSource("ripgrep-only-crate", false, true, nil)
	require.NoError(t, err)
	require.Equal(t, KindCratesIO, choice)
}

func TestDecideSourceFailsClosedWithoutPrompter(t *testing.T) {
	_, err := decideSource("ripgrep", true, true, nil)
	require.ErrorIs(t, err, ErrAmbiguousSource)
}

func TestDecideSourceCancelReturnsErrCancelled(t *testing.T) {
	_, err := decideSource("ripgrep", true, true, &scriptedPrompter{answer: "cancel"})
	require.ErrorIs(t, err, ErrCancelled)
}

func TestWriteSystemSidecar(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteSystemSidecar(dir, "numpy", "1.26.0"))
	require.FileExists(t, filepath.Join(dir, "numpy.system.json"))
}
