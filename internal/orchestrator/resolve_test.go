package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/horus-robotics/horus/internal/manifest"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestResolveDirectoryFindsConventionalMainFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "horus.yaml"), "name: rover\nversion: 0.1.0\nlanguage: python\ndependencies: []\n")
	writeFile(t, filepath.Join(dir, "main.py"), "print('hi')\n")

	targets, err := Resolve(dir)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, "rover", targets[0].Name)
	require.Equal(t, filepath.Join(dir, "main.py"), targets[0].SourcePath)
}

func TestResolveManifestPathResolvesEnclosingDirectory(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "horus.yaml")
	writeFile(t, manifestPath, "name: arm\nversion: 0.1.0\nlanguage: cpp\ndependencies: []\n")
	writeFile(t, filepath.Join(dir, "main.cpp"), "int main(){return 0;}\n")

	targets, err := Resolve(manifestPath)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, "arm", targets[0].Name)
}

func TestResolveBareFileSynthesizesManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scratch.py")
	writeFile(t, path, "print('scratch')\n")

	targets, err := Resolve(path)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, "scratch", targets[0].Name)
	require.Equal(t, manifest.LanguagePython, targets[0].Manifest.Language)
}

func TestResolveGlobExpandsToRecognizedExtensionsOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.py"), "print('a')\n")
	writeFile(t, filepath.Join(dir, "b.py"), "print('b')\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored\n")

	targets, err := Resolve(filepath.Join(dir, "*"))
	require.NoError(t, err)
	require.Len(t, targets, 2)
}

func TestResolveUnrecognizedExtensionFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	writeFile(t, path, "{}")

	_, err := Resolve(path)
	require.Error(t, err)
}

func TestFinalExitCodeTakesMaxOfChildCodes(t *testing.T) {
	p1 := &process{cmd: nil}
	p1.exitCode.Store(0)
	p2 := &process{cmd: nil}
	p2.exitCode.Store(1)

	require.Equal(t, 1, finalExitCode([]*process{p1, p2}, false))
	require.Equal(t, 130, finalExitCode([]*process{p1, p2}, true))
}
