// Package orchestrator implements the process orchestrator of
// spec.md §4.7: target resolution, concurrent build + launch, stdio
// fan-in, and signal-driven shutdown.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/horus-robotics/horus/internal/manifest"
)

// ManifestFileName is horus.yaml's conventional file name.
const ManifestFileName = "horus.yaml"

// recognizedExtensions maps a source file's extension to the language
// that can build/run it, per spec.md §4.7 "Globs expand to files with
// recognized extensions".
var recognizedExtensions = map[string]manifest.Language{
	".py":  manifest.LanguagePython,
	".rs":  manifest.LanguageRust,
	".c":   manifest.LanguageCpp,
	".cpp": manifest.LanguageCpp,
	".cc":  manifest.LanguageCpp,
}

// mainFileCandidates lists, per language, the conventional entrypoint
// file names a bare directory is searched for.
var mainFileCandidates = map[manifest.Language][]string{
	manifest.LanguagePython: {"main.py", "__main__.py"},
	manifest.LanguageRust:   {"Cargo.toml"},
	manifest.LanguageCpp:    {"main.cpp", "main.cc", "main.c"},
}

// Target is one resolved launchable unit: a parsed manifest plus the
// concrete file the build driver and orchestrator operate on.
type Target struct {
	Name       string
	Manifest   *manifest.Manifest
	SourcePath string
}

// Resolve implements spec.md §4.7 "Target resolution": input is a file, a
// directory, a glob, or a manifest path. Globs expand to files with
// recognized extensions; directories auto-detect a main file; manifest
// paths resolve to the enclosing project's main file or build-system
// entrypoint.
func Resolve(input string) ([]Target, error) {
	if input == "" {
		input = "."
	}

	if strings.ContainsAny(input, "*?[") {
		matches, err := filepath.Glob(input)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: invalid glob %q: %w", input, err)
		}
		sort.Strings(matches)
		var out []Target
		for _, m := range matches {
			ext := filepath.Ext(m)
			if _, ok := recognizedExtensions[ext]; !ok {
				continue
			}
			t, err := resolveFile(m)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("orchestrator: glob %q matched no recognized source files", input)
		}
		return out, nil
	}

	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: resolving target %q: %w", input, err)
	}

	if info.IsDir() {
		t, err := resolveDir(input)
		if err != nil {
			return nil, err
		}
		return []Target{t}, nil
	}

	if filepath.Base(input) == ManifestFileName {
		t, err := resolveDir(filepath.Dir(input))
		if err != nil {
			return nil, err
		}
		return []Target{t}, nil
	}

	t, err := resolveFile(input)
	if err != nil {
		return nil, err
	}
	return []Target{t}, nil
}

// resolveDir loads a directory's horus.yaml and locates its conventional
// main file for the declared language.
func resolveDir(dir string) (Target, error) {
	manifestPath := filepath.Join(dir, ManifestFileName)
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return Target{}, fmt.Errorf("orchestrator: loading %s: %w", manifestPath, err)
	}

	for _, candidate := range mainFileCandidates[m.Language] {
		p := filepath.Join(dir, candidate)
		if _, err := os.Stat(p); err == nil {
			return Target{Name: m.Name, Manifest: m, SourcePath: p}, nil
		}
	}
	return Target{}, fmt.Errorf("orchestrator: no main file found for %q (language %s) in %s", m.Name, m.Language, dir)
}

// resolveFile treats a single source file as a target, synthesizing a
// minimal in-memory manifest from its extension and directory when no
// horus.yaml governs it directly (spec.md allows launching a bare file).
func resolveFile(path string) (Target, error) {
	dir := filepath.Dir(path)
	manifestPath := filepath.Join(dir, ManifestFileName)
	if m, err := manifest.Load(manifestPath); err == nil {
		return Target{Name: m.Name, Manifest: m, SourcePath: path}, nil
	}

	lang, ok := recognizedExtensions[filepath.Ext(path)]
	if !ok {
		return Target{}, fmt.Errorf("orchestrator: %s has no recognized extension", path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Target{
		Name: name,
		Manifest: &manifest.Manifest{
			Name:     name,
			Language: lang,
			Dir:      dir,
		},
		SourcePath: path,
	}, nil
}
