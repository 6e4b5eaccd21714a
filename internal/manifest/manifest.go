// Package manifest parses and validates horus.yaml package manifests and
// the environment (lock) manifest format used by freeze/restore, per
// spec.md's "Manifest (bit-exact keys)" and "Environment manifest format"
// sections. Parsing uses yaml.v3.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Language is the primary language declared by a package manifest.
type Language string

const (
	LanguageRust   Language = "rust"
	LanguagePython Language = "python"
	LanguageCpp    Language = "cpp"
)

func (l Language) Valid() bool {
	switch l {
	case LanguageRust, LanguagePython, LanguageCpp:
		return true
	default:
		return false
	}
}

// Dependency is a single entry from the manifest's dependencies list. A
// dependency is either a Registry reference (name + optional semver
// constraint) or a Path reference, mirroring the two inline YAML forms
// spec.md allows: `<name>[@<semver>]` or `<name>: {path: <relpath>}`.
type Dependency struct {
	Name       string
	VersionReq string // semver constraint; "*" when unspecified
	Path       string // non-empty for Path dependencies
}

func (d Dependency) IsPath() bool { return d.Path != "" }

// Manifest is a parsed horus.yaml package manifest.
type Manifest struct {
	Name         string       `yaml:"name"`
	Version      string       `yaml:"version"`
	Language     Language     `yaml:"language"`
	Description  string       `yaml:"description,omitempty"`
	Author       string       `yaml:"author,omitempty"`
	License      string       `yaml:"license,omitempty"`
	Dependencies []Dependency `yaml:"-"`

	// Dir is the directory the manifest was loaded from. Relative Path
	// dependencies are resolved against it. Not serialized.
	Dir string `yaml:"-"`
}

// rawManifest mirrors the YAML shape before dependency entries are
// normalized out of their two inline forms.
type rawManifest struct {
	Name         string    `yaml:"name"`
	Version      string    `yaml:"version"`
	Language     Language  `yaml:"language"`
	Description  string    `yaml:"description,omitempty"`
	Author       string    `yaml:"author,omitempty"`
	License      string    `yaml:"license,omitempty"`
	Dependencies []yaml.Node `yaml:"dependencies"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: reading %s: %w", path, err)
	}
	m, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", path, err)
	}
	m.Dir = filepath.Dir(path)
	return m, nil
}

// Parse decodes manifest bytes and validates required fields.
func Parse(data []byte) (*Manifest, error) {
	var rm rawManifest
	if err := yaml.Unmarshal(data, &rm); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}

	m := &Manifest{
		Name:        rm.Name,
		Version:     rm.Version,
		Language:    rm.Language,
		Description: rm.Description,
		Author:      rm.Author,
		License:     rm.License,
	}

	for _, node := range rm.Dependencies {
		dep, err := decodeDependency(&node)
		if err != nil {
			return nil, err
		}
		m.Dependencies = append(m.Dependencies, dep)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// decodeDependency handles the two permitted inline forms of a dependency
// entry: a scalar string "name[@semver]", or a single-key mapping
// "name: {path: relpath}".
func decodeDependency(node *yaml.Node) (Dependency, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return Dependency{}, err
		}
		name, versionReq, _ := strings.Cut(s, "@")
		if versionReq == "" {
			versionReq = "*"
		}
		if name == "" {
			return Dependency{}, fmt.Errorf("empty dependency name in %q", s)
		}
		return Dependency{Name: name, VersionReq: versionReq}, nil

	case yaml.MappingNode:
		var m map[string]struct {
			Path string `yaml:"path"`
		}
		if err := node.Decode(&m); err != nil {
			return Dependency{}, err
		}
		if len(m) != 1 {
			return Dependency{}, fmt.Errorf("dependency mapping must have exactly one key, got %d", len(m))
		}
		for name, body := range m {
			if body.Path == "" {
				return Dependency{}, fmt.Errorf("dependency %q mapping missing path", name)
			}
			return Dependency{Name: name, Path: body.Path}, nil
		}
		panic("unreachable")

	default:
		return Dependency{}, fmt.Errorf("unsupported dependency node kind %v", node.Kind)
	}
}

// Validate checks the manifest's required top-level keys.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest: missing required field %q", "name")
	}
	if m.Version == "" {
		return fmt.Errorf("manifest: missing required field %q", "version")
	}
	if !m.Language.Valid() {
		return fmt.Errorf("manifest: unsupported language %q", m.Language)
	}
	seen := make(map[string]bool, len(m.Dependencies))
	for _, d := range m.Dependencies {
		if seen[d.Name] {
			return fmt.Errorf("manifest: duplicate dependency %q", d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

// ResolvePathDependency resolves a Path dependency's path field against
// the manifest's own directory, as spec.md requires ("relative paths
// resolved against the manifest's directory").
func (m *Manifest) ResolvePathDependency(d Dependency) string {
	if filepath.IsAbs(d.Path) {
		return d.Path
	}
	return filepath.Join(m.Dir, d.Path)
}

// HasPathDependency reports whether any dependency is a Path source,
// relevant to invariant 6 (published environment manifests forbid Path
// sources).
func (m *Manifest) HasPathDependency() bool {
	for _, d := range m.Dependencies {
		if d.IsPath() {
			return true
		}
	}
	return false
}

// AddDependency inserts or replaces dep by name, used by `pkg install` to
// record a newly installed package in the manifest's dependency list.
func (m *Manifest) AddDependency(dep Dependency) {
	for i, d := range m.Dependencies {
		if d.Name == dep.Name {
			m.Dependencies[i] = dep
			return
		}
	}
	m.Dependencies = append(m.Dependencies, dep)
}

// RemoveDependency deletes dep by name, used by `pkg remove`. Reports
// whether a matching entry was found.
func (m *Manifest) RemoveDependency(name string) bool {
	for i, d := range m.Dependencies {
		if d.Name == name {
			m.Dependencies = append(m.Dependencies[:i], m.Dependencies[i+1:]...)
			return true
		}
	}
	return false
}

// Save re-serializes the manifest to path, rendering each dependency back
// into its scalar "name[@semver]" or {path: relpath} inline form.
func (m *Manifest) Save(path string) error {
	raw := rawManifest{
		Name:        m.Name,
		Version:     m.Version,
		Language:    m.Language,
		Description: m.Description,
		Author:      m.Author,
		License:     m.License,
	}
	for _, d := range m.Dependencies {
		node, err := encodeDependency(d)
		if err != nil {
			return err
		}
		raw.Dependencies = append(raw.Dependencies, node)
	}

	data, err := yaml.Marshal(&raw)
	if err != nil {
		return fmt.Errorf("manifest: encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("manifest: writing %s: %w", path, err)
	}
	return nil
}

// encodeDependency is decodeDependency's inverse.
func encodeDependency(d Dependency) (yaml.Node, error) {
	var node yaml.Node
	if d.IsPath() {
		if err := node.Encode(map[string]map[string]string{d.Name: {"path": d.Path}}); err != nil {
			return yaml.Node{}, err
		}
		return node, nil
	}
	s := d.Name
	if d.VersionReq != "" && d.VersionReq != "*" {
		s = d.Name + "@" + d.VersionReq
	}
	if err := node.Encode(s); err != nil {
		return yaml.Node{}, err
	}
	return node, nil
}
