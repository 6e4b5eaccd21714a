package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// SourceKind enumerates the locked package source variants of spec.md's
// "Package & workspace entities" section.
type SourceKind string

const (
	SourceRegistry SourceKind = "Registry"
	SourcePyPI     SourceKind = "PyPI"
	SourceCratesIO SourceKind = "CratesIO"
	SourceSystem   SourceKind = "System"
	SourcePath     SourceKind = "Path"
)

// LockedPackage is one resolved, installed package entry.
//
// Invariants enforced by callers, not this type: for Registry/PyPI/
// CratesIO, Checksum must match the extracted contents; for System,
// Version must match the host-detected version at restore time; for
// Path, Checksum is empty and Version may be the sentinel "dev".
type LockedPackage struct {
	Name     string     `yaml:"name"`
	Version  string     `yaml:"version"`
	Checksum string     `yaml:"checksum,omitempty"`
	Source   SourceKind `yaml:"source"`
	Path     string     `yaml:"path,omitempty"`
}

// DevVersion is the sentinel version recorded for Path dependencies.
const DevVersion = "dev"

// SystemProbe records the host toolchain versions observed at freeze time.
type SystemProbe struct {
	OS            string `yaml:"os"`
	Arch          string `yaml:"arch"`
	PythonVersion string `yaml:"python_version,omitempty"`
	RustVersion   string `yaml:"rust_version,omitempty"`
	GCCVersion    string `yaml:"gcc_version,omitempty"`
	CUDAVersion   string `yaml:"cuda_version,omitempty"`
}

// Environment is the environment manifest format: a reproducible
// description of an installed set of packages, per spec.md §"Environment
// manifest format".
type Environment struct {
	HorusID     string          `yaml:"horus_id"`
	Name        string          `yaml:"name,omitempty"`
	Description string          `yaml:"description,omitempty"`
	Packages    []LockedPackage `yaml:"packages"`
	System      SystemProbe     `yaml:"system"`
	CreatedAt   time.Time       `yaml:"created_at"`
	HorusVersion string         `yaml:"horus_version"`
}

// ErrPathSourceForbidden is returned by ValidateForPublish when an environment
// manifest intended for publishing still carries a Path-sourced package
// (invariant 6).
var ErrPathSourceForbidden = fmt.Errorf("manifest: environment manifest contains a Path source")

// ValidateForPublish enforces invariant 6: a published environment
// manifest contains no Path sources.
func (e *Environment) ValidateForPublish() error {
	var offenders []string
	for _, p := range e.Packages {
		if p.Source == SourcePath {
			offenders = append(offenders, p.Name)
		}
	}
	if len(offenders) > 0 {
		return fmt.Errorf("%w: %v", ErrPathSourceForbidden, offenders)
	}
	return nil
}

// ComputeHorusID derives the 12-hex-character horus_id from a stable hash
// over the locked packages and system probe, per spec.md: "horus_id (12
// hex chars derived from a hash over the locked packages and system
// probe)". Packages are sorted by name first so two freezes of the same
// logical set produce the same id regardless of overlay walk order.
//
// sha256 is used here rather than a third-party hash because this is a
// deterministic content fingerprint, not a security boundary, and the
// stdlib implementation is already what the rest of the toolchain
// (package checksums) standardizes on — see DESIGN.md.
func ComputeHorusID(packages []LockedPackage, probe SystemProbe) string {
	sorted := make([]LockedPackage, len(packages))
	copy(sorted, packages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := sha256.New()
	for _, p := range sorted {
		fmt.Fprintf(h, "%s@%s#%s:%s\n", p.Name, p.Version, p.Checksum, p.Source)
	}
	fmt.Fprintf(h, "os=%s arch=%s py=%s rust=%s gcc=%s cuda=%s\n",
		probe.OS, probe.Arch, probe.PythonVersion, probe.RustVersion, probe.GCCVersion, probe.CUDAVersion)

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:6]) // 6 bytes -> 12 hex chars
}
