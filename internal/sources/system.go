package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// SystemAdapter probes for a package already present on the host rather
// than fetching one, per spec.md §4.4. It never populates the global
// cache; installs write a `<name>.system.json` sidecar directly into the
// workspace overlay instead.
type SystemAdapter struct {
	// Probe overrides the presence check for testing; defaults to
	// probeHostPackage when nil.
	Probe func(ctx context.Context, name string) (version string, present bool, err error)
}

func NewSystemAdapter() *SystemAdapter { return &SystemAdapter{} }

func (s *SystemAdapter) Kind() Kind { return KindSystem }

// ProbeVersions returns the single version currently installed on the
// host, if any.
func (s *SystemAdapter) ProbeVersions(ctx context.Context, name string) ([]string, error) {
	version, present, err := s.probe(ctx, name)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	return []string{version}, nil
}

// Fetch for System never downloads anything; it verifies the host
// package is present and returns its version with no CachePath.
func (s *SystemAdapter) Fetch(ctx context.Context, name, version string) (Fetched, error) {
	got, present, err := s.probe(ctx, name)
	if err != nil {
		return Fetched{}, err
	}
	if !present {
		return Fetched{}, fmt.Errorf("%w: %s", ErrSystemPackageAbsent, name)
	}
	if version != "" && got != version {
		return Fetched{}, fmt.Errorf("sources: system package %q is %s, manifest wants %s", name, got, version)
	}
	return Fetched{Version: got}, nil
}

func (s *SystemAdapter) probe(ctx context.Context, name string) (string, bool, error) {
	if s.Probe != nil {
		return s.Probe(ctx, name)
	}
	return probeHostPackage(ctx, name)
}

// probeHostPackage checks `pip show <name>` then a Cargo-installed binary
// under ~/.cargo/bin, per spec.md's two named examples.
func probeHostPackage(ctx context.Context, name string) (string, bool, error) {
	cmd := exec.CommandContext(ctx, "pip", "show", name)
	if out, err := cmd.Output(); err == nil {
		for _, line := range strings.Split(string(out), "\n") {
			if v, ok := strings.CutPrefix(line, "Version: "); ok {
				return strings.TrimSpace(v), true, nil
			}
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		bin := filepath.Join(home, ".cargo", "bin", name)
		if info, statErr := os.Stat(bin); statErr == nil && !info.IsDir() {
			return "", true, nil
		}
	}

	return "", false, nil
}

// RestoreChoice is the user's answer to the System-package-absent prompt
// of spec.md §7.
type RestoreChoice string

const (
	ChoiceInstallGlobal RestoreChoice = "install-global"
	ChoiceInstallLocal  RestoreChoice = "install-local"
	ChoiceSkip          RestoreChoice = "skip"
)

// PromptForMissingSystemPackage asks the user how to proceed when a
// System-sourced package is absent at restore time. When prompter is nil
// (non-interactive/non-TTY), it fails closed to ChoiceSkip.
func PromptForMissingSystemPackage(prompter Prompter, name string) (RestoreChoice, error) {
	if prompter == nil {
		return ChoiceSkip, nil
	}
	choice, err := prompter.Choose(
		fmt.Sprintf("%q is not present on this host. How should it be restored?", name),
		[]string{string(ChoiceInstallGlobal), string(ChoiceInstallLocal), string(ChoiceSkip)},
	)
	if err != nil {
		return "", err
	}
	if choice == "" {
		return ChoiceSkip, nil
	}
	return RestoreChoice(choice), nil
}

// WriteSystemSidecar writes the `<name>.system.json` sidecar into the
// workspace overlay directory.
func WriteSystemSidecar(overlayDir, name, version string) error {
	data, err := json.Marshal(map[string]string{"name": name, "version": version, "source": string(KindSystem)})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(overlayDir, name+".system.json"), data, 0o644)
}
