package workspace

import (
	"context"
	"fmt"

	"github.com/horus-robotics/horus/internal/manifest"
	"github.com/horus-robotics/horus/internal/sources"
)

// Restore installs every package recorded in an environment manifest into
// this workspace, per spec.md §4.5 "Restore". System-sourced packages
// absent from the host go through the interactive prompt flow of §4.4;
// Path-sourced packages are skipped with a warning, since a frozen
// manifest "cannot guarantee the path exists on the target".
type Restorer struct {
	Installer *Installer
	System    *sources.SystemAdapter
	Prompter  sources.Prompter
}

// RestoreWarning records a non-fatal event surfaced to the caller after a
// restore completes (a skipped Path package, or a System package that had
// to be prompted for).
type RestoreWarning struct {
	Package string
	Reason  string
}

func (r *Restorer) Restore(ctx context.Context, env *manifest.Environment) ([]RestoreWarning, error) {
	var warnings []RestoreWarning
	lockedByName := make(map[string]manifest.LockedPackage, len(env.Packages))
	for _, p := range env.Packages {
		lockedByName[p.Name] = p
	}

	var toInstall []manifest.LockedPackage
	for _, pkg := range env.Packages {
		switch pkg.Source {
		case manifest.SourcePath:
			warnings = append(warnings, RestoreWarning{
				Package: pkg.Name,
				Reason:  "path dependency skipped: manifest cannot guarantee the path exists on this host",
			})
			continue

		case manifest.SourceSystem:
			versions, err := r.System.ProbeVersions(ctx, pkg.Name)
			if err != nil {
				return warnings, fmt.Errorf("workspace: probing system package %q: %w", pkg.Name, err)
			}
			present := len(versions) > 0 && versions[0] == pkg.Version
			if present {
				toInstall = append(toInstall, pkg)
				continue
			}

			choice, err := sources.PromptForMissingSystemPackage(r.Prompter, pkg.Name)
			if err != nil {
				return warnings, fmt.Errorf("workspace: resolving missing system package %q: %w", pkg.Name, err)
			}
			switch choice {
			case sources.ChoiceSkip:
				warnings = append(warnings, RestoreWarning{Package: pkg.Name, Reason: "system package not present; skipped by user"})
				continue
			case sources.ChoiceInstallGlobal, sources.ChoiceInstallLocal:
				// Neither choice reinstalls a System sidecar: both mean
				// "fetch it from a real package source instead" (S5), the
				// difference being global-cache reuse vs a private copy,
				// which both adapters already give via content-addressed
				// materialize — so both choices resolve the same way here.
				resolved, err := r.resolveFallbackSource(ctx, pkg)
				if err != nil {
					return warnings, fmt.Errorf("workspace: resolving fallback source for %q: %w", pkg.Name, err)
				}
				toInstall = append(toInstall, resolved)
				lockedByName[pkg.Name] = resolved
			}

		default:
			toInstall = append(toInstall, pkg)
		}
	}

	if err := r.Installer.InstallAll(ctx, toInstall, lockedByName); err != nil {
		return warnings, err
	}
	return warnings, nil
}

// resolveFallbackSource finds a real package source for a System
// dependency the user chose to install rather than skip, trying PyPI
// then CratesIO and taking the first that lists the locked version, per
// spec.md's S5 scenario.
func (r *Restorer) resolveFallbackSource(ctx context.Context, pkg manifest.LockedPackage) (manifest.LockedPackage, error) {
	for _, kind := range []sources.Kind{sources.KindPyPI, sources.KindCratesIO} {
		adapter, ok := r.Installer.Adapters[kind]
		if !ok {
			continue
		}
		versions, err := adapter.ProbeVersions(ctx, pkg.Name)
		if err != nil {
			return manifest.LockedPackage{}, err
		}
		for _, v := range versions {
			if v == pkg.Version {
				return manifest.LockedPackage{
					Name:    pkg.Name,
					Version: pkg.Version,
					Source:  manifest.SourceKind(kind),
				}, nil
			}
		}
	}
	return manifest.LockedPackage{}, fmt.Errorf("%q@%s not found on any fallback source", pkg.Name, pkg.Version)
}
