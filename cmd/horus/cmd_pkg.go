package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/horus-robotics/horus/internal/manifest"
	"github.com/horus-robotics/horus/internal/resolver"
)

func newPkgCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "pkg", Short: "Manage package dependencies"}
	cmd.AddCommand(newPkgInstallCmd(), newPkgRemoveCmd(), newPkgListCmd(), newPkgPublishCmd(), newPkgUnpublishCmd())
	return cmd
}

func newPkgInstallCmd() *cobra.Command {
	var version, target string
	var global bool

	cmd := &cobra.Command{
		Use:   "install <spec>",
		Short: "Install a package, resolving its own dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, verFromSpec := splitPkgSpec(args[0])
			if version == "" {
				version = verFromSpec
			}
			return pkgInstall(name, version, resolveTarget(target), global)
		},
	}
	cmd.Flags().StringVar(&version, "ver", "", "exact version to install")
	cmd.Flags().BoolVar(&global, "global", false, "fetch into the global cache only, skip workspace link")
	cmd.Flags().StringVar(&target, "target", "", "workspace directory (default: current directory)")
	return cmd
}

func splitPkgSpec(spec string) (name, version string) {
	name, version, found := strings.Cut(spec, "@")
	if !found {
		return spec, ""
	}
	return name, version
}

func resolveTarget(target string) string {
	if target == "" {
		return "."
	}
	return target
}

func pkgInstall(name, version, target string, global bool) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()

	rp := newRoutingProvider(ctx, a.adapters, a.prompter)
	versionReq := "*"
	if version != "" {
		versionReq = version
	}
	sol, err := resolver.New(rp).Resolve(ctx, []resolver.Spec{{Name: name, Source: resolver.SourceRegistry, VersionReq: versionReq}})
	if err != nil {
		return asUserError(fmt.Errorf("pkg install: resolving %q: %w", name, err))
	}
	locked, err := rp.lockedFromSolution(ctx, sol)
	if err != nil {
		return asNetworkError(fmt.Errorf("pkg install: fetching %q: %w", name, err))
	}
	lockedByName := make(map[string]manifest.LockedPackage, len(locked))
	for _, p := range locked {
		lockedByName[p.Name] = p
	}

	if global {
		fmt.Printf("Fetched %s into the global cache (no workspace link)\n", describeSolution(locked))
		return nil
	}

	_, _, installer, err := a.openWorkspace(target)
	if err != nil {
		return err
	}
	if err := installer.InstallAll(ctx, locked, lockedByName); err != nil {
		return asNetworkError(fmt.Errorf("pkg install: %w", err))
	}

	if err := recordDependency(target, name, lockedByName[name].Version); err != nil {
		a.logger.Warn("installed but failed to record dependency in horus.yaml", "error", err)
	}

	fmt.Printf("Installed %s\n", describeSolution(locked))
	return nil
}

func describeSolution(locked []manifest.LockedPackage) string {
	names := make([]string, len(locked))
	for i, p := range locked {
		names[i] = fmt.Sprintf("%s@%s", p.Name, p.Version)
	}
	return strings.Join(names, ", ")
}

// recordDependency appends or updates name in target's horus.yaml, when
// one exists. A workspace with no manifest of its own (a bare run
// target) is left untouched.
func recordDependency(target, name, version string) error {
	path := filepath.Join(target, "horus.yaml")
	m, err := manifest.Load(path)
	if err != nil {
		return nil
	}
	m.AddDependency(manifest.Dependency{Name: name, VersionReq: version})
	return m.Save(path)
}

func newPkgRemoveCmd() *cobra.Command {
	var target string
	var global bool

	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a package from the workspace overlay and manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return pkgRemove(args[0], resolveTarget(target), global)
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "also remove every cached version from the global cache")
	cmd.Flags().StringVar(&target, "target", "", "workspace directory (default: current directory)")
	return cmd
}

func pkgRemove(name, target string, global bool) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	ws, _, _, err := a.openWorkspace(target)
	if err != nil {
		return err
	}
	if err := ws.Remove(name); err != nil {
		return asUserError(fmt.Errorf("pkg remove: %w", err))
	}

	path := filepath.Join(target, "horus.yaml")
	if m, err := manifest.Load(path); err == nil {
		if m.RemoveDependency(name) {
			if err := m.Save(path); err != nil {
				a.logger.Warn("removed but failed to update horus.yaml", "error", err)
			}
		}
	}

	if global {
		entries, _ := os.ReadDir(a.cache.Root())
		prefix := name + "@"
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), prefix) {
				_ = os.RemoveAll(filepath.Join(a.cache.Root(), e.Name()))
			}
		}
	}

	fmt.Printf("Removed %s\n", name)
	return nil
}

func newPkgListCmd() *cobra.Command {
	var all, global bool

	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "Enumerate the workspace overlay and/or global cache",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return pkgList(query, all, global)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list both the workspace overlay and the global cache")
	cmd.Flags().BoolVar(&global, "global", false, "list only the global cache")
	return cmd
}

func pkgList(query string, all, global bool) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	if !global {
		ws, _, _, err := a.openWorkspace(".")
		if err != nil {
			return err
		}
		entries, _ := os.ReadDir(ws.PackagesDir())
		var names []string
		for _, e := range entries {
			n := e.Name()
			if strings.HasSuffix(n, ".path.json") || strings.HasSuffix(n, ".system.json") {
				continue
			}
			if query != "" && !strings.Contains(n, query) {
				continue
			}
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Println("Workspace:")
		for _, n := range names {
			fmt.Println("  " + n)
		}
	}

	if global || all {
		entries, _ := os.ReadDir(a.cache.Root())
		var names []string
		for _, e := range entries {
			n := e.Name()
			if strings.HasPrefix(n, ".tmp-") {
				continue
			}
			if query != "" && !strings.Contains(n, query) {
				continue
			}
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Println("Global cache:")
		for _, n := range names {
			fmt.Println("  " + n)
		}
	}
	return nil
}

func newPkgUnpublishCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "unpublish <name> <ver>",
		Short: "Delete a published version from the registry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return pkgUnpublish(args[0], args[1], yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func pkgUnpublish(name, version string, yes bool) error {
	if !yes {
		ok, err := stdioPrompter{}.Choose(fmt.Sprintf("Permanently delete %s@%s from the registry?", name, version), []string{"yes", "no"})
		if err != nil || ok != "yes" {
			return asUserError(fmt.Errorf("pkg unpublish: cancelled"))
		}
	}
	registryURL := cfg.RegistryURL
	if registryURL == "" {
		registryURL = defaultRegistryURL
	}
	if err := deleteFromRegistry(registryURL, name, version); err != nil {
		return asNetworkError(err)
	}
	fmt.Printf("Unpublished %s@%s\n", name, version)
	return nil
}
