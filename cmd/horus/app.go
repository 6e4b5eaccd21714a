package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/horus-robotics/horus/internal/buildsys"
	"github.com/horus-robotics/horus/internal/cache"
	"github.com/horus-robotics/horus/internal/logging"
	"github.com/horus-robotics/horus/internal/manifest"
	"github.com/horus-robotics/horus/internal/sources"
	"github.com/horus-robotics/horus/internal/workspace"
)

// app bundles the long-lived collaborators every subcommand wires
// together: the global cache, the full set of package source adapters,
// and a logger, all built once from the process configuration.
type app struct {
	cfg      *config
	cache    *cache.Store
	adapters map[sources.Kind]sources.Adapter
	prompter sources.Prompter
	logger   *slog.Logger
}

// newApp opens the global cache and constructs every adapter, per
// SPEC_FULL.md §6's cobra+viper wiring section.
func newApp(cfg *config) (*app, error) {
	root := cfg.cacheRoot()
	if root == "" {
		root = cache.DefaultRoot()
	}
	store, err := cache.Open(root)
	if err != nil {
		return nil, asUserError(fmt.Errorf("opening global cache: %w", err))
	}

	registryURL := cfg.RegistryURL
	if registryURL == "" {
		registryURL = defaultRegistryURL
	}

	adapters := map[sources.Kind]sources.Adapter{
		sources.KindRegistry: sources.NewRegistryAdapter(registryURL, store),
		sources.KindPyPI:     sources.NewPyPIAdapter(store),
		sources.KindCratesIO: sources.NewCratesIOAdapter(store),
		sources.KindSystem:   sources.NewSystemAdapter(),
		sources.KindPath:     sources.NewPathAdapter(),
	}

	logger := logging.New(logging.Options{
		Output:   os.Stderr,
		Colorize: logging.IsTerminal(os.Stderr),
	})

	return &app{
		cfg:      cfg,
		cache:    store,
		adapters: adapters,
		prompter: stdioPrompter{},
		logger:   logger,
	}, nil
}

// openWorkspace opens (creating if absent) the .horus/ overlay at dir,
// the build cache driver over it, and an Installer wired to a's adapters.
func (a *app) openWorkspace(dir string) (*workspace.Workspace, *buildsys.Driver, *workspace.Installer, error) {
	ws, err := workspace.Open(dir)
	if err != nil {
		return nil, nil, nil, asUserError(err)
	}
	driver, err := buildsys.NewDriver(ws, a.cache)
	if err != nil {
		return nil, nil, nil, asUserError(err)
	}
	installer := &workspace.Installer{
		WS:         ws,
		Cache:      a.cache,
		Adapters:   a.adapters,
		ManifestOf: loadChildManifest,
	}
	return ws, driver, installer, nil
}

// loadChildManifest reads a linked-in package's own horus.yaml, if any,
// so Installer.InstallAll can recurse into its dependencies. Absence of a
// manifest (a PyPI/CratesIO payload, or a bare Path leaf) is not an
// error: it simply means this package has no further deps to install.
func loadChildManifest(_ manifest.LockedPackage, dir string) (*manifest.Manifest, error) {
	m, err := manifest.Load(filepath.Join(dir, "horus.yaml"))
	if err != nil {
		return nil, nil
	}
	return m, nil
}

// stdioPrompter answers ambiguity/restore prompts over the process's own
// stdin/stdout, the interactive counterpart to the scripted Prompter
// tests use. It asks via survey.Select, the same select-prompt library
// the wider package-manifest ecosystem reaches for (survey has no
// teacher analog, but is grounded on the example pack's own manifests).
type stdioPrompter struct{}

func (stdioPrompter) Choose(question string, options []string) (string, error) {
	var choice string
	prompt := &survey.Select{Message: question, Options: options}
	err := survey.AskOne(prompt, &choice)
	if err != nil {
		if errors.Is(err, terminal.InterruptErr) || err == io.EOF {
			return "", nil // treat interrupt/EOF/non-interactive stdin as cancel
		}
		return "", err
	}
	return choice, nil
}
