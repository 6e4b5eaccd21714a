package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/horus-robotics/horus/internal/manifest"
	"github.com/horus-robotics/horus/internal/sources"
	"github.com/horus-robotics/horus/internal/workspace"
)

func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "env", Short: "Freeze or restore a workspace's installed package set"}
	cmd.AddCommand(newEnvFreezeCmd(), newEnvRestoreCmd())
	return cmd
}

func newEnvFreezeCmd() *cobra.Command {
	var out string
	var publish bool
	cmd := &cobra.Command{
		Use:   "freeze",
		Short: "Emit an environment manifest describing the current workspace overlay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return envFreeze(out, publish)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().BoolVar(&publish, "publish", false, "upload the frozen manifest to the registry")
	return cmd
}

func envFreeze(out string, publish bool) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	ws, err := workspace.Open(".")
	if err != nil {
		return asUserError(err)
	}
	m, err := manifest.Load("horus.yaml")
	name, description := "", ""
	if err == nil {
		name, description = m.Name, m.Description
	}

	env, err := ws.Freeze(name, description, horusVersion)
	if err != nil {
		return asUserError(fmt.Errorf("env freeze: %w", err))
	}

	data, err := yaml.Marshal(env)
	if err != nil {
		return asUserError(fmt.Errorf("env freeze: encoding manifest: %w", err))
	}

	if out == "" {
		fmt.Print(string(data))
	} else if err := os.WriteFile(out, data, 0o644); err != nil {
		return asUserError(fmt.Errorf("env freeze: writing %s: %w", out, err))
	}

	if publish {
		if err := env.ValidateForPublish(); err != nil {
			return asUserError(fmt.Errorf("env freeze --publish: %w", err))
		}
		tarball, err := wrapYAMLAsTarball("environment.yaml", data)
		if err != nil {
			return asUserError(fmt.Errorf("env freeze --publish: %w", err))
		}
		registry := a.adapters[sources.KindRegistry].(*sources.RegistryAdapter)
		if err := registry.Publish(context.Background(), "env-"+env.HorusID, horusVersion, tarball); err != nil {
			return asNetworkError(err)
		}
		fmt.Fprintf(os.Stderr, "Published environment %s\n", env.HorusID)
	}
	return nil
}

func newEnvRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file|id>",
		Short: "Restore a workspace from an environment manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return envRestore(args[0])
		},
	}
	return cmd
}

func envRestore(fileOrID string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	data, err := loadEnvironmentSource(a, fileOrID)
	if err != nil {
		return err
	}
	var env manifest.Environment
	if err := yaml.Unmarshal(data, &env); err != nil {
		return asUserError(fmt.Errorf("env restore: decoding manifest: %w", err))
	}

	_, _, installer, err := a.openWorkspace(".")
	if err != nil {
		return err
	}
	restorer := &workspace.Restorer{
		Installer: installer,
		System:    a.adapters[sources.KindSystem].(*sources.SystemAdapter),
		Prompter:  a.prompter,
	}
	warnings, err := restorer.Restore(context.Background(), &env)
	if err != nil {
		return asNetworkError(fmt.Errorf("env restore: %w", err))
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.Package, w.Reason)
	}
	fmt.Printf("Restored environment %s (%d packages)\n", env.HorusID, len(env.Packages))
	return nil
}

// loadEnvironmentSource reads fileOrID either as a local file path or, if
// no such file exists, as a registry-hosted environment id fetched as
// "env-<id>"'s published tarball contents (the same naming `env freeze
// --publish` uses).
func loadEnvironmentSource(a *app, fileOrID string) ([]byte, error) {
	if data, err := os.ReadFile(fileOrID); err == nil {
		return data, nil
	}
	registry := a.adapters[sources.KindRegistry].(*sources.RegistryAdapter)
	fetched, err := registry.Fetch(context.Background(), "env-"+fileOrID, horusVersion)
	if err != nil {
		return nil, asNetworkError(fmt.Errorf("env restore: fetching environment %q: %w", fileOrID, err))
	}
	data, err := os.ReadFile(fetched.CachePath + "/environment.yaml")
	if err != nil {
		return nil, asUserError(fmt.Errorf("env restore: %q is neither a local file nor a known environment id", fileOrID))
	}
	return data, nil
}
