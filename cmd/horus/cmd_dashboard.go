package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/horus-robotics/horus/internal/sources"
)

// dashboardBinary is the external collaborator this command execs, per
// SPEC_FULL.md §6's recovered dashboard.rs detail: the dashboard reads
// the same control-plane parameter-store file and session directory this
// process writes, but lives outside this module entirely.
const dashboardBinary = "horus-dashboard"

func newDashboardCmd() *cobra.Command {
	var tui bool
	cmd := &cobra.Command{
		Use:   "dashboard [port]",
		Short: "Launch the introspection UI as an external process",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port := "8080"
			if len(args) == 1 {
				port = args[0]
			}
			return launchDashboard(port, tui)
		},
	}
	cmd.Flags().BoolVar(&tui, "tui", false, "run the terminal variant instead of the web UI")
	return cmd
}

func launchDashboard(port string, tui bool) error {
	path, err := exec.LookPath(dashboardBinary)
	if err != nil {
		return asUserError(fmt.Errorf("dashboard: %w: %s", sources.ErrToolchainMissing, dashboardBinary))
	}

	args := []string{"--port", port}
	if tui {
		args = append(args, "--tui")
	}
	cmd := exec.Command(path, args...)
	cmd.Stdout, cmd.Stderr, cmd.Stdin = os.Stdout, os.Stderr, os.Stdin
	if err := cmd.Run(); err != nil {
		return asUserError(fmt.Errorf("dashboard: %w", err))
	}
	return nil
}
