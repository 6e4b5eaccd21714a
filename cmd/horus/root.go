package main

import (
	"github.com/spf13/cobra"
)

var cfg *config

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "horus",
		Short:         "Build, resolve dependencies for, and launch horus projects",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cobra.OnInitialize(func() { cfg = loadConfig() })

	root.AddCommand(
		newNewCmd(),
		newRunCmd(),
		newCheckCmd(),
		newPkgCmd(),
		newEnvCmd(),
		newDashboardCmd(),
	)
	return root
}
