// Command horus is the CLI entrypoint: project scaffolding, dependency
// resolution and install, build+launch orchestration, and environment
// freeze/restore, per spec.md §6.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, renderError(err))
		os.Exit(exitCodeFor(err))
	}
}
