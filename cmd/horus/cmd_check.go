package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/horus-robotics/horus/internal/manifest"
)

func newCheckCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a manifest and its source syntax",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) == 1 {
				target = args[0]
			}
			return runCheck(target, quiet)
		},
	}
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress success output")
	return cmd
}

func runCheck(target string, quiet bool) error {
	dir := target
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		dir = filepath.Dir(target)
	}
	manifestPath := filepath.Join(dir, "horus.yaml")

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return asUserError(fmt.Errorf("check: %w", err))
	}

	if m.Language == manifest.LanguageCpp {
		if err := checkCSyntax(dir); err != nil {
			return asUserError(fmt.Errorf("check: %w", err))
		}
	}

	if !quiet {
		fmt.Printf("OK: %s (%s)\n", m.Name, m.Language)
	}
	return nil
}

// checkCSyntax gives Go-authored C/C++ projects in this toolchain at
// least a brace balance check: a real syntax check belongs to the
// target's own compiler, invoked at build time, not here.
func checkCSyntax(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.c"))
	if err != nil {
		return err
	}
	cppMatches, err := filepath.Glob(filepath.Join(dir, "*.cpp"))
	if err != nil {
		return err
	}
	matches = append(matches, cppMatches...)

	for _, f := range matches {
		data, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if depth := braceDepth(string(data)); depth != 0 {
			return fmt.Errorf("%s: unbalanced braces (depth %d)", f, depth)
		}
	}
	return nil
}

func braceDepth(src string) int {
	depth := 0
	for _, r := range src {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		}
	}
	return depth
}

// Python and Rust source files are left to their own toolchains
// (`python3 -m py_compile`, `rustc --parse-only`) at build time rather
// than reimplemented here; only the C/C++ brace check above runs ahead
// of a full build.
