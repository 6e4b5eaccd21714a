package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// manifestTemplates holds the horus.yaml body and conventional main file
// scaffolded per language, per spec.md §6 `new <name> [--python|--rust|--c]`.
var manifestTemplates = map[string]struct {
	language string
	mainFile string
	mainBody string
}{
	"python": {
		language: "python",
		mainFile: "main.py",
		mainBody: "def main():\n    print(\"hello from {{NAME}}\")\n\n\nif __name__ == \"__main__\":\n    main()\n",
	},
	"rust": {
		language: "rust",
		mainFile: "main.rs",
		mainBody: "fn main() {\n    println!(\"hello from {{NAME}}\");\n}\n",
	},
	"c": {
		language: "cpp",
		mainFile: "main.c",
		mainBody: "#include <stdio.h>\n\nint main(void) {\n    printf(\"hello from {{NAME}}\\n\");\n    return 0;\n}\n",
	},
}

func newNewCmd() *cobra.Command {
	var usePython, useRust, useC bool

	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Scaffold a new project directory with a horus.yaml manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			lang := "python"
			switch {
			case useRust:
				lang = "rust"
			case useC:
				lang = "c"
			case usePython:
				lang = "python"
			}
			return scaffold(name, lang)
		},
	}

	cmd.Flags().BoolVar(&usePython, "python", false, "scaffold a Python project (default)")
	cmd.Flags().BoolVar(&useRust, "rust", false, "scaffold a Rust project")
	cmd.Flags().BoolVar(&useC, "c", false, "scaffold a C project")
	return cmd
}

func scaffold(name, lang string) error {
	tmpl, ok := manifestTemplates[lang]
	if !ok {
		return asUserError(fmt.Errorf("new: unknown language %q", lang))
	}

	dir := name
	if _, err := os.Stat(dir); err == nil {
		return asUserError(fmt.Errorf("new: %s already exists", dir))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return asUserError(fmt.Errorf("new: creating %s: %w", dir, err))
	}

	manifestYAML := fmt.Sprintf("name: %s\nversion: 0.1.0\nlanguage: %s\ndependencies: []\n", name, tmpl.language)
	if err := os.WriteFile(filepath.Join(dir, "horus.yaml"), []byte(manifestYAML), 0o644); err != nil {
		return asUserError(fmt.Errorf("new: writing horus.yaml: %w", err))
	}

	rendered := strings.ReplaceAll(tmpl.mainBody, "{{NAME}}", name)
	if err := os.WriteFile(filepath.Join(dir, tmpl.mainFile), []byte(rendered), 0o644); err != nil {
		return asUserError(fmt.Errorf("new: writing %s: %w", tmpl.mainFile, err))
	}

	fmt.Printf("Created %s (%s)\n", dir, tmpl.language)
	return nil
}
