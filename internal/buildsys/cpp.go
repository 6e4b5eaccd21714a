package buildsys

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// transportHeader is the include spec.md's C/C++ targets use to reach the
// overlay's shared-memory transport bindings; its presence in a source
// file is the signal to link the runtime support library.
const transportHeader = "horus/transport.h"

// detectCompiler prefers the GNU toolchain and falls back to LLVM, per
// spec.md §4.6.
func detectCompiler(cxx bool) string {
	candidates := []string{"gcc", "clang"}
	if cxx {
		candidates = []string{"g++", "clang++"}
	}
	for _, c := range candidates {
		if _, err := exec.LookPath(c); err == nil {
			return c
		}
	}
	return candidates[0]
}

// buildCpp compiles a target's C/C++ sources, linking the overlay's C
// runtime support library (-lhorus_rt) when any source includes the
// transport header.
func buildCpp(ctx context.Context, t Target, sources []string, includeSearchPath, libSearchPath []string, runtimeLibDir string) (string, error) {
	cxx := false
	for _, s := range sources {
		if strings.HasSuffix(s, ".cpp") || strings.HasSuffix(s, ".cc") {
			cxx = true
		}
	}
	compiler := detectCompiler(cxx)

	needsRuntime, err := anySourceIncludes(sources, transportHeader)
	if err != nil {
		return "", err
	}

	outDir := filepath.Join(filepath.Dir(t.SourcePath), "build")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	artifact := filepath.Join(outDir, t.Name)

	args := append([]string{}, sources...)
	for _, inc := range includeSearchPath {
		args = append(args, "-I"+inc)
	}
	for _, lib := range libSearchPath {
		args = append(args, "-L"+lib)
	}
	if needsRuntime {
		args = append(args, "-L"+runtimeLibDir, "-lhorus_rt")
	}
	if t.Release {
		args = append(args, "-O2")
	} else {
		args = append(args, "-g", "-O0")
	}
	args = append(args, "-o", artifact)

	cmd := exec.CommandContext(ctx, compiler, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("buildsys: %s %s: %w: %s", compiler, t.Name, err, out)
	}
	return artifact, nil
}

func anySourceIncludes(sources []string, header string) (bool, error) {
	needle := []byte(header)
	for _, s := range sources {
		data, err := os.ReadFile(s)
		if err != nil {
			return false, fmt.Errorf("buildsys: reading %s: %w", s, err)
		}
		if bytes.Contains(data, needle) {
			return true, nil
		}
	}
	return false, nil
}
