package buildsys

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
)

// buildNative compiles a Rust target via cargo, with the overlay's lib/
// dir and the global-cache root passed in RUSTFLAGS's native
// library search path so overlay-installed crates with compiled
// artifacts are visible to the linker.
func buildNative(ctx context.Context, t Target, libSearchPath []string) (string, error) {
	args := []string{"build"}
	if t.Release {
		args = append(args, "--release")
	}
	args = append(args, "--manifest-path", t.SourcePath)

	cmd := exec.CommandContext(ctx, "cargo", args...)
	cmd.Env = append(cmd.Environ(), "RUSTFLAGS="+rustLinkSearchFlags(libSearchPath))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("buildsys: cargo build %s: %w: %s", t.Name, err, out)
	}

	profile := "debug"
	if t.Release {
		profile = "release"
	}
	return filepath.Join(filepath.Dir(t.SourcePath), "target", profile, t.Name), nil
}

func rustLinkSearchFlags(dirs []string) string {
	flags := ""
	for _, d := range dirs {
		flags += "-L native=" + d + " "
	}
	return flags
}
