package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitRunArgsNoDash(t *testing.T) {
	path, extra := splitRunArgs(-1, []string{"rover.py"})
	require.Equal(t, "rover.py", path)
	require.Nil(t, extra)
}

func TestSplitRunArgsNoPositionalArgs(t *testing.T) {
	path, extra := splitRunArgs(-1, nil)
	require.Empty(t, path)
	require.Nil(t, extra)
}

func TestSplitRunArgsWithDashSplitsPathFromPassthrough(t *testing.T) {
	// `horus run rover.py -- --speed 3` arrives as args=["rover.py","--speed","3"]
	// with ArgsLenAtDash()==1 (the dash fell after the first positional arg).
	path, extra := splitRunArgs(1, []string{"rover.py", "--speed", "3"})
	require.Equal(t, "rover.py", path)
	require.Equal(t, []string{"--speed", "3"}, extra)
}

func TestSplitRunArgsDashAtStartHasNoPath(t *testing.T) {
	// `horus run -- --speed 3` with no target path before the dash.
	path, extra := splitRunArgs(0, []string{"--speed", "3"})
	require.Empty(t, path)
	require.Equal(t, []string{"--speed", "3"}, extra)
}
