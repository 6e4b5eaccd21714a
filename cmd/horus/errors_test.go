package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/horus-robotics/horus/internal/cache"
	"github.com/horus-robotics/horus/internal/sources"
)

func TestExitCodeForSuccess(t *testing.T) {
	require.Equal(t, 0, exitCodeFor(nil))
}

func TestExitCodeForUserError(t *testing.T) {
	require.Equal(t, 1, exitCodeFor(asUserError(errors.New("bad manifest"))))
}

func TestExitCodeForNetworkError(t *testing.T) {
	require.Equal(t, 2, exitCodeFor(asNetworkError(errors.New("registry unreachable"))))
}

func TestExitCodeForCancelled(t *testing.T) {
	require.Equal(t, 130, exitCodeFor(fmt.Errorf("run: %w", errCancelled)))
}

func TestSolutionsForAmbiguousSourceSuggestsFlag(t *testing.T) {
	hints := solutionsFor(asUserError(fmt.Errorf("resolving numpy: %w", sources.ErrAmbiguousSource)))
	require.NotEmpty(t, hints)
	require.Contains(t, hints[0], "--source")
}

func TestSolutionsForChecksumMismatchSuggestsClearingCache(t *testing.T) {
	hints := solutionsFor(fmt.Errorf("fetch: %w", cache.ErrChecksumMismatch))
	require.NotEmpty(t, hints)
}

func TestSolutionsForUnknownErrorIsEmpty(t *testing.T) {
	require.Empty(t, solutionsFor(errors.New("something unrelated")))
}

func TestRenderErrorIncludesSolutionsHeader(t *testing.T) {
	out := renderError(asUserError(fmt.Errorf("install: %w", sources.ErrToolchainMissing)))
	require.Contains(t, out, "error:")
	require.Contains(t, out, "Solutions:")
}
