package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandleRendersLevelAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf, Colorize: false, Component: "resolver"})

	logger.Info("resolved dependency set", "packages", 3)

	line := buf.String()
	require.Contains(t, line, "[INFO ]")
	require.Contains(t, line, "[resolver]")
	require.Contains(t, line, "resolved dependency set")
	require.Contains(t, line, "packages=3")
}

func TestHandleColorizeWrapsLineInEscapeCodes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf, Colorize: true})

	logger.Warn("overlay dependency missing")

	line := buf.String()
	require.True(t, strings.HasPrefix(line, levelColors[slog.LevelWarn]))
	require.True(t, strings.HasSuffix(line, colorReset+"\n"))
}

func TestEnabledRespectsConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf, Level: slog.LevelWarn})

	logger.Debug("should be filtered")
	logger.Error("should pass through")

	require.NotContains(t, buf.String(), "should be filtered")
	require.Contains(t, buf.String(), "should pass through")
}

func TestWithAttrsAppendsKeyValuePairs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf}).With("build_id", "abc123")

	logger.Info("build complete")

	require.Contains(t, buf.String(), "build_id=abc123")
}

func TestComponentScopesChildLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Options{Output: &buf})
	child := Component(base, "buildsys")

	child.Info("batch complete")

	require.Contains(t, buf.String(), "component=buildsys")
}

func TestSinceReturnsElapsedDuration(t *testing.T) {
	start := time.Now().Add(-50 * time.Millisecond)
	require.GreaterOrEqual(t, Since(start), 50*time.Millisecond)
}
