package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateMakesRestrictedSessionDirectory(t *testing.T) {
	root := t.TempDir()

	sess, err := Create(root)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.Equal(t, filepath.Join(root, "sessions", string(sess.ID)), sess.Root)

	info, err := os.Stat(sess.Root)
	require.NoError(t, err)
	require.True(t, info.IsDir())
	require.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestCreateFallsBackToDefaultShmRootWhenEmpty(t *testing.T) {
	sess, err := Create("")
	require.NoError(t, err)
	defer sess.Destroy()

	require.Contains(t, sess.Root, string(sess.ID))
}

func TestEnvProducesSessionIDAssignment(t *testing.T) {
	sess, err := Create(t.TempDir())
	require.NoError(t, err)
	defer sess.Destroy()

	require.True(t, strings.HasPrefix(sess.Env(), "HORUS_SESSION_ID="))
	require.Equal(t, "HORUS_SESSION_ID="+string(sess.ID), sess.Env())
}

func TestDestroyRemovesSessionDirectoryAndIsIdempotent(t *testing.T) {
	root := t.TempDir()
	sess, err := Create(root)
	require.NoError(t, err)

	require.NoError(t, sess.Destroy())
	_, err = os.Stat(sess.Root)
	require.True(t, os.IsNotExist(err))

	// Calling Destroy again on an already-removed directory is not an error.
	require.NoError(t, sess.Destroy())
}

func TestTopicSegmentPathIsScopedToSessionRoot(t *testing.T) {
	sess, err := Create(t.TempDir())
	require.NoError(t, err)
	defer sess.Destroy()

	path := sess.TopicSegmentPath("telemetry")
	require.True(t, strings.HasPrefix(path, sess.Root))
}

func TestNewMintsDistinctIDs(t *testing.T) {
	require.NotEqual(t, New(), New())
}
