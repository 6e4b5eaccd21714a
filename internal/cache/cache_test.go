package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaterializeIsAtomicAndIdempotent(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	calls := 0
	fill := func(tmp string) error {
		calls++
		return os.WriteFile(filepath.Join(tmp, "pkg.txt"), []byte("hello"), 0o644)
	}

	path, err := store.Materialize("numpy", "1.26.0", "", fill)
	require.NoError(t, err)
	require.True(t, store.Has("numpy", "1.26.0"))
	require.FileExists(t, filepath.Join(path, "pkg.txt"))

	// A second Materialize call for the same entry must not re-invoke fill.
	_, err = store.Materialize("numpy", "1.26.0", "", fill)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestMaterializeRejectsChecksumMismatch(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = store.Materialize("bad", "1.0.0", "deadbeef", func(tmp string) error {
		return os.WriteFile(filepath.Join(tmp, "f"), []byte("x"), 0o644)
	})
	require.ErrorIs(t, err, ErrChecksumMismatch)
	require.False(t, store.Has("bad", "1.0.0"))

	// No stray temp directories survive a failed materialize.
	entries, err := os.ReadDir(store.root)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestMaterializeCleansUpOnFillError(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = store.Materialize("broken", "1.0.0", "", func(tmp string) error {
		_ = os.WriteFile(filepath.Join(tmp, "partial"), []byte("x"), 0o644)
		return os.ErrInvalid
	})
	require.Error(t, err)
	require.False(t, store.Has("broken", "1.0.0"))

	entries, err := os.ReadDir(store.root)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestHashDirIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("two"), 0o644))

	h1, err := HashDir(dir)
	require.NoError(t, err)
	h2, err := HashDir(dir)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestComputeAccountingBucketsBySize(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = store.Materialize("small", "1.0.0", "", func(tmp string) error {
		return os.WriteFile(filepath.Join(tmp, "f"), make([]byte, 1024), 0o644)
	})
	require.NoError(t, err)

	_, err = store.Materialize("big", "1.0.0", "", func(tmp string) error {
		return os.WriteFile(filepath.Join(tmp, "f"), make([]byte, 200*1024), 0o644)
	})
	require.NoError(t, err)

	acc, err := store.ComputeAccounting()
	require.NoError(t, err)

	var totalCount int
	for _, c := range acc.Classes {
		totalCount += c.Count
	}
	totalCount += acc.Overflow.Count
	require.Equal(t, 2, totalCount)
}
