package buildsys

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIncrementalStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "build.cache"))
	require.NoError(t, err)

	hash := TargetHash("/ws/horus.yaml", "main")
	key := [32]byte{1, 2, 3}

	_, _, found, err := store.Lookup(hash)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Put(hash, key, "/ws/target/debug/main"))

	gotKey, path, found, err := store.Lookup(hash)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, key, gotKey)
	require.Equal(t, "/ws/target/debug/main", path)
}

func TestIncrementalStoreOverwritesExistingTarget(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "build.cache"))
	require.NoError(t, err)

	hash := TargetHash("/ws/horus.yaml", "main")
	require.NoError(t, store.Put(hash, [32]byte{1}, "/a"))
	require.NoError(t, store.Put(hash, [32]byte{2}, "/b"))

	key, path, found, err := store.Lookup(hash)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, [32]byte{2}, key)
	require.Equal(t, "/b", path)
}

func TestComputeCacheKeyChangesWithSourceMtime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.rs")
	require.NoError(t, os.WriteFile(src, []byte("fn main() {}"), 0o644))

	key1, err := ComputeCacheKey([]string{src}, false, "depshash")
	require.NoError(t, err)

	newTime := time.Now().Add(1 * time.Hour)
	require.NoError(t, os.Chtimes(src, newTime, newTime))

	key2, err := ComputeCacheKey([]string{src}, false, "depshash")
	require.NoError(t, err)
	require.NotEqual(t, key1, key2)
}

func TestComputeCacheKeyChangesWithOverlayDepsHash(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.rs")
	require.NoError(t, os.WriteFile(src, []byte("fn main() {}"), 0o644))

	key1, err := ComputeCacheKey([]string{src}, false, "hash-a")
	require.NoError(t, err)
	key2, err := ComputeCacheKey([]string{src}, false, "hash-b")
	require.NoError(t, err)
	require.NotEqual(t, key1, key2)
}

func TestOrderResolvesSiblingDependencies(t *testing.T) {
	order, err := Order([]Node{
		{Name: "app", Requires: []string{"libcore"}},
		{Name: "libcore"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"libcore", "app"}, order)
}

func TestOrderDetectsCycle(t *testing.T) {
	_, err := Order([]Node{
		{Name: "a", Requires: []string{"b"}},
		{Name: "b", Requires: []string{"a"}},
	})
	require.Error(t, err)
}
