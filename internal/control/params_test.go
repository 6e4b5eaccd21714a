package control

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParamStoreSetGetPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")

	ps, err := OpenParamStore(path)
	require.NoError(t, err)
	require.NoError(t, ps.Set("max_tick_us", float64(500)))

	reopened, err := OpenParamStore(path)
	require.NoError(t, err)
	v, ok := reopened.Get("max_tick_us")
	require.True(t, ok)
	require.Equal(t, float64(500), v)
}

func TestParamStoreOpenMissingFileStartsEmpty(t *testing.T) {
	ps, err := OpenParamStore(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	require.Empty(t, ps.List())
}

func TestParamStoreDeleteIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	ps, err := OpenParamStore(path)
	require.NoError(t, err)
	require.NoError(t, ps.Set("k", "v"))

	require.NoError(t, ps.Delete("k"))
	_, ok := ps.Get("k")
	require.False(t, ok)

	require.NoError(t, ps.Delete("k"))
}

func TestParamStoreListReturnsIndependentSnapshot(t *testing.T) {
	ps, err := OpenParamStore(filepath.Join(t.TempDir(), "params.json"))
	require.NoError(t, err)
	require.NoError(t, ps.Set("a", 1.0))

	snapshot := ps.List()
	snapshot["a"] = 2.0

	v, _ := ps.Get("a")
	require.Equal(t, 1.0, v)
}

func TestParamStoreImportReplacesDocument(t *testing.T) {
	ps, err := OpenParamStore(filepath.Join(t.TempDir(), "params.json"))
	require.NoError(t, err)
	require.NoError(t, ps.Set("stale", "value"))

	require.NoError(t, ps.Import([]byte(`{"fresh": 42}`)))

	_, ok := ps.Get("stale")
	require.False(t, ok)
	v, ok := ps.Get("fresh")
	require.True(t, ok)
	require.Equal(t, 42.0, v)
}

func TestParamStoreExportProducesValidJSON(t *testing.T) {
	ps, err := OpenParamStore(filepath.Join(t.TempDir(), "params.json"))
	require.NoError(t, err)
	require.NoError(t, ps.Set("a", "b"))

	data, err := ps.Export()
	require.NoError(t, err)
	require.Contains(t, string(data), `"a": "b"`)
}
