package transport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscoverFindsSegmentsAndSkipsOthers(t *testing.T) {
	dir := t.TempDir()

	path := SegmentPath(dir, "odom/front")
	mem, err := OpenSharedMemory(SharedMemoryOptions{Path: path, Size: SegmentSize(64, 4), Create: true})
	require.NoError(t, err)
	seg, err := CreateSegment(mem, 64, 4)
	require.NoError(t, err)
	require.NoError(t, seg.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("not a segment"), 0o600))

	infos, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "odom_front", infos[0].Topic)
	require.Equal(t, uint32(64), infos[0].SlotSize)
	require.Equal(t, uint32(4), infos[0].SlotCount)
}

func TestSharedMemoryCreateIsExclusive(t *testing.T) {
	dir := t.TempDir()
	path := SegmentPath(dir, "imu")

	mem1, err := OpenSharedMemory(SharedMemoryOptions{Path: path, Size: SegmentSize(64, 4), Create: true})
	require.NoError(t, err)
	defer mem1.Close()

	_, err = OpenSharedMemory(SharedMemoryOptions{Path: path, Size: SegmentSize(64, 4), Create: true})
	require.ErrorIs(t, err, ErrAlreadyExists)

	mem2, err := OpenSharedMemory(SharedMemoryOptions{Path: path})
	require.NoError(t, err)
	defer mem2.Close()
}
