package snapshot_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/dargueta/shadowfs"
	"github.com/dargueta/shadowfs/permissions"
	"github.com/dargueta/shadowfs/snapshot"
	dt "github.com/dargueta/shadowfs/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPopulatedVolume(t *testing.T) snapshot.State {
	state := dt.CreateVolume(512, 100, 8, 6, t)
	dt.AddFile(state, "a.txt", 1500, t)
	docs := dt.AddDirectory(state, "docs", t)
	dt.AddFile(state, "with space.txt", 0, t)
	big := dt.AddFile(state, "big.bin", 512*12, t)

	in, err := state.Inodes.Get(big)
	require.NoError(t, err)
	require.NoError(t, permissions.AddACL(in, 42, shadowfs.PermRead|shadowfs.PermWrite))
	require.NoError(t, permissions.AddACL(in, 7, shadowfs.PermExecute))
	require.NoError(t, permissions.SetMode(in, 0o640, dt.FixedTime))

	// Leave a hole in the inode table.
	require.NoError(t, state.Directory.Rename("docs", "documents"))
	removed, err := state.Directory.Remove("documents")
	require.NoError(t, err)
	require.Equal(t, docs, removed)
	require.NoError(t, state.Inodes.Release(docs, dt.FixedTime))
	return state
}

func TestRoundTrip(t *testing.T) {
	state := buildPopulatedVolume(t)
	stream, _ := dt.CheckpointStream(state, t)

	loaded, err := snapshot.Load(stream)
	require.NoError(t, err)

	assert.Equal(t, state.Superblock.VolumeID, loaded.Superblock.VolumeID)
	assert.Equal(t, state.Superblock.BlockSize, loaded.Superblock.BlockSize)
	assert.Equal(t, state.Superblock.NumBlocks(), loaded.Superblock.NumBlocks())
	assert.Equal(t, state.Superblock.FreeBlocks(), loaded.Superblock.FreeBlocks())
	assert.Equal(t, state.Superblock.FreeInodes, loaded.Superblock.FreeInodes)
	assert.Equal(t, state.Superblock.Bitmap(), loaded.Superblock.Bitmap())
	assert.Equal(t, state.Inodes.Slots(), loaded.Inodes.Slots())
	assert.Equal(t, state.Directory.Entries(), loaded.Directory.Entries())
	assert.Equal(t, state.Directory.Cap(), loaded.Directory.Cap())

	dt.AssertBlockAccounting(loaded, t)
	dt.AssertDirectoryConsistent(loaded, t)
}

func TestSizeMatchesLayout(t *testing.T) {
	state := dt.CreateVolume(512, 100, 8, 6, t)
	dt.AddFile(state, "abc", 10, t)

	// 36-byte superblock header, 13 bitmap bytes, 8 inodes of 180 bytes, an
	// 8-byte directory header and one 6-byte entry header plus the name.
	assert.Equal(t, 36+13+8*180+8+6+3, snapshot.Size(state))
}

func TestFreeBlockCountIsRecomputed(t *testing.T) {
	state := dt.CreateVolume(512, 16, 4, 4, t)
	dt.AddFile(state, "a", 512*3, t)
	_, backing := dt.CheckpointStream(state, t)

	// Corrupt the stored free block count.
	binary.LittleEndian.PutUint32(backing[8:12], 1)

	loaded, err := snapshot.Load(bytes.NewReader(backing))
	require.NoError(t, err)
	assert.EqualValues(t, 13, loaded.Superblock.FreeBlocks())
}

func TestLoadWithoutDirectorySection(t *testing.T) {
	state := dt.CreateVolume(512, 16, 4, 4, t)
	dt.AddFile(state, "a", 100, t)
	_, backing := dt.CheckpointStream(state, t)

	truncated := backing[:36+2+4*180]
	loaded, err := snapshot.Load(bytes.NewReader(truncated))
	require.NoError(t, err)
	assert.Zero(t, loaded.Directory.Len())
	assert.EqualValues(t, 4, loaded.Directory.Cap())
	assert.Equal(t, state.Inodes.Slots(), loaded.Inodes.Slots())
}

func TestLoadTruncated(t *testing.T) {
	state := buildPopulatedVolume(t)
	_, backing := dt.CheckpointStream(state, t)

	for _, length := range []int{0, 10, 36, 36 + 13 + 100, len(backing) - 1} {
		_, err := snapshot.Load(bytes.NewReader(backing[:length]))
		assert.ErrorIsf(t, err, snapshot.ErrCorrupt, "truncated to %d bytes", length)
		assert.ErrorIsf(t, err, shadowfs.ErrInvalidArgument, "truncated to %d bytes", length)
	}
}

func TestLoadRejectsZeroGeometry(t *testing.T) {
	_, err := snapshot.Load(bytes.NewReader(make([]byte, 64)))
	assert.ErrorIs(t, err, snapshot.ErrCorrupt)
}

func TestLoadRejectsOversizedHeaders(t *testing.T) {
	state := dt.CreateVolume(512, 16, 4, 4, t)
	dt.AddFile(state, "a", 100, t)
	_, backing := dt.CheckpointStream(state, t)

	// 36-byte superblock header, 2 bitmap bytes, then 4 inodes of 180 bytes.
	const directoryOffset = 36 + 2 + 4*180
	tests := map[string]func(data []byte){
		"block count": func(data []byte) {
			binary.LittleEndian.PutUint32(data[4:8], 0xFFFFFFFF)
		},
		"inode table size": func(data []byte) {
			binary.LittleEndian.PutUint32(data[12:16], 0xFFFFFFFF)
		},
		"directory capacity": func(data []byte) {
			binary.LittleEndian.PutUint32(data[directoryOffset:], 0xFFFFFFFF)
		},
		"directory count": func(data []byte) {
			binary.LittleEndian.PutUint32(data[directoryOffset:], shadowfs.MaxFiles)
			binary.LittleEndian.PutUint32(data[directoryOffset+4:], shadowfs.MaxFiles)
		},
		"name length": func(data []byte) {
			binary.LittleEndian.PutUint16(data[directoryOffset+8+4:], 0xFFFF)
		},
	}

	for name, corrupt := range tests {
		t.Run(name, func(t *testing.T) {
			data := bytes.Clone(backing)
			corrupt(data)
			_, err := snapshot.Load(bytes.NewReader(data))
			assert.ErrorIs(t, err, snapshot.ErrCorrupt)
		})
	}
}

func TestSaveFileAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file_system_state.dat")

	_, err := snapshot.LoadFile(path)
	assert.ErrorIs(t, err, snapshot.ErrNoCheckpoint)
	assert.ErrorIs(t, err, shadowfs.ErrNotFound)

	state := buildPopulatedVolume(t)
	require.NoError(t, snapshot.SaveFile(path, state))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, snapshot.Size(state), info.Size())

	loaded, err := snapshot.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, state.Inodes.Slots(), loaded.Inodes.Slots())
	assert.Equal(t, state.Directory.Entries(), loaded.Directory.Entries())

	leftovers, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temporary checkpoint files left behind")
}

func TestSaveFileIntoMissingDirectory(t *testing.T) {
	state := dt.CreateVolume(512, 16, 4, 4, t)
	err := snapshot.SaveFile(filepath.Join(t.TempDir(), "nope", "state.dat"), state)
	assert.ErrorIs(t, err, shadowfs.ErrIOFailed)
}
