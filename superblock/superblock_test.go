package superblock

import (
	"testing"

	"github.com/dargueta/shadowfs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	sb, err := New(4096, 1024, 128)
	require.NoError(t, err)

	assert.EqualValues(t, 4096*1024, sb.TotalBytes())
	assert.EqualValues(t, 1024, sb.NumBlocks())
	assert.EqualValues(t, 1024, sb.FreeBlocks())
	assert.EqualValues(t, 128, sb.FreeInodes)
	assert.NotEqual(t, uuid.Nil, sb.VolumeID, "volume id not generated")
}

func TestNewRejectsZeroSizes(t *testing.T) {
	_, err := New(0, 10, 10)
	assert.ErrorIs(t, err, shadowfs.ErrInvalidArgument)
	_, err = New(512, 0, 10)
	assert.ErrorIs(t, err, shadowfs.ErrInvalidArgument)
	_, err = New(512, 10, 0)
	assert.ErrorIs(t, err, shadowfs.ErrInvalidArgument)
}

func TestIndexAndDataBlocksShareOnePool(t *testing.T) {
	sb, err := New(512, 4, 4)
	require.NoError(t, err)

	data, err := sb.AllocateBlock()
	require.NoError(t, err)
	index, err := sb.AllocateIndexBlock()
	require.NoError(t, err)

	assert.EqualValues(t, 0, data)
	assert.EqualValues(t, 1, index, "index block didn't come from the shared pool")
	assert.EqualValues(t, 2, sb.FreeBlocks())

	sb.FreeIndexBlock(index)
	sb.FreeBlock(data)
	assert.EqualValues(t, 4, sb.FreeBlocks())
}

func TestRestore(t *testing.T) {
	sb, err := New(512, 16, 4)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := sb.AllocateBlock()
		require.NoError(t, err)
	}
	sb.FreeInodes = 2

	restored := Restore(sb.VolumeID, sb.BlockSize, sb.NumBlocks(), sb.InodeTableSize, sb.FreeInodes, sb.Bitmap())
	assert.Equal(t, sb.VolumeID, restored.VolumeID)
	assert.EqualValues(t, 11, restored.FreeBlocks())
	assert.EqualValues(t, 2, restored.FreeInodes)
	assert.True(t, restored.IsBlockAllocated(4))
	assert.False(t, restored.IsBlockAllocated(5))
}
