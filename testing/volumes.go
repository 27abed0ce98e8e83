package testing

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/dargueta/shadowfs/common"
	"github.com/dargueta/shadowfs/directory"
	"github.com/dargueta/shadowfs/inode"
	"github.com/dargueta/shadowfs/snapshot"
	"github.com/dargueta/shadowfs/superblock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// FixedTime is the clock used by volumes built with these helpers.
var FixedTime = time.Unix(1700000000, 0)

// CreateVolume builds an empty volume. It is guaranteed to either return a
// valid state or fail the test and abort.
func CreateVolume(
	blockSize, numBlocks, inodeTableSize, directoryCapacity uint, t *testing.T,
) snapshot.State {
	sb, err := superblock.New(blockSize, numBlocks, inodeTableSize)
	require.NoErrorf(
		t,
		err,
		"failed to create superblock with %d blocks of %d bytes and %d inodes",
		numBlocks,
		blockSize,
		inodeTableSize,
	)

	return snapshot.State{
		Superblock: sb,
		Inodes:     inode.NewTable(sb),
		Directory:  directory.NewTable(directoryCapacity),
	}
}

// AddFile creates a live file of `size` bytes and links it into the directory
// under `name`.
func AddFile(state snapshot.State, name string, size int64, t *testing.T) common.Inumber {
	ino, err := state.Inodes.Create(false, 0o644, 11, 10, FixedTime)
	require.NoError(t, err, "failed to create inode for %q", name)
	require.NoError(t, state.Inodes.Resize(ino, size, FixedTime), "failed to resize %q", name)
	require.NoError(t, state.Directory.Insert(name, ino), "failed to link %q", name)
	require.NoError(t, state.Inodes.Activate(ino))
	return ino
}

// AddDirectory creates a live directory with an index block and links it
// under `name`.
func AddDirectory(state snapshot.State, name string, t *testing.T) common.Inumber {
	ino, err := state.Inodes.Create(true, 0o755, 11, 10, FixedTime)
	require.NoError(t, err, "failed to create inode for %q", name)
	require.NoError(t, state.Inodes.AttachIndexBlock(ino), "no index block for %q", name)
	require.NoError(t, state.Directory.Insert(name, ino), "failed to link %q", name)
	require.NoError(t, state.Inodes.Activate(ino))
	return ino
}

// RandomBytes returns `size` random bytes.
func RandomBytes(size int, t *testing.T) []byte {
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoErrorf(t, err, "failed to generate %d random bytes", size)
	return data
}

// AssertBlockAccounting checks that every block referenced by an inode is
// marked allocated, no block is referenced twice, and the allocator has no
// allocated blocks that nothing references.
func AssertBlockAccounting(state snapshot.State, t *testing.T) {
	sb := state.Superblock
	owners := map[common.BlockID]int{}

	for ino, in := range state.Inodes.Slots() {
		refs := in.Blocks()
		if in.IndexBlock != common.InvalidBlock {
			refs = append(refs, in.IndexBlock)
		}
		if in.IsFree() {
			assert.Emptyf(t, refs, "free inode %d still references blocks", ino)
			continue
		}

		for _, block := range refs {
			previous, seen := owners[block]
			assert.Falsef(t, seen, "block %d referenced by inodes %d and %d", block, previous, ino)
			owners[block] = ino
			assert.Truef(t, sb.IsBlockAllocated(block), "inode %d references free block %d", ino, block)
		}
	}

	assert.EqualValues(
		t,
		sb.NumBlocks()-sb.FreeBlocks(),
		len(owners),
		"allocated block count doesn't match referenced blocks",
	)
}

// AssertDirectoryConsistent checks that every directory entry points at a live
// inode and every live inode has exactly one entry.
func AssertDirectoryConsistent(state snapshot.State, t *testing.T) {
	linked := map[common.Inumber]string{}
	for _, entry := range state.Directory.Entries() {
		in, err := state.Inodes.Get(entry.Inode)
		if assert.NoErrorf(t, err, "entry %q points at a free inode", entry.Name) {
			assert.Equalf(t, inode.StatusLive, in.Status, "entry %q isn't live", entry.Name)
		}
		other, seen := linked[entry.Inode]
		assert.Falsef(t, seen, "inode %d linked as %q and %q", entry.Inode, other, entry.Name)
		linked[entry.Inode] = entry.Name
	}

	assert.Equal(t, state.Inodes.LiveCount(), len(linked), "live inodes without a directory entry")
	assert.EqualValues(
		t,
		state.Superblock.InodeTableSize-uint(state.Inodes.LiveCount()),
		state.Superblock.FreeInodes,
		"free inode counter out of sync",
	)
}
