// Package superblock holds the process-wide volume metadata: capacity, the
// block allocation bitmap, and the free-inode counter.
package superblock

import (
	"fmt"

	"github.com/dargueta/shadowfs"
	"github.com/dargueta/shadowfs/common"
	"github.com/google/uuid"
)

type Superblock struct {
	VolumeID       uuid.UUID
	BlockSize      uint
	InodeTableSize uint
	FreeInodes     uint
	blocks         *common.Allocator
}

// New creates the superblock for an empty volume. Every block and every inode
// is free.
func New(blockSize, numBlocks, inodeTableSize uint) (*Superblock, error) {
	if blockSize == 0 || numBlocks == 0 || inodeTableSize == 0 {
		return nil, shadowfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"block size, block count and inode table size must be non-zero, got %d, %d, %d",
				blockSize,
				numBlocks,
				inodeTableSize,
			),
		)
	}

	return &Superblock{
		VolumeID:       uuid.New(),
		BlockSize:      blockSize,
		InodeTableSize: inodeTableSize,
		FreeInodes:     inodeTableSize,
		blocks:         common.NewAllocator(numBlocks),
	}, nil
}

// Restore rebuilds a superblock from checkpointed fields. The free block count
// is derived from `bitmap`.
func Restore(
	volumeID uuid.UUID,
	blockSize, numBlocks, inodeTableSize, freeInodes uint,
	bitmap []byte,
) *Superblock {
	return &Superblock{
		VolumeID:       volumeID,
		BlockSize:      blockSize,
		InodeTableSize: inodeTableSize,
		FreeInodes:     freeInodes,
		blocks:         common.NewAllocatorFromInUseBitmap(bitmap, numBlocks),
	}
}

// TotalBytes is the nominal capacity of the volume.
func (sb *Superblock) TotalBytes() uint64 {
	return uint64(sb.BlockSize) * uint64(sb.blocks.TotalUnits)
}

func (sb *Superblock) NumBlocks() uint {
	return sb.blocks.TotalUnits
}

func (sb *Superblock) FreeBlocks() uint {
	return sb.blocks.FreeCount()
}

// AllocateBlock takes the lowest-numbered free block for file data.
func (sb *Superblock) AllocateBlock() (common.BlockID, error) {
	return sb.blocks.Allocate()
}

// AllocateIndexBlock takes the lowest-numbered free block for use as an index
// block. Index and data blocks come from the same pool.
func (sb *Superblock) AllocateIndexBlock() (common.BlockID, error) {
	return sb.blocks.Allocate()
}

func (sb *Superblock) FreeBlock(block common.BlockID) {
	sb.blocks.Free(block)
}

func (sb *Superblock) FreeIndexBlock(block common.BlockID) {
	sb.blocks.Free(block)
}

func (sb *Superblock) IsBlockAllocated(block common.BlockID) bool {
	return sb.blocks.IsAllocated(block)
}

// Bitmap returns a copy of the packed allocation bitmap.
func (sb *Superblock) Bitmap() []byte {
	return sb.blocks.Bytes()
}

func (sb *Superblock) String() string {
	return fmt.Sprintf(
		"volume %s: %d/%d blocks free, %d/%d inodes free",
		sb.VolumeID,
		sb.FreeBlocks(),
		sb.NumBlocks(),
		sb.FreeInodes,
		sb.InodeTableSize,
	)
}
