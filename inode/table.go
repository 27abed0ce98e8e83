// Package inode implements the fixed-size inode table and the inode lifecycle:
// creation, block assignment as content changes size, and release.
//
// The table never validates block references against the allocator beyond
// what it allocated itself; a restored table trusts whatever it was given.
package inode

import (
	"fmt"
	"time"

	"github.com/dargueta/shadowfs"
	"github.com/dargueta/shadowfs/common"
	"github.com/dargueta/shadowfs/superblock"
)

type Table struct {
	sb    *superblock.Superblock
	slots []Inode
}

// NewTable creates an inode table with `sb.InodeTableSize` free slots.
func NewTable(sb *superblock.Superblock) *Table {
	slots := make([]Inode, sb.InodeTableSize)
	for i := range slots {
		slots[i] = emptyInode()
	}
	return &Table{sb: sb, slots: slots}
}

// RestoreTable wraps previously checkpointed slots. The slots are used as-is.
func RestoreTable(sb *superblock.Superblock, slots []Inode) *Table {
	return &Table{sb: sb, slots: slots}
}

func (t *Table) Len() int {
	return len(t.slots)
}

// Slots returns a copy of every slot, free or not, in inode-number order.
func (t *Table) Slots() []Inode {
	slots := make([]Inode, len(t.slots))
	copy(slots, t.slots)
	return slots
}

// LiveCount gives the number of slots that aren't free.
func (t *Table) LiveCount() int {
	count := 0
	for i := range t.slots {
		if !t.slots[i].IsFree() {
			count++
		}
	}
	return count
}

// Create reserves the first free slot. The new inode has no blocks, no ACL
// entries, and all three timestamps set to `now`. Call [Table.Activate] once
// it's linked into a directory, or [Table.Release] to give it back.
func (t *Table) Create(
	isDirectory bool, mode uint32, ownerID, groupID int32, now time.Time,
) (common.Inumber, error) {
	if mode&^shadowfs.ModeMask != 0 {
		return common.InvalidInumber, shadowfs.ErrInvalidPermissions.WithMessage(
			fmt.Sprintf("mode %#o has bits outside %#o", mode, shadowfs.ModeMask),
		)
	}
	if t.sb.FreeInodes == 0 {
		return common.InvalidInumber, shadowfs.ErrNoFreeInodes
	}

	for i := range t.slots {
		if !t.slots[i].IsFree() {
			continue
		}

		ts := now.Unix()
		in := emptyInode()
		in.Status = StatusReserved
		in.IsDirectory = isDirectory
		in.Mode = mode
		in.OwnerID = ownerID
		in.GroupID = groupID
		in.Atime = ts
		in.Mtime = ts
		in.Ctime = ts

		t.slots[i] = in
		t.sb.FreeInodes--
		return common.Inumber(i), nil
	}

	// The counter says there's room but every slot is taken. Trust the slots.
	return common.InvalidInumber, shadowfs.ErrNoFreeInodes.WithMessage(
		fmt.Sprintf("free inode count is %d but no slot is free", t.sb.FreeInodes),
	)
}

// Get returns the inode in slot `ino`. Free slots are reported as not found.
func (t *Table) Get(ino common.Inumber) (*Inode, error) {
	if ino < 0 || int(ino) >= len(t.slots) {
		return nil, shadowfs.ErrInodeNotFound.WithMessage(
			fmt.Sprintf("inode %d not in range [0, %d)", ino, len(t.slots)),
		)
	}
	in := &t.slots[ino]
	if in.IsFree() {
		return nil, shadowfs.ErrInodeNotFound.WithMessage(
			fmt.Sprintf("inode %d is not allocated", ino),
		)
	}
	return in, nil
}

// Activate marks a reserved inode as live.
func (t *Table) Activate(ino common.Inumber) error {
	in, err := t.Get(ino)
	if err != nil {
		return err
	}
	in.Status = StatusLive
	return nil
}

// AttachIndexBlock gives the inode an index block if it doesn't already have
// one.
func (t *Table) AttachIndexBlock(ino common.Inumber) error {
	in, err := t.Get(ino)
	if err != nil {
		return err
	}
	if in.IndexBlock != common.InvalidBlock {
		return nil
	}

	block, err := t.sb.AllocateIndexBlock()
	if err != nil {
		return err
	}
	in.IndexBlock = block
	return nil
}

// Release frees every block the inode references, including its index block,
// and returns the slot to the free pool.
func (t *Table) Release(ino common.Inumber, now time.Time) error {
	in, err := t.Get(ino)
	if err != nil {
		return err
	}

	for i, block := range in.DirectBlocks {
		if block != common.InvalidBlock {
			t.sb.FreeBlock(block)
			in.DirectBlocks[i] = common.InvalidBlock
		}
	}
	if in.IndexBlock != common.InvalidBlock {
		t.sb.FreeIndexBlock(in.IndexBlock)
		in.IndexBlock = common.InvalidBlock
	}

	in.IsDirectory = false
	in.Size = 0
	in.Mtime = now.Unix()
	in.Ctime = now.Unix()
	in.Status = StatusFree
	t.sb.FreeInodes++
	return nil
}

// BlocksForSize gives the number of direct blocks needed to hold `size` bytes.
func (t *Table) BlocksForSize(size int64) int {
	blockSize := int64(t.sb.BlockSize)
	return int((size + blockSize - 1) / blockSize)
}

// MaxFileSize is the largest size [Table.Resize] accepts.
func (t *Table) MaxFileSize() int64 {
	return int64(NumDirectBlocks) * int64(t.sb.BlockSize)
}

// Resize records a content change. Direct blocks are allocated or freed so the
// inode holds exactly enough to cover `size` bytes. If the volume runs out of
// blocks partway through, the blocks taken by this call are given back and the
// inode is left untouched.
func (t *Table) Resize(ino common.Inumber, size int64, now time.Time) error {
	in, err := t.Get(ino)
	if err != nil {
		return err
	}
	if in.IsDirectory {
		return shadowfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("inode %d is a directory", ino),
		)
	}
	if size < 0 || size > t.MaxFileSize() {
		return shadowfs.ErrFileTooLarge.WithMessage(
			fmt.Sprintf("%d bytes not in range [0, %d]", size, t.MaxFileSize()),
		)
	}

	needed := t.BlocksForSize(size)
	taken := make([]int, 0, needed)

	for i := 0; i < needed; i++ {
		if in.DirectBlocks[i] != common.InvalidBlock {
			continue
		}
		block, err := t.sb.AllocateBlock()
		if err != nil {
			for _, j := range taken {
				t.sb.FreeBlock(in.DirectBlocks[j])
				in.DirectBlocks[j] = common.InvalidBlock
			}
			return err
		}
		in.DirectBlocks[i] = block
		taken = append(taken, i)
	}
	for i := needed; i < NumDirectBlocks; i++ {
		if in.DirectBlocks[i] != common.InvalidBlock {
			t.sb.FreeBlock(in.DirectBlocks[i])
			in.DirectBlocks[i] = common.InvalidBlock
		}
	}

	in.Size = size
	in.Mtime = now.Unix()
	in.Ctime = now.Unix()
	return nil
}

// Touch updates the access time.
func (t *Table) Touch(ino common.Inumber, now time.Time) error {
	in, err := t.Get(ino)
	if err != nil {
		return err
	}
	in.Atime = now.Unix()
	return nil
}
