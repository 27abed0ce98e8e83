// Package snapshot reads and writes checkpoints: a binary image of the
// superblock, every inode slot, and the directory table.
//
// All integers are little-endian. The layout is:
//
//	superblock   blockSize u32, numBlocks u32, freeBlocks u32,
//	             inodeTableSize u32, freeInodes u32, volumeID [16]byte,
//	             allocation bitmap, ceil(numBlocks / 8) bytes
//	inodes       inodeTableSize records of 180 bytes each
//	directory    capacity u32, count u32, then for each entry
//	             inode i32, nameLength u16, name
//
// Geometry beyond [shadowfs.MaxBlocks], [shadowfs.MaxInodes] or
// [shadowfs.MaxFiles] is rejected with [ErrCorrupt] before anything is
// allocated for it. There's no version header. Block references in inodes are trusted as-is on
// load, and the stored free block count is ignored in favor of recounting the
// bitmap.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dargueta/shadowfs"
	"github.com/dargueta/shadowfs/common"
	"github.com/dargueta/shadowfs/directory"
	"github.com/dargueta/shadowfs/inode"
	"github.com/dargueta/shadowfs/superblock"
	"github.com/google/uuid"
	"github.com/noxer/bytewriter"
)

var ErrNoCheckpoint = shadowfs.ErrNotFound.WithMessage("No checkpoint")
var ErrCorrupt = shadowfs.ErrInvalidArgument.WithMessage("Corrupt checkpoint")

// State is everything a checkpoint holds.
type State struct {
	Superblock *superblock.Superblock
	Inodes     *inode.Table
	Directory  *directory.Table
}

// Size gives the exact number of bytes [Save] writes for `state`.
func Size(state State) int {
	size := rawSuperblockSize +
		bitmapSize(state.Superblock.NumBlocks()) +
		state.Inodes.Len()*rawInodeSize +
		rawDirectoryHeaderSize

	for _, entry := range state.Directory.Entries() {
		size += rawEntryHeaderSize + len(entry.Name)
	}
	return size
}

// Save writes a checkpoint of `state` to `w` in a single call.
func Save(w io.Writer, state State) error {
	sb := state.Superblock
	buffer := make([]byte, Size(state))
	writer := bytewriter.New(buffer)

	header := rawSuperblock{
		BlockSize:      uint32(sb.BlockSize),
		NumBlocks:      uint32(sb.NumBlocks()),
		FreeBlocks:     uint32(sb.FreeBlocks()),
		InodeTableSize: uint32(state.Inodes.Len()),
		FreeInodes:     uint32(sb.FreeInodes),
		VolumeID:       sb.VolumeID,
	}
	err := binary.Write(writer, byteOrder, &header)
	if err != nil {
		return fmt.Errorf("failed to write superblock: %w", err)
	}

	bitmap := sb.Bitmap()
	_, err = writer.Write(bitmap[:bitmapSize(sb.NumBlocks())])
	if err != nil {
		return fmt.Errorf("failed to write allocation bitmap: %w", err)
	}

	slots := state.Inodes.Slots()
	for i := range slots {
		raw := toRawInode(&slots[i])
		err = binary.Write(writer, byteOrder, &raw)
		if err != nil {
			return fmt.Errorf("failed to write inode %d: %w", i, err)
		}
	}

	entries := state.Directory.Entries()
	err = binary.Write(
		writer,
		byteOrder,
		rawDirectoryHeader{
			Capacity: uint32(state.Directory.Cap()),
			Count:    uint32(len(entries)),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to write directory header: %w", err)
	}

	for _, entry := range entries {
		err = binary.Write(
			writer,
			byteOrder,
			rawDirectoryEntryHeader{
				Inode:      int32(entry.Inode),
				NameLength: uint16(len(entry.Name)),
			},
		)
		if err == nil {
			_, err = writer.Write([]byte(entry.Name))
		}
		if err != nil {
			return fmt.Errorf("failed to write directory entry %q: %w", entry.Name, err)
		}
	}

	_, err = w.Write(buffer)
	if err != nil {
		return shadowfs.ErrIOFailed.Wrap(err)
	}
	return nil
}

// Load reads a checkpoint written by [Save]. A stream that ends right after the
// inode table is accepted; the directory comes back empty with one slot per
// inode.
func Load(r io.Reader) (State, error) {
	var header rawSuperblock
	err := binary.Read(r, byteOrder, &header)
	if err != nil {
		return State{}, ErrCorrupt.Wrap(fmt.Errorf("superblock: %w", err))
	}
	if header.BlockSize == 0 || header.NumBlocks == 0 || header.InodeTableSize == 0 {
		return State{}, ErrCorrupt.WithMessage(
			fmt.Sprintf(
				"block size, block count and inode table size must be non-zero, got %d, %d, %d",
				header.BlockSize,
				header.NumBlocks,
				header.InodeTableSize,
			),
		)
	}
	if header.NumBlocks > shadowfs.MaxBlocks || header.InodeTableSize > shadowfs.MaxInodes {
		return State{}, ErrCorrupt.WithMessage(
			fmt.Sprintf(
				"%d blocks and %d inodes exceed the limits of %d and %d",
				header.NumBlocks,
				header.InodeTableSize,
				shadowfs.MaxBlocks,
				shadowfs.MaxInodes,
			),
		)
	}

	bitmap := make([]byte, bitmapSize(uint(header.NumBlocks)))
	_, err = io.ReadFull(r, bitmap)
	if err != nil {
		return State{}, ErrCorrupt.Wrap(fmt.Errorf("allocation bitmap: %w", err))
	}

	sb := superblock.Restore(
		uuid.UUID(header.VolumeID),
		uint(header.BlockSize),
		uint(header.NumBlocks),
		uint(header.InodeTableSize),
		uint(header.FreeInodes),
		bitmap,
	)

	// Slots are appended as they're read so a truncated stream fails before
	// the whole table is allocated.
	var slots []inode.Inode
	for i := uint32(0); i < header.InodeTableSize; i++ {
		var raw rawInode
		err = binary.Read(r, byteOrder, &raw)
		if err != nil {
			return State{}, ErrCorrupt.Wrap(fmt.Errorf("inode %d: %w", i, err))
		}
		if raw.ACLCount > inode.MaxACLEntries {
			return State{}, ErrCorrupt.WithMessage(
				fmt.Sprintf("inode %d has %d ACL entries", i, raw.ACLCount),
			)
		}
		slots = append(slots, raw.toInode())
	}

	dir, err := loadDirectory(r, uint(header.InodeTableSize))
	if err != nil {
		return State{}, err
	}

	return State{
		Superblock: sb,
		Inodes:     inode.RestoreTable(sb, slots),
		Directory:  dir,
	}, nil
}

func loadDirectory(r io.Reader, defaultCapacity uint) (*directory.Table, error) {
	var header rawDirectoryHeader
	err := binary.Read(r, byteOrder, &header)
	if err == io.EOF {
		return directory.NewTable(defaultCapacity), nil
	}
	if err != nil {
		return nil, ErrCorrupt.Wrap(fmt.Errorf("directory header: %w", err))
	}
	if header.Capacity > shadowfs.MaxFiles {
		return nil, ErrCorrupt.WithMessage(
			fmt.Sprintf("directory capacity %d exceeds %d", header.Capacity, shadowfs.MaxFiles),
		)
	}
	if header.Count > header.Capacity {
		return nil, ErrCorrupt.WithMessage(
			fmt.Sprintf("directory has %d entries but room for %d", header.Count, header.Capacity),
		)
	}

	var entries []directory.Entry
	for i := uint32(0); i < header.Count; i++ {
		var entryHeader rawDirectoryEntryHeader
		err = binary.Read(r, byteOrder, &entryHeader)
		if err != nil {
			return nil, ErrCorrupt.Wrap(fmt.Errorf("directory entry %d: %w", i, err))
		}
		if entryHeader.NameLength > directory.MaxNameLength {
			return nil, ErrCorrupt.WithMessage(
				fmt.Sprintf("directory entry %d has a %d-byte name", i, entryHeader.NameLength),
			)
		}

		name := make([]byte, entryHeader.NameLength)
		_, err = io.ReadFull(r, name)
		if err != nil {
			return nil, ErrCorrupt.Wrap(fmt.Errorf("name of directory entry %d: %w", i, err))
		}
		entries = append(
			entries,
			directory.Entry{Name: string(name), Inode: common.Inumber(entryHeader.Inode)},
		)
	}
	return directory.RestoreTable(uint(header.Capacity), entries), nil
}

// SaveFile writes a checkpoint to `path`. The previous checkpoint is only
// replaced once the new one has been completely written.
func SaveFile(path string, state State) error {
	tempFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return shadowfs.ErrIOFailed.Wrap(err)
	}
	tempPath := tempFile.Name()

	err = Save(tempFile, state)
	if closeErr := tempFile.Close(); err == nil && closeErr != nil {
		err = shadowfs.ErrIOFailed.Wrap(closeErr)
	}
	if err == nil {
		if renameErr := os.Rename(tempPath, path); renameErr != nil {
			err = shadowfs.ErrIOFailed.Wrap(renameErr)
		}
	}
	if err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}

// LoadFile reads the checkpoint at `path`. If there isn't one, it returns
// [ErrNoCheckpoint] and the caller should start from an empty volume.
func LoadFile(path string) (State, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, ErrNoCheckpoint.WithMessage(path)
	}
	if err != nil {
		return State{}, shadowfs.ErrIOFailed.Wrap(err)
	}
	defer file.Close()

	return Load(file)
}
