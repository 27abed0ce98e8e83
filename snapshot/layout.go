package snapshot

import (
	"encoding/binary"

	"github.com/dargueta/shadowfs/common"
	"github.com/dargueta/shadowfs/inode"
)

var byteOrder = binary.LittleEndian

type rawSuperblock struct {
	BlockSize      uint32
	NumBlocks      uint32
	FreeBlocks     uint32
	InodeTableSize uint32
	FreeInodes     uint32
	VolumeID       [16]byte
}

type rawACLEntry struct {
	UserID      int32
	Permissions uint32
}

// rawInode is the on-disk layout of an inode, 180 bytes.
type rawInode struct {
	Status       uint8
	IsDirectory  uint8
	ACLCount     uint16
	Size         int64
	DirectBlocks [inode.NumDirectBlocks]int32
	IndexBlock   int32
	Mode         uint32
	Atime        int64
	Mtime        int64
	Ctime        int64
	OwnerID      int32
	GroupID      int32
	ACL          [inode.MaxACLEntries]rawACLEntry
}

type rawDirectoryHeader struct {
	Capacity uint32
	Count    uint32
}

type rawDirectoryEntryHeader struct {
	Inode      int32
	NameLength uint16
}

var (
	rawSuperblockSize      = binary.Size(rawSuperblock{})
	rawInodeSize           = binary.Size(rawInode{})
	rawDirectoryHeaderSize = binary.Size(rawDirectoryHeader{})
	rawEntryHeaderSize     = binary.Size(rawDirectoryEntryHeader{})
)

// bitmapSize gives the number of bytes needed to hold one bit per block.
func bitmapSize(numBlocks uint) int {
	return int((numBlocks + 7) / 8)
}

func boolToByte(value bool) uint8 {
	if value {
		return 1
	}
	return 0
}

func toRawInode(in *inode.Inode) rawInode {
	raw := rawInode{
		Status:      uint8(in.Status),
		IsDirectory: boolToByte(in.IsDirectory),
		ACLCount:    uint16(in.ACLCount),
		Size:        in.Size,
		IndexBlock:  int32(in.IndexBlock),
		Mode:        in.Mode,
		Atime:       in.Atime,
		Mtime:       in.Mtime,
		Ctime:       in.Ctime,
		OwnerID:     in.OwnerID,
		GroupID:     in.GroupID,
	}
	for i, block := range in.DirectBlocks {
		raw.DirectBlocks[i] = int32(block)
	}
	for i, entry := range in.ACL {
		raw.ACL[i] = rawACLEntry{UserID: entry.UserID, Permissions: entry.Permissions}
	}
	return raw
}

func (raw *rawInode) toInode() inode.Inode {
	in := inode.Inode{
		Status:      inode.Status(raw.Status),
		IsDirectory: raw.IsDirectory != 0,
		Size:        raw.Size,
		IndexBlock:  common.BlockID(raw.IndexBlock),
		Mode:        raw.Mode,
		Atime:       raw.Atime,
		Mtime:       raw.Mtime,
		Ctime:       raw.Ctime,
		OwnerID:     raw.OwnerID,
		GroupID:     raw.GroupID,
		ACLCount:    int(raw.ACLCount),
	}
	for i, block := range raw.DirectBlocks {
		in.DirectBlocks[i] = common.BlockID(block)
	}
	for i, entry := range raw.ACL {
		in.ACL[i] = inode.ACLEntry{UserID: entry.UserID, Permissions: entry.Permissions}
	}
	return in
}
