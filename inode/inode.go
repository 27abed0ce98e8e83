package inode

import (
	"fmt"
	"time"

	"github.com/dargueta/shadowfs/common"
)

// NumDirectBlocks is the number of block references stored in the inode itself.
const NumDirectBlocks = 12

// MaxACLEntries is the capacity of an inode's ACL list.
const MaxACLEntries = 10

// Status tracks a slot's lifecycle explicitly, so that a live empty file can't
// be mistaken for an unused slot.
type Status uint8

const (
	// StatusFree slots may be handed out by [Table.Create].
	StatusFree Status = iota
	// StatusReserved slots have been created but not yet linked into the
	// directory table.
	StatusReserved
	// StatusLive slots back a directory entry.
	StatusLive
)

func (s Status) String() string {
	switch s {
	case StatusFree:
		return "free"
	case StatusReserved:
		return "reserved"
	case StatusLive:
		return "live"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// ACLEntry grants additional permission bits to a single user.
type ACLEntry struct {
	UserID      int32
	Permissions uint32
}

type Inode struct {
	Status       Status
	IsDirectory  bool
	Size         int64
	DirectBlocks [NumDirectBlocks]common.BlockID
	IndexBlock   common.BlockID
	Mode         uint32
	// Timestamps are in seconds since the Unix epoch.
	Atime   int64
	Mtime   int64
	Ctime   int64
	OwnerID int32
	GroupID int32
	// Only the first ACLCount entries of ACL are meaningful.
	ACL      [MaxACLEntries]ACLEntry
	ACLCount int
}

func emptyInode() Inode {
	in := Inode{IndexBlock: common.InvalidBlock}
	for i := range in.DirectBlocks {
		in.DirectBlocks[i] = common.InvalidBlock
	}
	return in
}

func (in *Inode) IsFree() bool {
	return in.Status == StatusFree
}

// ACLEntries returns a copy of the inode's ACL list in insertion order.
func (in *Inode) ACLEntries() []ACLEntry {
	entries := make([]ACLEntry, in.ACLCount)
	copy(entries, in.ACL[:in.ACLCount])
	return entries
}

// Blocks returns the direct blocks currently assigned to the inode.
func (in *Inode) Blocks() []common.BlockID {
	blocks := make([]common.BlockID, 0, NumDirectBlocks)
	for _, block := range in.DirectBlocks {
		if block != common.InvalidBlock {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

func (in *Inode) AccessTime() time.Time {
	return time.Unix(in.Atime, 0)
}

func (in *Inode) ModifiedTime() time.Time {
	return time.Unix(in.Mtime, 0)
}

func (in *Inode) ChangedTime() time.Time {
	return time.Unix(in.Ctime, 0)
}

func (in *Inode) String() string {
	return fmt.Sprintf(
		"%s dir=%t size=%d mode=%03o uid=%d gid=%d blocks=%v index=%d acl=%v",
		in.Status,
		in.IsDirectory,
		in.Size,
		in.Mode,
		in.OwnerID,
		in.GroupID,
		in.Blocks(),
		in.IndexBlock,
		in.ACLEntries(),
	)
}
