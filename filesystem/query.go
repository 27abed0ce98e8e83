package filesystem

import (
	"sort"
	"strings"

	"github.com/dargueta/shadowfs"
	"github.com/dargueta/shadowfs/common"
	"github.com/dargueta/shadowfs/inode"
	"github.com/dargueta/shadowfs/permissions"
)

// List returns every object on the host whose name contains `filter`, sorted
// by name. An empty filter matches everything.
func (fsys *FileSystem) List(filter string) ([]shadowfs.ListingEntry, error) {
	names, err := fsys.host.List()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	entries := make([]shadowfs.ListingEntry, 0, len(names))
	for _, name := range names {
		if !strings.Contains(name, filter) {
			continue
		}
		stat, err := fsys.host.Stat(name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, shadowfs.ListingEntry{
			Name:  name,
			IsDir: stat.IsDir,
			Size:  stat.Size,
			Atime: stat.Atime,
			Ctime: stat.Ctime,
			Mtime: stat.Mtime,
		})
	}
	return entries, nil
}

// FileDetails combines what the core tracks about a file with what the host
// reports.
type FileDetails struct {
	shadowfs.ListingEntry
	Inode common.Inumber
	// ModeString is the ls-style rendering of the mode, e.g. "-rwxr-x---".
	ModeString string
	Mode       uint32
	OwnerID    int32
	GroupID    int32
	Blocks     []common.BlockID
	IndexBlock common.BlockID
	ACL        []inode.ACLEntry
}

func (fsys *FileSystem) Details(name string) (FileDetails, error) {
	ino, err := fsys.dir.Find(name)
	if err != nil {
		return FileDetails{}, err
	}
	in, err := fsys.inodes.Get(ino)
	if err != nil {
		return FileDetails{}, err
	}
	stat, err := fsys.host.Stat(name)
	if err != nil {
		return FileDetails{}, err
	}

	return FileDetails{
		ListingEntry: shadowfs.ListingEntry{
			Name:  name,
			IsDir: in.IsDirectory,
			Size:  stat.Size,
			Atime: stat.Atime,
			Ctime: stat.Ctime,
			Mtime: stat.Mtime,
		},
		Inode:      ino,
		ModeString: permissions.FormatMode(in.IsDirectory, in.Mode),
		Mode:       in.Mode,
		OwnerID:    in.OwnerID,
		GroupID:    in.GroupID,
		Blocks:     in.Blocks(),
		IndexBlock: in.IndexBlock,
		ACL:        in.ACLEntries(),
	}, nil
}

// HasPermission reports whether `userID` holds every bit in `requested` on the
// named file.
func (fsys *FileSystem) HasPermission(name string, userID int32, requested uint32) (bool, error) {
	ino, err := fsys.dir.Find(name)
	if err != nil {
		return false, err
	}
	in, err := fsys.inodes.Get(ino)
	if err != nil {
		return false, err
	}
	return permissions.HasPermission(in, userID, requested), nil
}
