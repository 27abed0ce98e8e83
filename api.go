package shadowfs

import (
	"os"
	"time"
)

// HostStat is the subset of the host's stat(2) information the core consumes.
type HostStat struct {
	Size  int64
	Mode  os.FileMode
	IsDir bool
	Atime time.Time
	Ctime time.Time
	Mtime time.Time
}

// HostAdapter is the real storage the core's metadata shadows. All paths are
// names relative to the adapter's root; the core never hands it anything with
// a directory separator in it.
//
// Implementations must wrap failures in [ErrIOFailed], except that an error
// matching [ErrNotFound] is returned when the object being operated on doesn't
// exist, and one matching [ErrExists] when Create or Rename would replace an
// existing object.
type HostAdapter interface {
	Exists(path string) bool
	// Create makes an empty regular file, or a directory if isDir is true.
	Create(path string, isDir bool) error
	Remove(path string) error
	Rename(oldPath, newPath string) error
	ReadAll(path string) ([]byte, error)
	// WriteAll replaces the contents of the file at `path`.
	WriteAll(path string, data []byte) error
	Stat(path string) (HostStat, error)
	// List returns the names of every object in the root, in no particular
	// order.
	List() ([]string, error)
}

// ListingEntry is a row of the data the presentation layer renders.
type ListingEntry struct {
	Name  string
	IsDir bool
	Size  int64
	Atime time.Time
	Ctime time.Time
	Mtime time.Time
}

// Kind returns "Directory" or "File".
func (e ListingEntry) Kind() string {
	if e.IsDir {
		return "Directory"
	}
	return "File"
}
