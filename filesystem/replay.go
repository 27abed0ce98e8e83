package filesystem

import "github.com/dargueta/shadowfs/journal"

// The Replay* methods apply journaled operations without journaling them
// again. They make FileSystem a [journal.Replayer].

var _ journal.Replayer = (*FileSystem)(nil)

// ReplayCreate fails with a conflict if the name already exists, leaving the
// existing object untouched.
func (fsys *FileSystem) ReplayCreate(name string, isDirectory bool) error {
	if err := fsys.checkCreate(name); err != nil {
		return err
	}
	return fsys.applyCreate(name, isDirectory)
}

func (fsys *FileSystem) ReplayDelete(name string) error {
	return fsys.applyDelete(name)
}

func (fsys *FileSystem) ReplayModify(name string, content []byte) error {
	return fsys.applyModify(name, content)
}

func (fsys *FileSystem) ReplayRename(oldName, newName string) error {
	return fsys.applyRename(oldName, newName)
}

func (fsys *FileSystem) ReplayChmod(name string, mode uint32) error {
	return fsys.applyChmod(name, mode)
}
