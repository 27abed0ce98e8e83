package filesystem

import (
	"fmt"

	"github.com/dargueta/shadowfs"
	"github.com/dargueta/shadowfs/common"
	"github.com/dargueta/shadowfs/directory"
	"github.com/dargueta/shadowfs/journal"
	"github.com/dargueta/shadowfs/permissions"
)

// CopySuffix is appended to a file's name to get the name of its copy.
const CopySuffix = "_copy"

// journaled runs `apply` between an intent and its commit. If `apply` fails,
// the intent is discarded.
func (fsys *FileSystem) journaled(
	op journal.Op, primary, secondary string, payload []byte, apply func() error,
) error {
	slot, err := fsys.journal.Append(op, primary, secondary, payload)
	if err != nil {
		return err
	}

	if err = apply(); err != nil {
		if discardErr := fsys.journal.Discard(slot); discardErr != nil {
			fsys.logger.Error(
				"failed to discard journal intent",
				"slot", slot,
				"op", op.String(),
				"error", discardErr,
			)
		}
		return err
	}
	return fsys.journal.Commit(slot)
}

func (fsys *FileSystem) exists(name string) bool {
	return fsys.dir.Contains(name) || fsys.host.Exists(name)
}

func (fsys *FileSystem) checkCreate(name string) error {
	if err := directory.ValidateName(name); err != nil {
		return err
	}
	if fsys.exists(name) {
		return shadowfs.ErrExists.WithMessage(name)
	}
	return nil
}

// Create makes a new empty file with mode 0777.
func (fsys *FileSystem) Create(name string) error {
	if err := fsys.checkCreate(name); err != nil {
		return err
	}
	return fsys.journaled(journal.OpCreate, name, "", nil, func() error {
		return fsys.applyCreate(name, false)
	})
}

// Mkdir makes a new directory with mode 0755. Directories can't hold entries;
// they only reserve an inode and an index block.
func (fsys *FileSystem) Mkdir(name string) error {
	if err := fsys.checkCreate(name); err != nil {
		return err
	}
	return fsys.journaled(journal.OpCreate, name, journal.SecondaryDirectory, nil, func() error {
		return fsys.applyCreate(name, true)
	})
}

func (fsys *FileSystem) applyCreate(name string, isDir bool) error {
	now := fsys.Now()
	mode := uint32(shadowfs.DefaultFileMode)
	if isDir {
		mode = shadowfs.DefaultDirectoryMode
	}

	ino, err := fsys.inodes.Create(isDir, mode, fsys.userID, fsys.groupID, now)
	if err != nil {
		return err
	}
	undo := func() {
		if releaseErr := fsys.inodes.Release(ino, now); releaseErr != nil {
			fsys.logger.Error("failed to release inode", "inode", ino, "error", releaseErr)
		}
	}

	if isDir {
		if err = fsys.inodes.AttachIndexBlock(ino); err != nil {
			undo()
			return err
		}
	}
	if err = fsys.dir.Insert(name, ino); err != nil {
		undo()
		return err
	}
	if err = fsys.host.Create(name, isDir); err != nil {
		fsys.dir.Remove(name)
		undo()
		return err
	}

	if err = fsys.inodes.Activate(ino); err != nil {
		return err
	}
	fsys.logger.Info("created", "name", name, "inode", ino, "directory", isDir)
	return nil
}

// Delete removes a file or an empty directory, releasing its inode and
// blocks. Objects that only exist on the host are removed from the host.
func (fsys *FileSystem) Delete(name string) error {
	if !fsys.exists(name) {
		return shadowfs.ErrNotFound.WithMessage(name)
	}
	return fsys.journaled(journal.OpDelete, name, "", nil, func() error {
		return fsys.applyDelete(name)
	})
}

func (fsys *FileSystem) applyDelete(name string) error {
	ino, findErr := fsys.dir.Find(name)
	onHost := fsys.host.Exists(name)
	if findErr != nil && !onHost {
		return shadowfs.ErrNotFound.WithMessage(name)
	}

	if onHost {
		if err := fsys.host.Remove(name); err != nil {
			return err
		}
	}
	if findErr == nil {
		fsys.dir.Remove(name)
		if err := fsys.inodes.Release(ino, fsys.Now()); err != nil {
			return err
		}
	}

	fsys.logger.Info("deleted", "name", name, "inode", ino)
	return nil
}

// Rename changes a file's name. The new name must not be in use.
func (fsys *FileSystem) Rename(oldName, newName string) error {
	if err := fsys.checkRename(oldName, newName); err != nil {
		return err
	}
	return fsys.journaled(journal.OpRename, oldName, newName, nil, func() error {
		return fsys.applyRename(oldName, newName)
	})
}

func (fsys *FileSystem) checkRename(oldName, newName string) error {
	if !fsys.exists(oldName) {
		return shadowfs.ErrNotFound.WithMessage(oldName)
	}
	if err := directory.ValidateName(newName); err != nil {
		return err
	}
	if fsys.exists(newName) {
		return shadowfs.ErrExists.WithMessage(newName)
	}
	return nil
}

func (fsys *FileSystem) applyRename(oldName, newName string) error {
	if err := fsys.checkRename(oldName, newName); err != nil {
		return err
	}

	onHost := fsys.host.Exists(oldName)
	if onHost {
		if err := fsys.host.Rename(oldName, newName); err != nil {
			return err
		}
	}
	if fsys.dir.Contains(oldName) {
		if err := fsys.dir.Rename(oldName, newName); err != nil {
			if onHost {
				fsys.host.Rename(newName, oldName)
			}
			return err
		}
	}

	fsys.logger.Info("renamed", "name", oldName, "new_name", newName)
	return nil
}

// Chmod replaces a file's permission bits.
func (fsys *FileSystem) Chmod(name string, mode uint32) error {
	if _, err := fsys.dir.Find(name); err != nil {
		return err
	}
	if err := permissions.ValidateMode(mode); err != nil {
		return err
	}

	modeText := fmt.Sprintf("%03o", mode)
	return fsys.journaled(journal.OpChangePermissions, name, modeText, nil, func() error {
		return fsys.applyChmod(name, mode)
	})
}

func (fsys *FileSystem) applyChmod(name string, mode uint32) error {
	ino, err := fsys.dir.Find(name)
	if err != nil {
		return err
	}
	in, err := fsys.inodes.Get(ino)
	if err != nil {
		return err
	}
	if err = permissions.SetMode(in, mode, fsys.Now()); err != nil {
		return err
	}

	fsys.logger.Info("changed permissions", "name", name, "mode", fmt.Sprintf("%03o", mode))
	return nil
}

// WriteFile replaces a file's contents, growing or shrinking its block list to
// fit.
func (fsys *FileSystem) WriteFile(name string, content []byte) error {
	if _, err := fsys.regularFile(name); err != nil {
		return err
	}
	if int64(len(content)) > fsys.inodes.MaxFileSize() {
		return shadowfs.ErrFileTooLarge.WithMessage(
			fmt.Sprintf("%d bytes, max is %d", len(content), fsys.inodes.MaxFileSize()),
		)
	}
	return fsys.journaled(journal.OpModify, name, "", content, func() error {
		return fsys.applyModify(name, content)
	})
}

// regularFile finds the inode for `name`, failing if it's a directory.
func (fsys *FileSystem) regularFile(name string) (common.Inumber, error) {
	ino, err := fsys.dir.Find(name)
	if err != nil {
		return ino, err
	}
	in, err := fsys.inodes.Get(ino)
	if err != nil {
		return ino, err
	}
	if in.IsDirectory {
		return ino, shadowfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("%q is a directory", name),
		)
	}
	return ino, nil
}

func (fsys *FileSystem) applyModify(name string, content []byte) error {
	ino, err := fsys.regularFile(name)
	if err != nil {
		return err
	}
	in, err := fsys.inodes.Get(ino)
	if err != nil {
		return err
	}

	oldSize := in.Size
	oldMtime, oldCtime := in.Mtime, in.Ctime
	if err = fsys.inodes.Resize(ino, int64(len(content)), fsys.Now()); err != nil {
		return err
	}

	if err = fsys.host.WriteAll(name, content); err != nil {
		if resizeErr := fsys.inodes.Resize(ino, oldSize, fsys.Now()); resizeErr != nil {
			fsys.logger.Error("failed to restore size", "name", name, "error", resizeErr)
		}
		in.Mtime, in.Ctime = oldMtime, oldCtime
		return err
	}

	fsys.logger.Info("modified", "name", name, "size", len(content), "blocks", len(in.Blocks()))
	return nil
}

// ReadFile returns a file's contents and updates its access time.
func (fsys *FileSystem) ReadFile(name string) ([]byte, error) {
	ino, err := fsys.regularFile(name)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = fsys.journaled(journal.OpRead, name, "", nil, func() error {
		var readErr error
		data, readErr = fsys.host.ReadAll(name)
		if readErr != nil {
			return readErr
		}
		return fsys.inodes.Touch(ino, fsys.Now())
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Copy duplicates a file as `<name>_copy` and returns the new name.
func (fsys *FileSystem) Copy(name string) (string, error) {
	if _, err := fsys.regularFile(name); err != nil {
		return "", err
	}
	data, err := fsys.host.ReadAll(name)
	if err != nil {
		return "", err
	}

	copyName := name + CopySuffix
	if err = fsys.Create(copyName); err != nil {
		return "", err
	}
	if err = fsys.WriteFile(copyName, data); err != nil {
		if deleteErr := fsys.Delete(copyName); deleteErr != nil {
			fsys.logger.Error("failed to remove partial copy", "name", copyName, "error", deleteErr)
		}
		return "", err
	}
	return copyName, nil
}

// AddACL grants `bits` to `userID` on a file.
func (fsys *FileSystem) AddACL(name string, userID int32, bits uint32) error {
	ino, err := fsys.dir.Find(name)
	if err != nil {
		return err
	}
	in, err := fsys.inodes.Get(ino)
	if err != nil {
		return err
	}
	if err = permissions.AddACL(in, userID, bits); err != nil {
		return err
	}
	in.Ctime = fsys.Now().Unix()
	return nil
}

// RemoveACL deletes the first ACL entry for `userID` on a file.
func (fsys *FileSystem) RemoveACL(name string, userID int32) error {
	ino, err := fsys.dir.Find(name)
	if err != nil {
		return err
	}
	in, err := fsys.inodes.Get(ino)
	if err != nil {
		return err
	}
	if err = permissions.RemoveACL(in, userID); err != nil {
		return err
	}
	in.Ctime = fsys.Now().Unix()
	return nil
}
