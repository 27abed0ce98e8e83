// Package hostfs stores file content on the host's real file system. Every
// object lives directly under a single root directory.
package hostfs

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dargueta/shadowfs"
	"github.com/dargueta/shadowfs/directory"
	"golang.org/x/sys/unix"
)

// Local implements [shadowfs.HostAdapter] on top of a host directory.
type Local struct {
	root   string
	logger *slog.Logger
}

// NewLocal creates the adapter, creating `root` if it doesn't exist yet.
func NewLocal(root string, logger *slog.Logger) (*Local, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, shadowfs.ErrIOFailed.Wrap(err)
	}
	return &Local{
		root:   root,
		logger: logger.With("component", "hostfs", "root", root),
	}, nil
}

func (l *Local) Root() string {
	return l.root
}

// resolve turns a name into a host path, refusing anything that would land
// outside the root.
func (l *Local) resolve(name string) (string, error) {
	if err := directory.ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(l.root, name), nil
}

func (l *Local) fail(message, name string, err error) error {
	l.logger.Error(message, "name", name, "error", err)
	if errors.Is(err, fs.ErrNotExist) {
		return shadowfs.ErrNotFound.Wrap(err)
	}
	if errors.Is(err, fs.ErrExist) {
		return shadowfs.ErrExists.Wrap(err)
	}
	return shadowfs.ErrIOFailed.Wrap(err)
}

func (l *Local) Exists(name string) bool {
	path, err := l.resolve(name)
	if err != nil {
		return false
	}
	_, err = os.Lstat(path)
	return err == nil
}

func (l *Local) Create(name string, isDir bool) error {
	path, err := l.resolve(name)
	if err != nil {
		return err
	}
	l.logger.Debug("creating", "name", name, "directory", isDir)

	if isDir {
		err = os.Mkdir(path, 0o755)
		if err != nil {
			return l.fail("failed to create directory", name, err)
		}
		return nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return l.fail("failed to create file", name, err)
	}
	if err = file.Close(); err != nil {
		return l.fail("failed to create file", name, err)
	}
	return nil
}

func (l *Local) Remove(name string) error {
	path, err := l.resolve(name)
	if err != nil {
		return err
	}
	l.logger.Debug("removing", "name", name)

	if err = os.Remove(path); err != nil {
		return l.fail("failed to remove", name, err)
	}
	return nil
}

// Rename fails with [shadowfs.ErrExists] rather than replacing an existing
// object.
func (l *Local) Rename(oldName, newName string) error {
	oldPath, err := l.resolve(oldName)
	if err != nil {
		return err
	}
	newPath, err := l.resolve(newName)
	if err != nil {
		return err
	}
	l.logger.Debug("renaming", "name", oldName, "new_name", newName)

	if _, err = os.Lstat(oldPath); err != nil {
		return l.fail("failed to rename", oldName, err)
	}
	if _, err = os.Lstat(newPath); err == nil {
		return shadowfs.ErrExists.WithMessage(newName)
	}
	if err = os.Rename(oldPath, newPath); err != nil {
		return l.fail("failed to rename", oldName, err)
	}
	return nil
}

func (l *Local) ReadAll(name string) ([]byte, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, l.fail("failed to read", name, err)
	}
	l.logger.Debug("read", "name", name, "size", len(data))
	return data, nil
}

// WriteAll replaces the file's contents and flushes them to stable storage
// before returning.
func (l *Local) WriteAll(name string, data []byte) error {
	path, err := l.resolve(name)
	if err != nil {
		return err
	}
	l.logger.Debug("writing", "name", name, "size", len(data))

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return l.fail("failed to open for writing", name, err)
	}

	_, err = file.Write(data)
	if err == nil {
		err = unix.Fsync(int(file.Fd()))
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return l.fail("failed to write", name, err)
	}
	return nil
}

func (l *Local) Stat(name string) (shadowfs.HostStat, error) {
	path, err := l.resolve(name)
	if err != nil {
		return shadowfs.HostStat{}, err
	}

	info, err := os.Lstat(path)
	if err != nil {
		return shadowfs.HostStat{}, l.fail("failed to stat", name, err)
	}

	atime, ctime := accessAndChangeTimes(info)
	return shadowfs.HostStat{
		Size:  info.Size(),
		Mode:  info.Mode(),
		IsDir: info.IsDir(),
		Atime: atime,
		Ctime: ctime,
		Mtime: info.ModTime(),
	}, nil
}

func (l *Local) List() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, l.fail("failed to list", ".", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}
