package main

import (
	"errors"
	"fmt"

	"github.com/dargueta/shadowfs"
	"github.com/dargueta/shadowfs/snapshot"
	"golang.org/x/sys/unix"
)

// Actions return plain errors, never a cli.ExitCoder. urfave/cli exits the
// process on an ExitCoder before the After hook saves the volume, so exit codes are
// decided here instead.
var (
	errUsage  = errors.New("invalid usage")
	errDenied = errors.New("access denied")
)

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// errnoMapping pairs an error with the errno the process exits with when a
// command fails with it. More specific errors come before their base class.
var errnoMapping = []struct {
	err   error
	errno unix.Errno
}{
	{snapshot.ErrCorrupt, unix.EUCLEAN},
	{shadowfs.ErrFileTooLarge, unix.EFBIG},
	{shadowfs.ErrCapacity, unix.ENOSPC},
	{shadowfs.ErrNotFound, unix.ENOENT},
	{shadowfs.ErrExists, unix.EEXIST},
	{shadowfs.ErrInvalidArgument, unix.EINVAL},
	{shadowfs.ErrIOFailed, unix.EIO},
}

// exitCode gives the errno for `err`. Usage errors exit with 2, and anything
// else outside the taxonomy with 1.
func exitCode(err error) int {
	switch {
	case errors.Is(err, errUsage):
		return 2
	case errors.Is(err, errDenied):
		return 1
	}
	for _, mapping := range errnoMapping {
		if errors.Is(err, mapping.err) {
			return int(mapping.errno)
		}
	}
	return 1
}
