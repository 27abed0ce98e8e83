package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dargueta/shadowfs"
	"github.com/dargueta/shadowfs/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"golang.org/x/sys/unix"
)

// run executes one command against a volume kept in `dir`, the way separate
// invocations of the binary would.
func run(t *testing.T, dir, stdin string, args ...string) (string, error) {
	app := newApp()
	var output bytes.Buffer
	app.Writer = &output
	app.ErrWriter = io.Discard
	app.Reader = strings.NewReader(stdin)

	argv := []string{
		"shadowfs",
		"--config", filepath.Join(dir, "shadowfs.yaml"),
		"--root", filepath.Join(dir, "root"),
		"--journal", filepath.Join(dir, "journal.log"),
		"--checkpoint", filepath.Join(dir, "state.dat"),
	}
	err := app.Run(append(argv, args...))
	return output.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	output, err := run(t, dir, "", args...)
	require.NoError(t, err, "shadowfs %s", strings.Join(args, " "))
	return output
}

func TestCommandsAcrossInvocations(t *testing.T) {
	dir := t.TempDir()

	output := mustRun(t, dir, "init")
	assert.Contains(t, output, "1024/1024 blocks free")

	mustRun(t, dir, "create", "a.txt")
	mustRun(t, dir, "write", "--data", "hello world", "a.txt")
	assert.Equal(t, "hello world", mustRun(t, dir, "cat", "a.txt"))

	assert.Equal(t, "a.txt_copy\n", mustRun(t, dir, "cp", "a.txt"))
	assert.Equal(t, "hello world", mustRun(t, dir, "cat", "a.txt_copy"))

	mustRun(t, dir, "chmod", "640", "a.txt")
	assert.Contains(t, mustRun(t, dir, "stat", "a.txt"), "-rw-r----- (640)")

	mustRun(t, dir, "mkdir", "docs")
	mustRun(t, dir, "mv", "a.txt", "b.txt")
	mustRun(t, dir, "rm", "docs")

	listing := mustRun(t, dir, "ls")
	assert.Contains(t, listing, "b.txt")
	assert.Contains(t, listing, "a.txt_copy")
	assert.NotContains(t, listing, "docs")

	filtered := mustRun(t, dir, "ls", "--filter", "copy")
	assert.Contains(t, filtered, "a.txt_copy")
	assert.NotContains(t, filtered, "b.txt")

	journalText := mustRun(t, dir, "journal")
	for _, op := range []string{"CREATE", "MODIFY", "READ", "CHANGE_PERMISSIONS", "RENAME", "DELETE"} {
		assert.Contains(t, journalText, op)
	}

	df := mustRun(t, dir, "df")
	assert.Contains(t, df, "blocks")
	assert.Contains(t, df, "4096-byte blocks")
}

func TestAccessAndACLCommands(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "create", "a.txt")
	mustRun(t, dir, "chmod", "640", "a.txt")

	assert.Equal(t, "granted\n", mustRun(t, dir, "access", "a.txt", "11", "rw"))

	output, err := run(t, dir, "", "access", "a.txt", "42", "r")
	assert.Equal(t, "denied\n", output)
	assert.ErrorIs(t, err, errDenied)
	assert.Equal(t, 1, exitCode(err))

	mustRun(t, dir, "acl", "add", "a.txt", "42", "r")
	assert.Equal(t, "granted\n", mustRun(t, dir, "access", "a.txt", "42", "r"))
	assert.Contains(t, mustRun(t, dir, "stat", "a.txt"), "user 42: r--")

	mustRun(t, dir, "acl", "rm", "a.txt", "42")
	_, err = run(t, dir, "", "access", "a.txt", "42", "r")
	assert.Error(t, err)

	_, err = run(t, dir, "", "acl", "rm", "a.txt", "42")
	assert.ErrorIs(t, err, shadowfs.ErrACLEntryNotFound)
}

func TestWriteFromStandardInput(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "create", "a.txt")

	_, err := run(t, dir, "piped content", "write", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "piped content", mustRun(t, dir, "cat", "a.txt"))
}

func TestReplayCommand(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "create", "a.txt")

	// Replaying onto the volume that produced the journal conflicts.
	output, err := run(t, dir, "", "replay")
	assert.ErrorIs(t, err, shadowfs.ErrExists)
	assert.Equal(t, "applied 0 journal entries\n", output)
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "create", "a.txt")

	_, err := run(t, dir, "", "create", "a.txt")
	assert.ErrorIs(t, err, shadowfs.ErrExists)
	assert.Equal(t, int(unix.EEXIST), exitCode(err))

	_, err = run(t, dir, "", "cat", "missing")
	assert.Equal(t, int(unix.ENOENT), exitCode(err))

	_, err = run(t, dir, "", "chmod", "999", "a.txt")
	assert.Equal(t, int(unix.EINVAL), exitCode(err))

	_, err = run(t, dir, "", "create")
	assert.ErrorIs(t, err, errUsage)
	assert.Equal(t, 2, exitCode(err))

	_, err = run(t, dir, "", "write", "--data", "x", "--from", "y", "a.txt")
	assert.ErrorIs(t, err, errUsage)

	_, err = run(t, dir, "", "access", "a.txt", "nobody", "r")
	assert.Equal(t, 2, exitCode(err))
}

// A failing command must still reach the After hook, which saves the volume.
func TestFailedCommandStillCheckpoints(t *testing.T) {
	dir := t.TempDir()
	checkpoint := filepath.Join(dir, "state.dat")
	mustRun(t, dir, "create", "a.txt")
	mustRun(t, dir, "chmod", "600", "a.txt")
	require.NoError(t, os.Remove(checkpoint))

	_, err := run(t, dir, "", "access", "a.txt", "42", "r")
	require.ErrorIs(t, err, errDenied)
	assert.FileExists(t, checkpoint)

	for _, argv := range [][]string{
		{"create"},
		{"access", "a.txt", "42", "r"},
		{"write", "--data", "x", "--from", "y", "a.txt"},
	} {
		_, err = run(t, dir, "", argv...)
		require.Error(t, err)
		var exitErr cli.ExitCoder
		assert.False(t, errors.As(err, &exitErr), "%v returned an ExitCoder", argv)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err      error
		expected unix.Errno
	}{
		{shadowfs.ErrNoFreeBlocks, unix.ENOSPC},
		{shadowfs.ErrDirectoryFull.WithMessage("128 entries"), unix.ENOSPC},
		{shadowfs.ErrFileTooLarge, unix.EFBIG},
		{shadowfs.ErrInodeNotFound, unix.ENOENT},
		{shadowfs.ErrExists.WithMessage("a.txt"), unix.EEXIST},
		{shadowfs.ErrInvalidName, unix.EINVAL},
		{shadowfs.ErrMalformedRecord, unix.EINVAL},
		{shadowfs.ErrIOFailed.Wrap(io.ErrUnexpectedEOF), unix.EIO},
		{snapshot.ErrCorrupt.Wrap(io.ErrUnexpectedEOF), unix.EUCLEAN},
		{fmt.Errorf("slot 3: %w", shadowfs.ErrNotFound), unix.ENOENT},
	}
	for _, test := range tests {
		assert.Equal(t, int(test.expected), exitCode(test.err), test.err.Error())
	}
	assert.Equal(t, 2, exitCode(usageError("bad user ID %q", "x")))
	assert.Equal(t, 1, exitCode(errDenied))
	assert.Equal(t, 1, exitCode(io.EOF))
}
