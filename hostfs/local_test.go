package hostfs

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/dargueta/shadowfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) *Local {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	adapter, err := NewLocal(filepath.Join(t.TempDir(), "root"), logger)
	require.NoError(t, err)
	return adapter
}

func TestCreateFileAndDirectory(t *testing.T) {
	adapter := newTestAdapter(t)

	require.NoError(t, adapter.Create("a.txt", false))
	require.NoError(t, adapter.Create("docs", true))
	assert.True(t, adapter.Exists("a.txt"))
	assert.True(t, adapter.Exists("docs"))
	assert.False(t, adapter.Exists("missing"))

	stat, err := adapter.Stat("docs")
	require.NoError(t, err)
	assert.True(t, stat.IsDir)

	stat, err = adapter.Stat("a.txt")
	require.NoError(t, err)
	assert.False(t, stat.IsDir)
	assert.Zero(t, stat.Size)

	err = adapter.Create("a.txt", false)
	assert.ErrorIs(t, err, shadowfs.ErrExists)
}

func TestWriteAndReadAll(t *testing.T) {
	adapter := newTestAdapter(t)
	require.NoError(t, adapter.Create("a.txt", false))

	require.NoError(t, adapter.WriteAll("a.txt", []byte("a longer first version")))
	require.NoError(t, adapter.WriteAll("a.txt", []byte("short")))

	data, err := adapter.ReadAll("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "short", string(data))

	stat, err := adapter.Stat("a.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 5, stat.Size)
	assert.WithinDuration(t, time.Now(), stat.Mtime, time.Minute)
	assert.WithinDuration(t, time.Now(), stat.Ctime, time.Minute)
	assert.False(t, stat.Atime.IsZero())
}

func TestStatTimes(t *testing.T) {
	adapter := newTestAdapter(t)
	require.NoError(t, adapter.Create("a.txt", false))

	accessed := time.Unix(1700000000, 0)
	modified := time.Unix(1700000100, 0)
	require.NoError(t, os.Chtimes(filepath.Join(adapter.Root(), "a.txt"), accessed, modified))

	stat, err := adapter.Stat("a.txt")
	require.NoError(t, err)
	assert.True(t, modified.Equal(stat.Mtime), "mtime %s", stat.Mtime)
	if runtime.GOOS == "linux" {
		assert.True(t, accessed.Equal(stat.Atime), "atime %s", stat.Atime)
		assert.WithinDuration(t, time.Now(), stat.Ctime, time.Minute)
	}
}

func TestMissingObjects(t *testing.T) {
	adapter := newTestAdapter(t)

	_, err := adapter.ReadAll("nope")
	assert.ErrorIs(t, err, shadowfs.ErrNotFound)
	_, err = adapter.Stat("nope")
	assert.ErrorIs(t, err, shadowfs.ErrNotFound)
	assert.ErrorIs(t, adapter.Remove("nope"), shadowfs.ErrNotFound)
	assert.ErrorIs(t, adapter.Rename("nope", "other"), shadowfs.ErrNotFound)
	assert.ErrorIs(t, adapter.WriteAll("nope", []byte("x")), shadowfs.ErrNotFound)
	assert.False(t, adapter.Exists("nope"), "WriteAll created a missing file")
}

func TestRenameRefusesToOverwrite(t *testing.T) {
	adapter := newTestAdapter(t)
	require.NoError(t, adapter.Create("a", false))
	require.NoError(t, adapter.Create("b", false))
	require.NoError(t, adapter.WriteAll("b", []byte("keep me")))

	assert.ErrorIs(t, adapter.Rename("a", "b"), shadowfs.ErrExists)
	data, err := adapter.ReadAll("b")
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))

	require.NoError(t, adapter.Rename("a", "c"))
	assert.False(t, adapter.Exists("a"))
	assert.True(t, adapter.Exists("c"))
}

func TestRemoveAndList(t *testing.T) {
	adapter := newTestAdapter(t)
	for _, name := range []string{"x", "y", "z"} {
		require.NoError(t, adapter.Create(name, false))
	}
	require.NoError(t, adapter.Remove("y"))

	names, err := adapter.List()
	require.NoError(t, err)
	sort.Strings(names)
	assert.Equal(t, []string{"x", "z"}, names)
}

func TestRejectsNamesOutsideRoot(t *testing.T) {
	adapter := newTestAdapter(t)
	outside := filepath.Join(filepath.Dir(adapter.Root()), "outside")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	for _, name := range []string{"../outside", "..", "", "a/b"} {
		_, err := adapter.ReadAll(name)
		assert.ErrorIs(t, err, shadowfs.ErrInvalidName, "name %q", name)
		assert.ErrorIs(t, adapter.Create(name, false), shadowfs.ErrInvalidName, "name %q", name)
		assert.False(t, adapter.Exists(name), "name %q", name)
	}
}
