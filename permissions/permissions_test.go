package permissions_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/dargueta/shadowfs"
	"github.com/dargueta/shadowfs/inode"
	"github.com/dargueta/shadowfs/permissions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInode(mode uint32) *inode.Inode {
	return &inode.Inode{
		Status:  inode.StatusLive,
		Mode:    mode,
		OwnerID: 11,
		GroupID: 10,
	}
}

func TestBaseBitsPicksExactlyOneTriplet(t *testing.T) {
	in := newInode(0o751)

	assert.EqualValues(t, 0o7, permissions.BaseBits(in, 11), "owner")
	assert.EqualValues(t, 0o5, permissions.BaseBits(in, 10), "group")
	assert.EqualValues(t, 0o1, permissions.BaseBits(in, 99), "other")
}

func TestGroupWriteDenied(t *testing.T) {
	in := newInode(0o640)

	assert.True(t, permissions.HasPermission(in, 10, shadowfs.PermRead))
	assert.False(t, permissions.HasPermission(in, 10, shadowfs.PermWrite))
	assert.False(t, permissions.HasPermission(in, 10, shadowfs.PermRead|shadowfs.PermWrite))
	assert.True(t, permissions.HasPermission(in, 11, shadowfs.PermRead|shadowfs.PermWrite))
	assert.False(t, permissions.HasPermission(in, 99, shadowfs.PermRead))
}

func TestACLOnlyGrants(t *testing.T) {
	in := newInode(0o640)
	require.NoError(t, permissions.AddACL(in, 99, shadowfs.PermExecute))
	require.NoError(t, permissions.AddACL(in, 11, 0))

	assert.EqualValues(t, shadowfs.PermExecute, permissions.Effective(in, 99))
	assert.EqualValues(t, 0o6, permissions.Effective(in, 11), "empty ACL entry revoked owner bits")
}

func TestACLMonotonicity(t *testing.T) {
	for mode := uint32(0); mode <= shadowfs.ModeMask; mode += 0o13 {
		for _, user := range []int32{10, 11, 42} {
			in := newInode(mode)
			before := permissions.Effective(in, user)

			for bits := uint32(0); bits <= shadowfs.PermMask; bits++ {
				in := newInode(mode)
				require.NoError(t, permissions.AddACL(in, user, bits))
				after := permissions.Effective(in, user)
				assert.Equal(
					t,
					before,
					after&before,
					fmt.Sprintf("mode=%03o user=%d bits=%o", mode, user, bits),
				)
			}
		}
	}
}

func TestFirstACLEntryWins(t *testing.T) {
	in := newInode(0)
	require.NoError(t, permissions.AddACL(in, 5, shadowfs.PermRead))
	require.NoError(t, permissions.AddACL(in, 5, shadowfs.PermWrite))

	assert.EqualValues(t, shadowfs.PermRead, permissions.ACLBits(in, 5))
	assert.Equal(t, 2, in.ACLCount, "duplicate entries should be allowed")
}

func TestAddACLFull(t *testing.T) {
	in := newInode(0)
	for i := 0; i < inode.MaxACLEntries; i++ {
		require.NoError(t, permissions.AddACL(in, int32(i), shadowfs.PermRead))
	}

	err := permissions.AddACL(in, 100, shadowfs.PermRead)
	assert.ErrorIs(t, err, shadowfs.ErrTooManyACLEntries)
	assert.ErrorIs(t, err, shadowfs.ErrCapacity)
	assert.Equal(t, inode.MaxACLEntries, in.ACLCount)
}

func TestAddACLRejectsBadBits(t *testing.T) {
	in := newInode(0)
	err := permissions.AddACL(in, 1, 0o10)
	assert.ErrorIs(t, err, shadowfs.ErrInvalidPermissions)
	assert.Zero(t, in.ACLCount)
}

func TestRemoveACLCompactsInOrder(t *testing.T) {
	in := newInode(0)
	require.NoError(t, permissions.AddACL(in, 1, 1))
	require.NoError(t, permissions.AddACL(in, 2, 2))
	require.NoError(t, permissions.AddACL(in, 3, 4))
	require.NoError(t, permissions.AddACL(in, 2, 7))

	require.NoError(t, permissions.RemoveACL(in, 2))
	assert.Equal(
		t,
		[]inode.ACLEntry{{UserID: 1, Permissions: 1}, {UserID: 3, Permissions: 4}, {UserID: 2, Permissions: 7}},
		in.ACLEntries(),
	)
	assert.Equal(t, inode.ACLEntry{}, in.ACL[3], "vacated slot wasn't cleared")
}

func TestRemoveACLNotFound(t *testing.T) {
	in := newInode(0)
	require.NoError(t, permissions.AddACL(in, 1, 1))

	err := permissions.RemoveACL(in, 2)
	assert.ErrorIs(t, err, shadowfs.ErrACLEntryNotFound)
	assert.ErrorIs(t, err, shadowfs.ErrNotFound)
	assert.Equal(t, []inode.ACLEntry{{UserID: 1, Permissions: 1}}, in.ACLEntries())
}

func TestSetMode(t *testing.T) {
	in := newInode(0o751)
	in.Ctime = 5
	now := time.Unix(1700000000, 0)

	err := permissions.SetMode(in, 0o800, now)
	assert.ErrorIs(t, err, shadowfs.ErrInvalidPermissions)
	assert.EqualValues(t, 0o751, in.Mode)
	assert.EqualValues(t, 5, in.Ctime)

	require.NoError(t, permissions.SetMode(in, 0o640, now))
	assert.EqualValues(t, 0o640, in.Mode)
	assert.Equal(t, now.Unix(), in.Ctime)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		text    string
		want    uint32
		wantErr bool
	}{
		{"640", 0o640, false},
		{"0751", 0o751, false},
		{"0o777", 0o777, false},
		{"0", 0, false},
		{"800", 0, true},
		{"1777", 0, true},
		{"rwx", 0, true},
		{"", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			got, err := permissions.ParseMode(tc.text)
			if tc.wantErr {
				assert.ErrorIs(t, err, shadowfs.ErrInvalidPermissions)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatMode(t *testing.T) {
	assert.Equal(t, "drwxr-x---", permissions.FormatMode(true, 0o750))
	assert.Equal(t, "-rw-r--r--", permissions.FormatMode(false, 0o644))
	assert.Equal(t, "-rwxrwxrwx", permissions.FormatMode(false, 0o777))
	assert.Equal(t, "----------", permissions.FormatMode(false, 0))
}

func TestParseBits(t *testing.T) {
	tests := map[string]uint32{
		"r":   shadowfs.PermRead,
		"rw":  shadowfs.PermRead | shadowfs.PermWrite,
		"r-x": shadowfs.PermRead | shadowfs.PermExecute,
		"xwr": shadowfs.PermMask,
		"---": 0,
		"6":   shadowfs.PermRead | shadowfs.PermWrite,
		"0":   0,
	}
	for text, expected := range tests {
		bits, err := permissions.ParseBits(text)
		if assert.NoError(t, err, text) {
			assert.Equal(t, expected, bits, text)
		}
	}

	for _, text := range []string{"", "8", "rwz", "17"} {
		_, err := permissions.ParseBits(text)
		assert.ErrorIs(t, err, shadowfs.ErrInvalidPermissions, text)
	}
}
