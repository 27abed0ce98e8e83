// Package permissions evaluates and mutates an inode's access rights.
//
// Effective permissions for a requester are computed in two steps. First,
// exactly one 3-bit group is taken from the mode: the owner bits if the
// requester is the inode's owner, else the group bits if the requester's ID
// equals the inode's group ID, else the "other" bits. Second, the first ACL
// entry naming the requester (if any) is OR'd in. ACL entries can only grant
// rights, never revoke them.
package permissions

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dargueta/shadowfs"
	"github.com/dargueta/shadowfs/inode"
)

// BaseBits returns the owner, group, or other permission triplet that applies
// to `userID`.
func BaseBits(in *inode.Inode, userID int32) uint32 {
	switch userID {
	case in.OwnerID:
		return (in.Mode >> 6) & shadowfs.PermMask
	case in.GroupID:
		return (in.Mode >> 3) & shadowfs.PermMask
	default:
		return in.Mode & shadowfs.PermMask
	}
}

// ACLBits returns the bits granted by the first ACL entry for `userID`, or 0
// if there is none.
func ACLBits(in *inode.Inode, userID int32) uint32 {
	index := findACLEntry(in, userID)
	if index < 0 {
		return 0
	}
	return in.ACL[index].Permissions
}

func Effective(in *inode.Inode, userID int32) uint32 {
	return BaseBits(in, userID) | ACLBits(in, userID)
}

// HasPermission is true if every bit in `requested` is granted to `userID`.
func HasPermission(in *inode.Inode, userID int32, requested uint32) bool {
	return Effective(in, userID)&requested == requested
}

// ValidateMode rejects modes with bits set outside the nine permission bits.
func ValidateMode(mode uint32) error {
	if mode&^shadowfs.ModeMask != 0 {
		return shadowfs.ErrInvalidPermissions.WithMessage(
			fmt.Sprintf("mode %#o has bits outside %#o", mode, shadowfs.ModeMask),
		)
	}
	return nil
}

// SetMode replaces the inode's mode. Invalid modes are rejected and the mode is
// left unchanged.
func SetMode(in *inode.Inode, mode uint32, now time.Time) error {
	if err := ValidateMode(mode); err != nil {
		return err
	}
	in.Mode = mode
	in.Ctime = now.Unix()
	return nil
}

// AddACL appends an entry to the inode's ACL. Existing entries for the same
// user aren't merged; only the first one is ever consulted.
func AddACL(in *inode.Inode, userID int32, bits uint32) error {
	if in.ACLCount >= inode.MaxACLEntries {
		return shadowfs.ErrTooManyACLEntries.WithMessage(
			fmt.Sprintf("inode already has %d entries", in.ACLCount),
		)
	}
	if bits&^shadowfs.PermMask != 0 {
		return shadowfs.ErrInvalidPermissions.WithMessage(
			fmt.Sprintf("ACL bits %#o have bits outside %#o", bits, shadowfs.PermMask),
		)
	}

	in.ACL[in.ACLCount] = inode.ACLEntry{UserID: userID, Permissions: bits}
	in.ACLCount++
	return nil
}

// RemoveACL deletes the first entry for `userID`, shifting later entries down
// one position.
func RemoveACL(in *inode.Inode, userID int32) error {
	index := findACLEntry(in, userID)
	if index < 0 {
		return shadowfs.ErrACLEntryNotFound.WithMessage(
			fmt.Sprintf("no entry for user %d", userID),
		)
	}

	copy(in.ACL[index:in.ACLCount], in.ACL[index+1:in.ACLCount])
	in.ACLCount--
	in.ACL[in.ACLCount] = inode.ACLEntry{}
	return nil
}

func findACLEntry(in *inode.Inode, userID int32) int {
	for i := 0; i < in.ACLCount; i++ {
		if in.ACL[i].UserID == userID {
			return i
		}
	}
	return -1
}

// ParseMode converts octal text such as "640" or "0751" to a mode. The result
// is validated the same way as [SetMode].
func ParseMode(text string) (uint32, error) {
	value, err := strconv.ParseUint(strings.TrimPrefix(text, "0o"), 8, 32)
	if err != nil {
		return 0, shadowfs.ErrInvalidPermissions.Wrap(err)
	}
	if err := ValidateMode(uint32(value)); err != nil {
		return 0, err
	}
	return uint32(value), nil
}

// FormatMode renders a mode the way `ls -l` does, e.g. "drwxr-x---".
func FormatMode(isDirectory bool, mode uint32) string {
	var builder strings.Builder
	if isDirectory {
		builder.WriteByte('d')
	} else {
		builder.WriteByte('-')
	}

	for shift := 6; shift >= 0; shift -= 3 {
		bits := (mode >> uint(shift)) & shadowfs.PermMask
		builder.WriteByte(flagChar(bits, shadowfs.PermRead, 'r'))
		builder.WriteByte(flagChar(bits, shadowfs.PermWrite, 'w'))
		builder.WriteByte(flagChar(bits, shadowfs.PermExecute, 'x'))
	}
	return builder.String()
}

func flagChar(bits, flag uint32, set byte) byte {
	if bits&flag != 0 {
		return set
	}
	return '-'
}

// ParseBits converts a triplet such as "rw", "r-x", or a single octal digit
// like "5" to permission bits.
func ParseBits(text string) (uint32, error) {
	if len(text) == 1 && text[0] >= '0' && text[0] <= '7' {
		return uint32(text[0] - '0'), nil
	}
	if text == "" {
		return 0, shadowfs.ErrInvalidPermissions.WithMessage("empty permission string")
	}

	var bits uint32
	for _, c := range text {
		switch c {
		case 'r':
			bits |= shadowfs.PermRead
		case 'w':
			bits |= shadowfs.PermWrite
		case 'x':
			bits |= shadowfs.PermExecute
		case '-':
		default:
			return 0, shadowfs.ErrInvalidPermissions.WithMessage(
				fmt.Sprintf("bad permission character %q in %q", c, text),
			)
		}
	}
	return bits, nil
}
