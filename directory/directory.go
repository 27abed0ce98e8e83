// Package directory implements the volume's single flat directory: an ordered,
// bounded table mapping file names to inode numbers.
package directory

import (
	"fmt"
	"strings"

	"github.com/dargueta/shadowfs"
	"github.com/dargueta/shadowfs/common"
)

// MaxNameLength is the longest file name, in bytes, the table accepts.
const MaxNameLength = 255

type Entry struct {
	Name  string
	Inode common.Inumber
}

type Table struct {
	capacity uint
	entries  []Entry
}

func NewTable(capacity uint) *Table {
	return &Table{capacity: capacity}
}

// RestoreTable rebuilds a table from checkpointed entries. Entries past
// `capacity` are dropped, as are entries with names that wouldn't pass
// [ValidateName]. If a name appears more than once, only the first is kept.
func RestoreTable(capacity uint, entries []Entry) *Table {
	table := NewTable(capacity)
	for _, entry := range entries {
		if uint(len(table.entries)) >= capacity {
			break
		}
		if ValidateName(entry.Name) != nil || table.indexOf(entry.Name) >= 0 {
			continue
		}
		table.entries = append(table.entries, entry)
	}
	return table
}

// ValidateName checks that `name` can be stored in a table.
func ValidateName(name string) error {
	switch {
	case name == "":
		return shadowfs.ErrInvalidName.WithMessage("name is empty")
	case len(name) > MaxNameLength:
		return shadowfs.ErrInvalidName.WithMessage(
			fmt.Sprintf("name is %d bytes, max is %d", len(name), MaxNameLength),
		)
	case strings.ContainsRune(name, '/'):
		return shadowfs.ErrInvalidName.WithMessage(
			fmt.Sprintf("%q contains a path separator", name),
		)
	case strings.ContainsRune(name, 0):
		return shadowfs.ErrInvalidName.WithMessage(
			fmt.Sprintf("%q contains a null byte", name),
		)
	case name == "." || name == "..":
		return shadowfs.ErrInvalidName.WithMessage(
			fmt.Sprintf("%q is reserved", name),
		)
	}
	return nil
}

func (t *Table) Len() int {
	return len(t.entries)
}

func (t *Table) Cap() uint {
	return t.capacity
}

// Entries returns a copy of the table in insertion order.
func (t *Table) Entries() []Entry {
	entries := make([]Entry, len(t.entries))
	copy(entries, t.entries)
	return entries
}

// Insert appends a new entry. Nothing is modified if it fails.
func (t *Table) Insert(name string, ino common.Inumber) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if t.indexOf(name) >= 0 {
		return shadowfs.ErrExists.WithMessage(name)
	}
	if uint(len(t.entries)) >= t.capacity {
		return shadowfs.ErrDirectoryFull.WithMessage(
			fmt.Sprintf("can't add %q, table holds %d entries", name, t.capacity),
		)
	}

	t.entries = append(t.entries, Entry{Name: name, Inode: ino})
	return nil
}

// Find returns the inode number linked to `name`.
func (t *Table) Find(name string) (common.Inumber, error) {
	index := t.indexOf(name)
	if index < 0 {
		return common.InvalidInumber, shadowfs.ErrNotFound.WithMessage(name)
	}
	return t.entries[index].Inode, nil
}

func (t *Table) Contains(name string) bool {
	return t.indexOf(name) >= 0
}

// Remove unlinks `name` and returns the inode it pointed to. The relative
// order of the remaining entries is preserved.
func (t *Table) Remove(name string) (common.Inumber, error) {
	index := t.indexOf(name)
	if index < 0 {
		return common.InvalidInumber, shadowfs.ErrNotFound.WithMessage(name)
	}

	ino := t.entries[index].Inode
	t.entries = append(t.entries[:index], t.entries[index+1:]...)
	return ino, nil
}

// Rename changes the name of an entry in place.
func (t *Table) Rename(oldName, newName string) error {
	index := t.indexOf(oldName)
	if index < 0 {
		return shadowfs.ErrNotFound.WithMessage(oldName)
	}
	if err := ValidateName(newName); err != nil {
		return err
	}
	if t.indexOf(newName) >= 0 {
		return shadowfs.ErrExists.WithMessage(newName)
	}

	t.entries[index].Name = newName
	return nil
}

func (t *Table) indexOf(name string) int {
	for i, entry := range t.entries {
		if entry.Name == name {
			return i
		}
	}
	return -1
}
