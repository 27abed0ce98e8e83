package shadowfs_test

import (
	"errors"
	"testing"

	"github.com/dargueta/shadowfs"
	"github.com/stretchr/testify/assert"
)

func TestShadowErrorWithMessage(t *testing.T) {
	newErr := shadowfs.ErrExists.WithMessage("a.txt")
	assert.Equal(t, "File exists", shadowfs.ErrExists.Error())
	assert.Equal(t, "a.txt", newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, shadowfs.ErrExists)
}

func TestSpecificErrorWithMessage(t *testing.T) {
	newErr := shadowfs.ErrNoFreeBlocks.WithMessage("asdfqwerty")
	assert.Equal(t, "No free blocks: asdfqwerty", newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, shadowfs.ErrNoFreeBlocks)
	assert.ErrorIs(t, newErr, shadowfs.ErrCapacity)
	assert.NotErrorIs(t, newErr, shadowfs.ErrNotFound)
}

func TestShadowErrorWrap(t *testing.T) {
	originalErr := errors.New("original error")
	newErr := shadowfs.ErrIOFailed.Wrap(originalErr)
	expectedMessage := "Input/output error: original error"

	assert.EqualValues(t, expectedMessage, newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, originalErr, "original error not set as parent")
	assert.ErrorIs(t, newErr, shadowfs.ErrIOFailed, "base error not set as parent")
}

func TestErrorClasses(t *testing.T) {
	classes := []struct {
		err  error
		base error
	}{
		{shadowfs.ErrNoFreeInodes, shadowfs.ErrCapacity},
		{shadowfs.ErrTooManyACLEntries, shadowfs.ErrCapacity},
		{shadowfs.ErrDirectoryFull, shadowfs.ErrCapacity},
		{shadowfs.ErrFileTooLarge, shadowfs.ErrCapacity},
		{shadowfs.ErrInodeNotFound, shadowfs.ErrNotFound},
		{shadowfs.ErrACLEntryNotFound, shadowfs.ErrNotFound},
		{shadowfs.ErrInvalidPermissions, shadowfs.ErrInvalidArgument},
		{shadowfs.ErrInvalidName, shadowfs.ErrInvalidArgument},
		{shadowfs.ErrMalformedRecord, shadowfs.ErrInvalidArgument},
	}

	for _, c := range classes {
		assert.ErrorIs(t, c.err, c.base, "%q has the wrong class", c.err.Error())
	}
}
