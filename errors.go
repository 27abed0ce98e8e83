package shadowfs

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

type ShadowError interface {
	error
	WithMessage(message string) ShadowError
	Wrap(err error) ShadowError
}

type baseShadowError string

// These are the five error classes. Every error returned by this module
// matches exactly one of them with [errors.Is].
const (
	ErrCapacity        = baseShadowError("No space left on device")
	ErrNotFound        = baseShadowError("No such file or directory")
	ErrExists          = baseShadowError("File exists")
	ErrInvalidArgument = baseShadowError("Invalid argument")
	ErrIOFailed        = baseShadowError("Input/output error")
)

var ErrNoFreeBlocks = ErrCapacity.WithMessage("No free blocks")
var ErrNoFreeInodes = ErrCapacity.WithMessage("No free inodes")
var ErrTooManyACLEntries = ErrCapacity.WithMessage("Too many ACL entries")
var ErrDirectoryFull = ErrCapacity.WithMessage("Directory table is full")
var ErrFileTooLarge = ErrCapacity.WithMessage("File too large")

var ErrInodeNotFound = ErrNotFound.WithMessage("No such inode")
var ErrACLEntryNotFound = ErrNotFound.WithMessage("No such ACL entry")

var ErrInvalidPermissions = ErrInvalidArgument.WithMessage("Invalid permission bits")
var ErrInvalidName = ErrInvalidArgument.WithMessage("Invalid file name")
var ErrMalformedRecord = ErrInvalidArgument.WithMessage("Malformed journal record")

func (e baseShadowError) Error() string {
	return string(e)
}

func (e baseShadowError) RootCause() ShadowError {
	return e
}

func (e baseShadowError) WithMessage(message string) ShadowError {
	return customShadowError{
		message:       message,
		originalError: e,
	}
}

func (e baseShadowError) Wrap(err error) ShadowError {
	return customShadowError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// -----------------------------------------------------------------------------

type customShadowError struct {
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e customShadowError) Error() string {
	return e.message
}

func (e customShadowError) WithMessage(message string) ShadowError {
	return customShadowError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customShadowError) Wrap(err error) ShadowError {
	return customShadowError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customShadowError) Unwrap() error {
	return e.originalError
}
