package store

import (
	"errors"

	"github.com/dnr/segstore/alloc"
)

var (
	// ErrBusy: trim or reconfigure requested while a mapping is open.
	ErrBusy = errors.New("device has live mappings")
	// ErrNoMem: block allocation failed; state written by earlier calls is
	// untouched and the caller may retry after freeing space.
	ErrNoMem = alloc.ErrNoMem
	// ErrInterrupted: the wait for the device lock was cancelled. Nothing
	// was changed and the operation can simply be retried.
	ErrInterrupted = errors.New("interrupted waiting for device lock")
	// ErrInvalidArgument: negative seek result, or offset/length overflow.
	ErrInvalidArgument = errors.New("invalid offset or length")
	// ErrNotSupported: mapping requested on a device whose allocator does
	// not produce one block per page.
	ErrNotSupported = errors.New("device allocator does not support mapping")
	// ErrOutOfRange: page fault past the device size or into a hole. Fatal
	// for that page, never retried.
	ErrOutOfRange = errors.New("page fault out of range")
)
