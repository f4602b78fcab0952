package sharkfs

import (
	"errors"
	"fmt"

	"github.com/hupe1980/sharkfs/layout"
)

var (
	// ErrNoMedium is returned when an operation is attempted after the
	// image has been unmounted.
	ErrNoMedium = errors.New("no disk image mounted")

	// ErrNameTooLong is returned for names that do not fit a directory
	// entry (at most layout.NameSize-1 bytes).
	ErrNameTooLong = errors.New("file name too long")

	// ErrInvalidName is returned for empty names and names containing
	// a NUL byte.
	ErrInvalidName = errors.New("invalid file name")

	// ErrNotFound is returned when the named file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrBusy is returned when an operation is blocked by live
	// references: removing or renaming an open file, or unmounting
	// with open descriptors.
	ErrBusy = errors.New("file or image is busy")

	// ErrNoSpace is returned when the free list cannot supply the
	// blocks an operation needs. The operation has no partial effect.
	ErrNoSpace = errors.New("no space left on image")

	// ErrDirectoryFull is returned when no directory entry is free.
	ErrDirectoryFull = errors.New("directory is full")

	// ErrTooManyOpenFiles is returned when the descriptor table is
	// exhausted.
	ErrTooManyOpenFiles = errors.New("too many open files")

	// ErrFileTooBig is returned when a write or truncate would exceed
	// the maximum representable file size.
	ErrFileTooBig = errors.New("file exceeds maximum size")

	// ErrDiskTooBig is returned when an image exceeds the maximum
	// addressable size of the format.
	ErrDiskTooBig = errors.New("image exceeds maximum size")

	// ErrInvalidSize is returned when an image size is zero or not a
	// multiple of the system page size.
	ErrInvalidSize = errors.New("invalid image size")

	// ErrBadDescriptor is returned for operations on an invalid
	// descriptor.
	ErrBadDescriptor = errors.New("bad file descriptor")

	// ErrStaleToken is returned when the directory changed while a
	// listing token was outstanding.
	ErrStaleToken = errors.New("directory changed during listing")

	// ErrNotSFS is returned when an image fails format validation.
	ErrNotSFS = errors.New("not a sharkfs image")
)

// CorruptionError reports on-disk structure that violates a format
// invariant, discovered while the engine traversed the image. The
// underlying detail is available via errors.Unwrap.
type CorruptionError struct {
	Block layout.BlockID
	cause error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("structural corruption at block %d: %v", e.Block, e.cause)
}

func (e *CorruptionError) Unwrap() error { return e.cause }

// corrupt wraps layout access errors as CorruptionError, preserving
// the offending block ID.
func corrupt(err error) error {
	if err == nil {
		return nil
	}
	var oor *layout.OutOfRangeError
	if errors.As(err, &oor) {
		return &CorruptionError{Block: oor.ID, cause: err}
	}
	var tm *layout.TagMismatchError
	if errors.As(err, &tm) {
		return &CorruptionError{Block: tm.ID, cause: err}
	}
	return &CorruptionError{cause: err}
}
