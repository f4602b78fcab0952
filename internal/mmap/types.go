package mmap

import "errors"

// AccessPattern provides hints to the kernel about how the data will be accessed.
type AccessPattern int

const (
	// AccessDefault is the default access pattern (no specific advice).
	AccessDefault AccessPattern = iota
	// AccessSequential expects data to be accessed sequentially.
	AccessSequential
	// AccessRandom expects data to be accessed randomly.
	AccessRandom
)

var (
	// ErrClosed is returned when attempting to access a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned when the file size is invalid for mapping.
	ErrInvalidSize = errors.New("mmap: invalid file size")
	// ErrReadOnly is returned when syncing a read-only mapping.
	ErrReadOnly = errors.New("mmap: mapping is read-only")
	// ErrUnsupported is returned on platforms without shared file mappings.
	ErrUnsupported = errors.New("mmap: not supported on this platform")
)
