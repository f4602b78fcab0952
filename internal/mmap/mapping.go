package mmap

import (
	"os"
	"sync/atomic"
)

// Mapping represents a memory-mapped file.
// It owns the underlying byte slice and is responsible for unmapping it.
type Mapping struct {
	data     []byte
	size     int
	writable bool
	closed   atomic.Bool
}

// Open maps the file at path into memory as read-only.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return mapFile(f, false)
}

// OpenRW maps the file at path into memory as a shared read-write
// mapping. Stores through Bytes write through to the file.
func OpenRW(path string) (*Mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return mapFile(f, true)
}

// Create creates or truncates the file at path, extends it to size
// bytes, and maps it read-write. The file's previous contents are
// lost even if Create subsequently fails.
func Create(path string, size int64) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		return nil, err
	}
	return mapFile(f, true)
}

func mapFile(f *os.File, writable bool) (*Mapping, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size <= 0 || size > int64(maxInt) {
		return nil, ErrInvalidSize
	}

	// The mapping survives the file descriptor being closed.
	data, err := osMap(f, int(size), writable)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, size: int(size), writable: writable}, nil
}

// Bytes returns the underlying byte slice.
// Warning: the slice is valid only until Close is called.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int { return m.size }

// Writable reports whether the mapping was opened read-write.
func (m *Mapping) Writable() bool { return m.writable }

// Sync flushes modified pages to the underlying file synchronously.
func (m *Mapping) Sync() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if !m.writable {
		return ErrReadOnly
	}
	return osSync(m.data)
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return osAdvise(m.data, pattern)
}

// Close unmaps the memory. It is idempotent. For shared writable
// mappings the kernel flushes remaining dirty pages on unmap; call
// Sync first when the caller needs to observe flush errors.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	data := m.data
	m.data = nil
	if data == nil {
		return nil
	}
	return osUnmap(data)
}

const maxInt = int(^uint(0) >> 1)
