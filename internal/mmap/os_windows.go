//go:build windows

package mmap

import "os"

// Shared writable file mappings are not wired up on Windows; the image
// format itself is portable, only this access layer is not.

func osMap(f *os.File, size int, writable bool) ([]byte, error) {
	return nil, ErrUnsupported
}

func osUnmap(data []byte) error { return ErrUnsupported }

func osSync(data []byte) error { return ErrUnsupported }

func osAdvise(data []byte, pattern AccessPattern) error { return nil }

func PageSize() int { return os.Getpagesize() }
