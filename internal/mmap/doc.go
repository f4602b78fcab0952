// Package mmap provides shared memory mappings of disk image files.
//
// The engine maps images read-write so that block mutations write
// through to the underlying file; the checker maps them read-only.
// A Mapping owns its byte region: slices handed out by Bytes become
// invalid once Close is called.
package mmap
