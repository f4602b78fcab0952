// Package sharkfs implements an embedded FAT-style file system stored
// in a memory-mapped disk image.
//
// An image is a flat array of 512-byte blocks linked into doubly-linked
// chains: one free list, one optional directory-extension list, and one
// allocation chain per file. Block 0 is the superblock, which holds the
// format header and the first page of the single flat root directory.
// The on-disk layout is defined in the layout package and is bit-exact
// with other implementations of the format.
//
// # Quick start
//
//	fs, err := sharkfs.Format("disk.img", 1<<20)
//	if err != nil {
//	    panic(err)
//	}
//	defer fs.Unmount()
//
//	fd, err := fs.Open("hello.txt")
//	if err != nil {
//	    panic(err)
//	}
//	if _, err := fs.Write(fd, []byte("hello, shark")); err != nil {
//	    panic(err)
//	}
//	fs.Close(fd)
//
// Every FileSystem owns exactly one image. Operations are synchronous
// and serialized by an internal lock, so a FileSystem may be shared
// between goroutines, but no operation overlaps another. Durability is
// whatever the shared mapping provides: a clean Unmount flushes all
// prior writes; a crash mid-operation may tear them.
//
// The fsck package independently verifies the structural invariants of
// an image without going through this engine.
package sharkfs
