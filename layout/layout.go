// Package layout defines the on-disk binary format of a sharkfs disk
// image and provides typed, bounds-checked views over a mapped image.
//
// An image is an array of 512-byte blocks. Block 0 is the superblock;
// every other block starts with a 12-byte header (4-byte type tag plus
// prev/next block IDs) linking it into exactly one doubly-linked list.
// All multi-byte integers are little-endian. Views returned by Image
// alias the underlying mapping; they are valid only while the mapping
// is.
package layout

import (
	"bytes"
	"fmt"
)

// BlockSize is the size of every block in bytes.
const BlockSize = 512

// HeaderSize is the size of the common block header: a 4-byte type tag
// followed by two 32-bit block IDs.
const HeaderSize = 12

// BlockDataSize is the file payload capacity of a single block.
const BlockDataSize = BlockSize - HeaderSize

// NameSize is the width of the directory entry name field, including
// the terminating NUL. Names are therefore at most NameSize-1 bytes.
const NameSize = 24

// DirEntrySize is the width of one directory entry.
const DirEntrySize = 32

// EntriesPerBlock is the number of directory entries per directory
// page. The first entry-sized region of each page is reserved: in the
// superblock it holds the format header, in a directory block it holds
// the block header plus padding.
const EntriesPerBlock = BlockSize/DirEntrySize - 1

// MaxDiskSize is the largest representable image: 2^32 blocks.
const MaxDiskSize = (1 << 32) * BlockSize

// MaxFileSize is the largest representable file, capped by the 32-bit
// size field of a directory entry.
const MaxFileSize = 1<<32 - 1

// Magic identifies a sharkfs image. The high-bit bytes deliberately do
// not form valid UTF-8; the trailing 0x01 is the format version and the
// final byte is the NUL terminator, which is part of the signature.
var Magic = [8]byte{'S', 'F', 'S', 0xB2, 0xB1, 0xB3, 0x01, 0x00}

// Tag is a 4-byte block type tag (no NUL terminator).
type Tag [4]byte

var (
	// TagFree marks an unallocated block.
	TagFree = Tag{'S', 'F', 'U', 0xF5}
	// TagFile marks a block holding part of a file.
	TagFile = Tag{'S', 'F', 'F', 0xE6}
	// TagDir marks a block holding directory entries.
	TagDir = Tag{'S', 'F', 'D', 0xE4}
)

// Label returns a human-readable description of a tag, or "" if the
// tag is not one of the defined codes.
func (t Tag) Label() string {
	switch t {
	case TagFile:
		return "part of a file"
	case TagDir:
		return "part of a directory"
	case TagFree:
		return "unallocated"
	}
	if bytes.Equal(t[:], Magic[:4]) {
		return "the superblock"
	}
	return ""
}

// BlockID identifies a block by its index within the image. ID 0 is
// the null ID: it terminates lists and marks unused directory entries.
type BlockID = uint32

// OutOfRangeError reports a block ID at or beyond the end of the image.
type OutOfRangeError struct {
	ID      BlockID
	NBlocks uint32
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("block %d out of range (image has %d blocks)", e.ID, e.NBlocks)
}

// TagMismatchError reports a block whose on-disk tag does not match
// the type the caller asked for.
type TagMismatchError struct {
	ID   BlockID
	Want Tag
	Got  Tag
}

func (e *TagMismatchError) Error() string {
	return fmt.Sprintf("block %d: expected tag %q, found %q", e.ID, e.Want[:], e.Got[:])
}
