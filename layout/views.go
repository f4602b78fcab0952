package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Image is an arena view over a mapped disk image. It performs bounds
// checks on every block access and optional tag checks through the
// typed accessors. It never takes ownership of the byte region.
type Image struct {
	data    []byte
	nBlocks uint32
}

// NewImage wraps a byte region as an image. The region must be a
// non-zero multiple of BlockSize and small enough for 32-bit IDs.
func NewImage(data []byte) (*Image, error) {
	if len(data) == 0 || len(data)%BlockSize != 0 {
		return nil, fmt.Errorf("image size %d is not a positive multiple of %d", len(data), BlockSize)
	}
	if uint64(len(data)) > MaxDiskSize {
		return nil, fmt.Errorf("image size %d exceeds maximum %d", len(data), uint64(MaxDiskSize))
	}
	return &Image{data: data, nBlocks: uint32(len(data) / BlockSize)}, nil
}

// NumBlocks returns the number of blocks in the image, superblock
// included.
func (im *Image) NumBlocks() uint32 { return im.nBlocks }

// Super returns the superblock view.
func (im *Image) Super() Superblock {
	return Superblock{b: im.data[:BlockSize]}
}

// Header returns the header view of block id. The null ID and IDs at
// or beyond the image end are errors; block 0 has no header.
func (im *Image) Header(id BlockID) (BlockHeader, error) {
	if id == 0 || id >= im.nBlocks {
		return BlockHeader{}, &OutOfRangeError{ID: id, NBlocks: im.nBlocks}
	}
	off := int(id) * BlockSize
	return BlockHeader{b: im.data[off : off+BlockSize], id: id}, nil
}

// typedHeader is Header plus a tag check.
func (im *Image) typedHeader(id BlockID, want Tag) (BlockHeader, error) {
	h, err := im.Header(id)
	if err != nil {
		return BlockHeader{}, err
	}
	if got := h.Type(); got != want {
		return BlockHeader{}, &TagMismatchError{ID: id, Want: want, Got: got}
	}
	return h, nil
}

// FreeBlock returns the header of block id, verifying it is tagged
// free.
func (im *Image) FreeBlock(id BlockID) (BlockHeader, error) {
	return im.typedHeader(id, TagFree)
}

// FileBlock returns a file-content view of block id, verifying the
// tag.
func (im *Image) FileBlock(id BlockID) (FileBlock, error) {
	h, err := im.typedHeader(id, TagFile)
	if err != nil {
		return FileBlock{}, err
	}
	return FileBlock{BlockHeader: h}, nil
}

// DirBlock returns a directory-page view of block id, verifying the
// tag.
func (im *Image) DirBlock(id BlockID) (DirBlock, error) {
	h, err := im.typedHeader(id, TagDir)
	if err != nil {
		return DirBlock{}, err
	}
	return DirBlock{BlockHeader: h}, nil
}

// BlockHeader is a view of one non-superblock block. The view keeps
// the whole 512-byte slice so FileBlock and DirBlock can embed it.
type BlockHeader struct {
	b  []byte
	id BlockID
}

// ID returns the block's own ID, recovering what the original format's
// pointer arithmetic derived from addresses.
func (h BlockHeader) ID() BlockID { return h.id }

// Type returns the block's 4-byte type tag.
func (h BlockHeader) Type() Tag {
	var t Tag
	copy(t[:], h.b[:4])
	return t
}

// SetType stamps the block's type tag.
func (h BlockHeader) SetType(t Tag) { copy(h.b[:4], t[:]) }

// Prev returns the previous block in this block's list, 0 for a head.
func (h BlockHeader) Prev() BlockID { return binary.LittleEndian.Uint32(h.b[4:8]) }

// SetPrev updates the back link.
func (h BlockHeader) SetPrev(id BlockID) { binary.LittleEndian.PutUint32(h.b[4:8], id) }

// Next returns the next block in this block's list, 0 for a tail.
func (h BlockHeader) Next() BlockID { return binary.LittleEndian.Uint32(h.b[8:12]) }

// SetNext updates the forward link.
func (h BlockHeader) SetNext(id BlockID) { binary.LittleEndian.PutUint32(h.b[8:12], id) }

// FileBlock is a view of a block holding file content.
type FileBlock struct {
	BlockHeader
}

// Data returns the 500-byte payload area.
func (f FileBlock) Data() []byte { return f.b[HeaderSize:BlockSize] }

// DirBlock is a view of a directory-extension block. Its first
// entry-sized region holds the block header plus padding, so directory
// blocks and the superblock share a uniform per-page capacity.
type DirBlock struct {
	BlockHeader
}

// Entry returns directory entry i of this page, 0 <= i < EntriesPerBlock.
func (d DirBlock) Entry(i int) DirEntry {
	off := (i + 1) * DirEntrySize
	return DirEntry{b: d.b[off : off+DirEntrySize]}
}

// Superblock is a view of block 0: the format header followed by the
// first directory page.
type Superblock struct {
	b []byte
}

// MagicOK reports whether the image carries the sharkfs signature.
func (s Superblock) MagicOK() bool { return bytes.Equal(s.b[:8], Magic[:]) }

// SetMagic stamps the signature.
func (s Superblock) SetMagic() { copy(s.b[:8], Magic[:]) }

// RawMagic returns the signature bytes as stored.
func (s Superblock) RawMagic() []byte { return s.b[:8] }

// NBlocks returns the declared size of the image in blocks.
func (s Superblock) NBlocks() uint32 { return binary.LittleEndian.Uint32(s.b[8:12]) }

// SetNBlocks declares the image size.
func (s Superblock) SetNBlocks(n uint32) { binary.LittleEndian.PutUint32(s.b[8:12], n) }

// FreeList returns the head of the free list, 0 if no blocks are free.
func (s Superblock) FreeList() BlockID { return binary.LittleEndian.Uint32(s.b[12:16]) }

// SetFreeList updates the free list head.
func (s Superblock) SetFreeList(id BlockID) { binary.LittleEndian.PutUint32(s.b[12:16], id) }

// NextRootDir returns the first directory-extension block, 0 if the
// root directory is confined to the superblock.
func (s Superblock) NextRootDir() BlockID { return binary.LittleEndian.Uint32(s.b[16:20]) }

// SetNextRootDir updates the directory-extension head.
func (s Superblock) SetNextRootDir(id BlockID) { binary.LittleEndian.PutUint32(s.b[16:20], id) }

// Entry returns directory entry i of the superblock's embedded page.
func (s Superblock) Entry(i int) DirEntry {
	off := (i + 1) * DirEntrySize
	return DirEntry{b: s.b[off : off+DirEntrySize]}
}

// DirEntry is a view of one 32-byte directory entry.
type DirEntry struct {
	b []byte
}

// FirstBlock returns the head of the file's allocation chain; 0 means
// the entry is unused.
func (e DirEntry) FirstBlock() BlockID { return binary.LittleEndian.Uint32(e.b[0:4]) }

// SetFirstBlock updates the chain head. Setting 0 releases the slot.
func (e DirEntry) SetFirstBlock(id BlockID) { binary.LittleEndian.PutUint32(e.b[0:4], id) }

// Size returns the file size in bytes.
func (e DirEntry) Size() uint32 { return binary.LittleEndian.Uint32(e.b[4:8]) }

// SetSize updates the file size.
func (e DirEntry) SetSize(n uint32) { binary.LittleEndian.PutUint32(e.b[4:8], n) }

// NameBytes returns the raw 24-byte name field.
func (e DirEntry) NameBytes() []byte { return e.b[8 : 8+NameSize] }

// Name returns the entry's name up to the first NUL.
func (e DirEntry) Name() string {
	raw := e.NameBytes()
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		return string(raw[:i])
	}
	return string(raw)
}

// SetName copies name into the field and NUL-pads the remainder. The
// caller must have validated the length.
func (e DirEntry) SetName(name string) {
	raw := e.NameBytes()
	n := copy(raw, name)
	for i := n; i < NameSize; i++ {
		raw[i] = 0
	}
}
