package sharkfs

import (
	"fmt"

	"github.com/hupe1980/sharkfs/layout"
)

// allocateBlocks splices n blocks off the front of the free list,
// retags them, and returns the head of the resulting standalone chain.
//
// If fewer than n blocks are free, the free list is left untouched and
// ErrNoSpace is returned; no partial allocation is ever visible.
// n == 0 allocates nothing and returns the null ID.
//
// Callers hold fs.mu.
func (fs *FileSystem) allocateBlocks(n uint32, tag layout.Tag) (layout.BlockID, error) {
	if n == 0 {
		return 0, nil
	}
	super := fs.img.Super()
	first := super.FreeList()
	if first == 0 {
		return 0, ErrNoSpace
	}

	// Walk exactly n nodes from the head before touching anything.
	last, err := fs.img.FreeBlock(first)
	if err != nil {
		return 0, corrupt(err)
	}
	for i := uint32(1); i < n; i++ {
		next := last.Next()
		if next == 0 {
			return 0, ErrNoSpace
		}
		last, err = fs.img.FreeBlock(next)
		if err != nil {
			return 0, corrupt(err)
		}
	}

	// Detach blocks [first..last] as a standalone chain.
	nextFree := last.Next()
	if nextFree != 0 {
		nf, err := fs.img.FreeBlock(nextFree)
		if err != nil {
			return 0, corrupt(err)
		}
		nf.SetPrev(0)
		last.SetNext(0)
	}
	super.SetFreeList(nextFree)

	for id := first; id != 0; {
		h, err := fs.img.FreeBlock(id)
		if err != nil {
			return 0, corrupt(err)
		}
		h.SetType(tag)
		id = h.Next()
	}
	return first, nil
}

// freeBlocks returns the chain starting at first to the free list,
// retagging every member. first need not be the logical head of its
// chain: the part before it is cut loose and keeps its tag, which is
// how truncation discards a chain tail.
//
// Freeing a block that is already free indicates engine state and disk
// state have diverged; it is reported as corruption.
func (fs *FileSystem) freeBlocks(first layout.BlockID) error {
	h, err := fs.img.Header(first)
	if err != nil {
		return corrupt(err)
	}
	if prev := h.Prev(); prev != 0 {
		p, err := fs.img.Header(prev)
		if err != nil {
			return corrupt(err)
		}
		p.SetNext(0)
		h.SetPrev(0)
	}

	tail := h
	for {
		if tail.Type() == layout.TagFree {
			return &CorruptionError{
				Block: tail.ID(),
				cause: fmt.Errorf("double free: block already unallocated"),
			}
		}
		tail.SetType(layout.TagFree)
		next := tail.Next()
		if next == 0 {
			break
		}
		tail, err = fs.img.Header(next)
		if err != nil {
			return corrupt(err)
		}
	}

	// Splice the whole chain onto the front of the free list, fixing
	// the displaced head's back pointer.
	super := fs.img.Super()
	oldHead := super.FreeList()
	tail.SetNext(oldHead)
	if oldHead != 0 {
		oh, err := fs.img.FreeBlock(oldHead)
		if err != nil {
			return corrupt(err)
		}
		oh.SetPrev(tail.ID())
	}
	super.SetFreeList(first)
	return nil
}

// FreeBlocks walks the free list and returns its length. Each free
// block can hold layout.BlockDataSize bytes of file data.
func (fs *FileSystem) FreeBlocks() (uint32, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.mounted() {
		return 0, ErrNoMedium
	}
	return fs.countFreeBlocks()
}

func (fs *FileSystem) countFreeBlocks() (uint32, error) {
	var n uint32
	for id := fs.img.Super().FreeList(); id != 0; {
		h, err := fs.img.FreeBlock(id)
		if err != nil {
			return 0, corrupt(err)
		}
		n++
		id = h.Next()
	}
	return n, nil
}
