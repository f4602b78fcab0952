package sharkfs

import (
	"fmt"
	"time"

	"github.com/hupe1980/sharkfs/layout"
)

const dataSize = uint64(layout.BlockDataSize)

// roundUpAlloc rounds a byte size up to a whole number of blocks'
// worth of payload. Zero rounds to one block: every live file owns at
// least one block, since a nonzero chain head is what marks its
// directory entry as in use.
func roundUpAlloc(size uint64) uint64 {
	if size == 0 {
		size = 1
	}
	return dataSize * ((size + dataSize - 1) / dataSize)
}

// blockIndex returns the index within the chain of the block a cursor
// at pos rests on: the block holding the last consumed byte, or the
// chain head at pos 0.
func blockIndex(pos uint64) uint64 {
	return roundUpAlloc(pos)/dataSize - 1
}

// Read copies up to len(p) bytes at the descriptor's cursor into p and
// advances the cursor. It returns the number of bytes read, which is
// short when end-of-file intervenes. A read starting exactly at
// end-of-file returns 0 with a nil error.
func (fs *FileSystem) Read(fd FD, p []byte) (int, error) {
	start := time.Now()
	fs.mu.Lock()
	n, err := fs.read(fd, p)
	fs.mu.Unlock()
	fs.metrics.RecordRead(n, time.Since(start), err)
	return n, err
}

func (fs *FileSystem) read(fd FD, p []byte) (int, error) {
	d, err := fs.desc(fd)
	if err != nil {
		return 0, err
	}
	e, err := fs.dirEntryAt(d.file.slot)
	if err != nil {
		return 0, err
	}

	fileSize := uint64(e.Size())
	pos := d.pos
	total := min(fileSize-pos, uint64(len(p)))
	if total == 0 {
		return 0, nil
	}

	// Copy in chunks aligned to block boundaries: only the first
	// chunk (cursor mid-block) and the last may be partial. The
	// cursor cache advances with the copy, so sequential reads cost
	// O(bytes), not O(bytes x chain length).
	blk, err := fs.img.FileBlock(d.cur)
	if err != nil {
		return 0, corrupt(err)
	}
	out := p
	toRead := total
	blockPos := pos % dataSize
	chunk := min(roundUpAlloc(pos)-pos, toRead)
	for {
		// The chunk is zero on the first iteration when the cursor
		// sits exactly on a block boundary.
		if chunk > 0 {
			copy(out, blk.Data()[blockPos:blockPos+chunk])
			out = out[chunk:]
			toRead -= chunk
		}
		if toRead == 0 {
			break
		}
		blockPos = 0
		chunk = min(dataSize, toRead)
		blk, err = fs.img.FileBlock(blk.Next())
		if err != nil {
			return 0, corrupt(err)
		}
	}

	d.cur = blk.ID()
	d.pos = pos + total
	return int(total), nil
}

// Write copies p at the descriptor's cursor, growing the file as
// needed, and advances the cursor past it. Growth is all-or-nothing:
// if the free list cannot supply every block the write needs, Write
// fails with ErrNoSpace before copying anything and no block state
// changes. A write that would push the file past layout.MaxFileSize
// fails with ErrFileTooBig instead.
func (fs *FileSystem) Write(fd FD, p []byte) (int, error) {
	start := time.Now()
	fs.mu.Lock()
	n, err := fs.write(fd, p)
	fs.mu.Unlock()
	fs.metrics.RecordWrite(n, time.Since(start), err)
	fs.logger.LogWrite(fd, len(p), err)
	return n, err
}

func (fs *FileSystem) write(fd FD, p []byte) (int, error) {
	d, err := fs.desc(fd)
	if err != nil {
		return 0, err
	}
	e, err := fs.dirEntryAt(d.file.slot)
	if err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	fileSize := uint64(e.Size())
	pos := d.pos
	endPos := pos + uint64(len(p))
	if endPos > layout.MaxFileSize {
		return 0, fmt.Errorf("%w: write ends at %d", ErrFileTooBig, endPos)
	}

	// Enlarge first. The growth chain is allocated in full before any
	// byte is copied and spliced on when the copy loop reaches the
	// old end of the chain.
	var firstNew layout.BlockID
	if allocSize := roundUpAlloc(fileSize); endPos > allocSize {
		addl := uint32((roundUpAlloc(endPos) - allocSize) / dataSize)
		firstNew, err = fs.allocateBlocks(addl, layout.TagFile)
		if err != nil {
			return 0, err
		}
	}

	n, err := fs.writeChunks(d, e, p, firstNew)
	if err != nil && firstNew != 0 {
		// The growth chain may not have been spliced yet; do not leak
		// it. A splice that already happened reset firstNew below.
		_ = fs.freeBlocks(firstNew)
	}
	return n, err
}

func (fs *FileSystem) writeChunks(d *descriptor, e layout.DirEntry, p []byte, firstNew layout.BlockID) (int, error) {
	fileSize := uint64(e.Size())
	pos := d.pos
	endPos := pos + uint64(len(p))

	blk, err := fs.img.FileBlock(d.cur)
	if err != nil {
		return 0, corrupt(err)
	}
	in := p
	toWrite := uint64(len(p))
	blockPos := pos % dataSize
	chunk := min(roundUpAlloc(pos)-pos, toWrite)
	for {
		if chunk > 0 {
			copy(blk.Data()[blockPos:blockPos+chunk], in[:chunk])
			in = in[chunk:]
			toWrite -= chunk
		}
		if toWrite == 0 {
			break
		}
		blockPos = 0
		chunk = min(dataSize, toWrite)
		if next := blk.Next(); next != 0 {
			blk, err = fs.img.FileBlock(next)
			if err != nil {
				return 0, corrupt(err)
			}
		} else {
			// End of the original allocation: attach the growth
			// chain and keep copying. Happens at most once per write.
			nb, err := fs.img.FileBlock(firstNew)
			if err != nil {
				return 0, corrupt(err)
			}
			blk.SetNext(firstNew)
			nb.SetPrev(blk.ID())
			firstNew = 0
			blk = nb
		}
	}

	d.cur = blk.ID()
	d.pos = endPos
	if endPos > fileSize {
		e.SetSize(uint32(endPos))
	}
	return len(p), nil
}

// GetPos returns the descriptor's cursor position.
func (fs *FileSystem) GetPos(fd FD) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	d, err := fs.desc(fd)
	if err != nil {
		return 0, err
	}
	return int64(d.pos), nil
}

// Seek shifts the descriptor's cursor by delta bytes, clamping the
// result to [0, file size]; unlike lseek it never produces a position
// past end-of-file. It returns the new position.
func (fs *FileSystem) Seek(fd FD, delta int64) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	d, err := fs.desc(fd)
	if err != nil {
		return 0, err
	}
	e, err := fs.dirEntryAt(d.file.slot)
	if err != nil {
		return 0, err
	}

	size := int64(e.Size())
	np := int64(d.pos) + delta
	if np < 0 {
		np = 0
	}
	if np > size {
		np = size
	}

	// Reposition the cached block by the cheapest route the
	// doubly-linked chain offers: forward from here, backward from
	// here, or forward from the chain head.
	ci := blockIndex(d.pos)
	ti := blockIndex(uint64(np))
	var cur layout.BlockID
	switch {
	case ti >= ci:
		cur, err = fs.walkForward(d.cur, ti-ci)
	case ci-ti <= ti:
		cur, err = fs.walkBackward(d.cur, ci-ti)
	default:
		cur, err = fs.walkForward(d.start, ti)
	}
	if err != nil {
		return 0, err
	}

	d.pos = uint64(np)
	d.cur = cur
	return np, nil
}

func (fs *FileSystem) walkForward(id layout.BlockID, steps uint64) (layout.BlockID, error) {
	for ; steps > 0; steps-- {
		h, err := fs.img.FileBlock(id)
		if err != nil {
			return 0, corrupt(err)
		}
		id = h.Next()
	}
	return id, nil
}

func (fs *FileSystem) walkBackward(id layout.BlockID, steps uint64) (layout.BlockID, error) {
	for ; steps > 0; steps-- {
		h, err := fs.img.FileBlock(id)
		if err != nil {
			return 0, corrupt(err)
		}
		id = h.Prev()
	}
	return id, nil
}

// Truncate sets the file's size, freeing the no-longer-needed tail of
// the chain on shrink and splicing a zeroed chain on growth. It is
// refused with ErrBusy while any other descriptor is open on the same
// file, since it invalidates their cursors.
func (fs *FileSystem) Truncate(fd FD, size uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	d, err := fs.desc(fd)
	if err != nil {
		return err
	}
	if d.file.refCount > 1 {
		return fmt.Errorf("%w: file has other open descriptors", ErrBusy)
	}
	e, err := fs.dirEntryAt(d.file.slot)
	if err != nil {
		return err
	}

	oldSize := uint64(e.Size())
	newSize := uint64(size)
	oldBlocks := roundUpAlloc(oldSize) / dataSize
	newBlocks := roundUpAlloc(newSize) / dataSize

	switch {
	case newBlocks < oldBlocks:
		tail, err := fs.walkForward(d.start, newBlocks-1)
		if err != nil {
			return err
		}
		th, err := fs.img.FileBlock(tail)
		if err != nil {
			return corrupt(err)
		}
		if err := fs.freeBlocks(th.Next()); err != nil {
			return err
		}
	case newBlocks > oldBlocks:
		firstNew, err := fs.allocateBlocks(uint32(newBlocks-oldBlocks), layout.TagFile)
		if err != nil {
			return err
		}
		tail, err := fs.walkForward(d.start, oldBlocks-1)
		if err != nil {
			_ = fs.freeBlocks(firstNew)
			return err
		}
		th, err := fs.img.FileBlock(tail)
		if err != nil {
			_ = fs.freeBlocks(firstNew)
			return corrupt(err)
		}
		nb, err := fs.img.FileBlock(firstNew)
		if err != nil {
			_ = fs.freeBlocks(firstNew)
			return corrupt(err)
		}
		th.SetNext(firstNew)
		nb.SetPrev(th.ID())
	}

	// Bytes gained by growth read back as zeros.
	if newSize > oldSize {
		if err := fs.zeroRange(d.start, oldSize, newSize); err != nil {
			return err
		}
	}

	e.SetSize(size)
	if d.pos > newSize {
		d.pos = newSize
	}
	cur, err := fs.walkForward(d.start, blockIndex(d.pos))
	if err != nil {
		return err
	}
	d.cur = cur
	return nil
}

// zeroRange clears bytes [from, to) of the chain starting at head.
func (fs *FileSystem) zeroRange(head layout.BlockID, from, to uint64) error {
	firstBlk := from / dataSize
	id, err := fs.walkForward(head, firstBlk)
	if err != nil {
		return err
	}
	for i := firstBlk; i*dataSize < to; i++ {
		blk, err := fs.img.FileBlock(id)
		if err != nil {
			return corrupt(err)
		}
		lo := uint64(0)
		if from > i*dataSize {
			lo = from - i*dataSize
		}
		hi := min(to-i*dataSize, dataSize)
		clear(blk.Data()[lo:hi])
		id = blk.Next()
	}
	return nil
}
