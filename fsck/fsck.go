// Package fsck verifies the structural integrity of a sharkfs disk
// image offline. It never mutates the image: the file is mapped
// read-only and every problem is reported as a finding rather than
// repaired.
//
// The checker classifies every block by walking the free list, the
// root directory chain and each file chain, then sweeps for blocks no
// walk reached. A block claimed by two walks, a chain that leaves the
// image, a tag or back link that disagrees with the walk, and a chain
// whose length does not match the recorded file size all produce
// findings.
package fsck

import (
	"fmt"
	"log/slog"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/sharkfs/internal/mmap"
	"github.com/hupe1980/sharkfs/layout"
)

// Block owners. Files get ownerFileBase+k for the k-th live directory
// entry.
const (
	ownerUnvisited int32 = iota
	ownerSuper
	ownerFree
	ownerRootdir
	ownerFileBase
)

// Check maps the image at path read-only and verifies it. The returned
// error covers I/O and mapping failures only; structural problems are
// findings in the report.
func Check(path string, optFns ...Option) (*Report, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	defer m.Close()

	r, err := CheckBytes(m.Bytes(), optFns...)
	if err != nil {
		return nil, err
	}
	r.Path = path
	return r, nil
}

// CheckBytes verifies an image already held in memory.
func CheckBytes(data []byte, optFns ...Option) (*Report, error) {
	o := applyOptions(optFns)

	img, err := layout.NewImage(data)
	if err != nil {
		return nil, err
	}

	c := &checker{
		img:     img,
		owners:  make([]int32, img.NumBlocks()),
		visited: bitset.New(uint(img.NumBlocks())),
		report:  &Report{NBlocks: img.NumBlocks()},
		logger:  o.logger,
		verbose: o.verbose,
	}
	c.run()
	return c.report, nil
}

type checker struct {
	img     *layout.Image
	owners  []int32
	visited *bitset.BitSet
	report  *Report
	logger  *slog.Logger
	verbose bool

	// fileNames indexes live entries so cross-list findings can name
	// the other owner.
	fileNames []string
}

func (c *checker) run() {
	super := c.img.Super()
	if !super.MagicOK() {
		c.addf("bad-magic", 0, "signature is % x, want % x", super.RawMagic(), layout.Magic[:])
		return
	}
	if declared := super.NBlocks(); declared != c.img.NumBlocks() {
		c.addf("size-mismatch", 0, "superblock declares %d blocks, image holds %d",
			declared, c.img.NumBlocks())
		return
	}

	c.owners[0] = ownerSuper
	c.visited.Set(0)

	free, _, _ := c.walkChain(super.FreeList(), ownerFree, layout.TagFree, "free list")
	c.report.FreeBlocks = free

	_, dirPages, _ := c.walkChain(super.NextRootDir(), ownerRootdir, layout.TagDir, "root directory")

	c.checkEntries(dirPages)
	c.sweepOrphans()
}

// walkChain classifies the doubly-linked chain starting at head. It
// returns the number of blocks accepted, their IDs in order, and
// whether the walk ran to the chain's natural end. Out-of-range links
// and blocks another walk already claimed end the walk; tag and back
// link mismatches are reported and walked through.
func (c *checker) walkChain(head layout.BlockID, owner int32, tag layout.Tag, what string) (uint32, []layout.BlockID, bool) {
	var (
		length uint32
		ids    []layout.BlockID
		prev   layout.BlockID
	)
	for id := head; id != 0; {
		if id >= c.img.NumBlocks() {
			c.addf("out-of-range", id, "%s points to block %d, past the last block %d",
				what, id, c.img.NumBlocks()-1)
			return length, ids, false
		}
		switch o := c.owners[id]; {
		case o == owner:
			c.addf("cycle", id, "%s loops back to block %d", what, id)
			return length, ids, false
		case o != ownerUnvisited:
			c.addf("cross-list", id, "block %d of %s is also part of %s", id, what, c.ownerLabel(o))
			return length, ids, false
		}
		c.owners[id] = owner
		c.visited.Set(uint(id))

		h, err := c.img.Header(id)
		if err != nil {
			// Range was checked above; unreachable in practice.
			c.addf("out-of-range", id, "%v", err)
			return length, ids, false
		}
		if got := h.Type(); got != tag {
			c.addf("bad-tag", id, "%s block %d is tagged %s, want %s",
				what, id, tagLabel(got), tagLabel(tag))
		}
		if got := h.Prev(); got != prev {
			c.addf("bad-backlink", id, "%s block %d links back to %d, want %d",
				what, id, got, prev)
		}
		if c.verbose {
			c.logger.Debug("block classified", "block", id, "owner", c.ownerLabel(owner))
		}

		length++
		ids = append(ids, id)
		prev = id
		id = h.Next()
	}
	return length, ids, true
}

// checkEntries validates every directory entry and walks each live
// file's chain. dirPages are the extension blocks the root directory
// walk accepted; pages it could not reach are skipped, their entries
// already being covered by the findings that ended that walk.
func (c *checker) checkEntries(dirPages []layout.BlockID) {
	c.eachEntry(dirPages, func(slot int, e layout.DirEntry) {
		if e.FirstBlock() == 0 {
			return
		}
		name, ok := c.checkName(slot, e)
		k := int32(len(c.fileNames))
		c.fileNames = append(c.fileNames, name)
		if !ok {
			name = fmt.Sprintf("entry %d", slot)
		}
		c.report.Files++

		what := fmt.Sprintf("file %q", name)
		length, _, complete := c.walkChain(e.FirstBlock(), ownerFileBase+k, layout.TagFile, what)
		if !complete {
			return
		}
		expected := uint32(roundUpBlocks(e.Size()))
		if length != expected {
			c.addf("chain-length", e.FirstBlock(),
				"%s holds %d blocks, size %d needs %d", what, length, e.Size(), expected)
		}
	})
}

func (c *checker) eachEntry(dirPages []layout.BlockID, fn func(slot int, e layout.DirEntry)) {
	super := c.img.Super()
	for i := 0; i < layout.EntriesPerBlock; i++ {
		fn(i, super.Entry(i))
	}
	slot := layout.EntriesPerBlock
	for _, id := range dirPages {
		db, err := c.img.DirBlock(id)
		if err != nil {
			// Mistagged pages were already reported; read them as
			// directory pages anyway so their entries are not lost.
			h, herr := c.img.Header(id)
			if herr != nil {
				continue
			}
			db = layout.DirBlock{BlockHeader: h}
		}
		for i := 0; i < layout.EntriesPerBlock; i++ {
			fn(slot+i, db.Entry(i))
		}
		slot += layout.EntriesPerBlock
	}
}

// checkName validates the stored name bytes: non-empty, NUL-terminated
// and NUL-padded to the end of the field.
func (c *checker) checkName(slot int, e layout.DirEntry) (string, bool) {
	raw := e.NameBytes()
	term := -1
	for i, b := range raw {
		if b == 0 {
			term = i
			break
		}
	}
	switch {
	case term == -1:
		c.addf("bad-name", e.FirstBlock(), "entry %d name is not NUL-terminated", slot)
		return string(raw), false
	case term == 0:
		c.addf("bad-name", e.FirstBlock(), "entry %d is live but has an empty name", slot)
		return "", false
	}
	for _, b := range raw[term:] {
		if b != 0 {
			c.addf("bad-name", e.FirstBlock(), "entry %d name has bytes after the terminator", slot)
			return string(raw[:term]), false
		}
	}
	return string(raw[:term]), true
}

// sweepOrphans reports every block no walk reached.
func (c *checker) sweepOrphans() {
	for id := uint32(1); id < c.img.NumBlocks(); id++ {
		if c.visited.Test(uint(id)) {
			continue
		}
		tag := "unreadable"
		if h, err := c.img.Header(id); err == nil {
			tag = tagLabel(h.Type())
		}
		c.addf("orphan", id, "block %d (tagged %s) is not reachable from any list", id, tag)
	}
}

func (c *checker) ownerLabel(o int32) string {
	switch {
	case o == ownerSuper:
		return "the superblock"
	case o == ownerFree:
		return "the free list"
	case o == ownerRootdir:
		return "the root directory"
	case o >= ownerFileBase:
		return fmt.Sprintf("file %q", c.fileNames[o-ownerFileBase])
	default:
		return "nothing"
	}
}

func (c *checker) addf(code string, block layout.BlockID, format string, args ...any) {
	f := Finding{Code: code, Block: block, Detail: fmt.Sprintf(format, args...)}
	c.report.Findings = append(c.report.Findings, f)
	c.logger.Warn("finding", "code", f.Code, "block", f.Block, "detail", f.Detail)
}

// tagLabel describes a tag, falling back to the raw bytes for tags the
// format does not define.
func tagLabel(t layout.Tag) string {
	if l := t.Label(); l != "" {
		return l
	}
	return fmt.Sprintf("%q", string(t[:]))
}

// roundUpBlocks returns the number of blocks a file of the given size
// must own, at least one.
func roundUpBlocks(size uint32) uint64 {
	if size == 0 {
		return 1
	}
	return (uint64(size) + uint64(layout.BlockDataSize) - 1) / uint64(layout.BlockDataSize)
}
