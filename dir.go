package sharkfs

import (
	"fmt"
	"strings"

	"github.com/hupe1980/sharkfs/layout"
)

// The root directory is the entry page embedded in the superblock plus
// an optional chain of directory-extension blocks. Entries are
// addressed by a flat slot index: slots [0, EntriesPerBlock) live in
// the superblock, the next EntriesPerBlock in the first extension
// block, and so on. The base engine never grows the chain, but images
// that carry one are fully supported.

// validateName rejects names the on-disk format cannot represent.
func validateName(name string) error {
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if len(name)+1 > layout.NameSize {
		return fmt.Errorf("%w: %q", ErrNameTooLong, name)
	}
	return nil
}

// forEachDirEntry calls fn for every directory slot in order. fn
// returns true to stop the scan.
func (fs *FileSystem) forEachDirEntry(fn func(slot int, e layout.DirEntry) bool) error {
	super := fs.img.Super()
	for i := 0; i < layout.EntriesPerBlock; i++ {
		if fn(i, super.Entry(i)) {
			return nil
		}
	}
	slot := layout.EntriesPerBlock
	for id := super.NextRootDir(); id != 0; {
		db, err := fs.img.DirBlock(id)
		if err != nil {
			return corrupt(err)
		}
		for i := 0; i < layout.EntriesPerBlock; i++ {
			if fn(slot+i, db.Entry(i)) {
				return nil
			}
		}
		slot += layout.EntriesPerBlock
		id = db.Next()
	}
	return nil
}

// dirEntryAt resolves a slot index to its entry view.
func (fs *FileSystem) dirEntryAt(slot int) (layout.DirEntry, error) {
	super := fs.img.Super()
	if slot < layout.EntriesPerBlock {
		return super.Entry(slot), nil
	}
	page := slot/layout.EntriesPerBlock - 1
	id := super.NextRootDir()
	for ; page > 0 && id != 0; page-- {
		db, err := fs.img.DirBlock(id)
		if err != nil {
			return layout.DirEntry{}, corrupt(err)
		}
		id = db.Next()
	}
	if id == 0 {
		return layout.DirEntry{}, &CorruptionError{
			cause: fmt.Errorf("directory slot %d beyond directory chain", slot),
		}
	}
	db, err := fs.img.DirBlock(id)
	if err != nil {
		return layout.DirEntry{}, corrupt(err)
	}
	return db.Entry(slot % layout.EntriesPerBlock), nil
}

// lookupFile scans the directory for name. It simultaneously records
// the first unused slot, so a failed lookup can fall straight into
// creation without a second pass.
func (fs *FileSystem) lookupFile(name string) (slot int, found bool, firstFree int, err error) {
	slot, firstFree = -1, -1
	err = fs.forEachDirEntry(func(i int, e layout.DirEntry) bool {
		if e.FirstBlock() != 0 {
			if e.Name() == name {
				slot, found = i, true
				return true
			}
		} else if firstFree == -1 {
			firstFree = i
		}
		return false
	})
	return slot, found, firstFree, err
}

// createFile fills the free directory slot with a fresh minimum-size
// file: every file owns at least one block, because a nonzero
// first_block is what marks the entry as live.
func (fs *FileSystem) createFile(name string, slot int) error {
	first, err := fs.allocateBlocks(1, layout.TagFile)
	if err != nil {
		return err
	}
	e, err := fs.dirEntryAt(slot)
	if err != nil {
		return err
	}
	e.SetFirstBlock(first)
	e.SetSize(0)
	e.SetName(name)
	fs.gen++
	return nil
}
