package sharkfs

import (
	"fmt"
	"time"
)

// Remove deletes the named file and returns its blocks to the free
// list. A file with open descriptors cannot be removed; the call fails
// with ErrBusy and changes nothing.
func (fs *FileSystem) Remove(name string) error {
	start := time.Now()
	fs.mu.Lock()
	err := fs.remove(name)
	fs.mu.Unlock()
	fs.metrics.RecordRemove(time.Since(start), err)
	fs.logger.LogRemove(name, err)
	return err
}

func (fs *FileSystem) remove(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if !fs.mounted() {
		return ErrNoMedium
	}

	slot, found, _, err := fs.lookupFile(name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if _, open := fs.openFiles[slot]; open {
		return fmt.Errorf("%w: %q has open descriptors", ErrBusy, name)
	}

	e, err := fs.dirEntryAt(slot)
	if err != nil {
		return err
	}
	// Clear the entry before touching the chain, so a crash mid-free
	// leaks blocks instead of leaving a live entry pointing at freed
	// ones.
	first := e.FirstBlock()
	e.SetFirstBlock(0)
	e.SetSize(0)
	fs.gen++
	return fs.freeBlocks(first)
}

// Rename gives the file oldName the name newName. If newName already
// exists, it is atomically replaced: its directory entry takes over the
// old file's chain and the replaced chain is freed. Either file being
// open fails the call with ErrBusy.
func (fs *FileSystem) Rename(oldName, newName string) error {
	start := time.Now()
	fs.mu.Lock()
	err := fs.rename(oldName, newName)
	fs.mu.Unlock()
	fs.metrics.RecordRename(time.Since(start), err)
	return err
}

func (fs *FileSystem) rename(oldName, newName string) error {
	if err := validateName(oldName); err != nil {
		return err
	}
	if err := validateName(newName); err != nil {
		return err
	}
	if !fs.mounted() {
		return ErrNoMedium
	}
	if oldName == newName {
		return nil
	}

	oldSlot, found, _, err := fs.lookupFile(oldName)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %q", ErrNotFound, oldName)
	}
	if _, open := fs.openFiles[oldSlot]; open {
		return fmt.Errorf("%w: %q has open descriptors", ErrBusy, oldName)
	}

	newSlot, exists, _, err := fs.lookupFile(newName)
	if err != nil {
		return err
	}
	if exists {
		if _, open := fs.openFiles[newSlot]; open {
			return fmt.Errorf("%w: %q has open descriptors", ErrBusy, newName)
		}
		eo, err := fs.dirEntryAt(oldSlot)
		if err != nil {
			return err
		}
		en, err := fs.dirEntryAt(newSlot)
		if err != nil {
			return err
		}
		displaced := en.FirstBlock()
		en.SetFirstBlock(eo.FirstBlock())
		en.SetSize(eo.Size())
		eo.SetFirstBlock(0)
		eo.SetSize(0)
		fs.gen++
		return fs.freeBlocks(displaced)
	}

	e, err := fs.dirEntryAt(oldSlot)
	if err != nil {
		return err
	}
	e.SetName(newName)
	fs.gen++
	return nil
}
