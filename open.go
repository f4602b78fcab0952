package sharkfs

import (
	"time"

	"github.com/hupe1980/sharkfs/layout"
)

// FD is a sharkfs file descriptor. It is only meaningful to the
// FileSystem that issued it and is deliberately a distinct type so it
// cannot be confused with an operating system descriptor.
type FD int

// openFile is the per-unique-file entry shared by all descriptors open
// on one file: it carries the reference count that protects the file
// from removal and names the directory slot that holds size and chain
// head.
type openFile struct {
	slot     int
	refCount int
}

// descriptor is the per-open handle: an independent cursor plus a
// cached current block so sequential access does not re-walk the chain
// from its head.
type descriptor struct {
	file  *openFile
	start layout.BlockID
	cur   layout.BlockID
	pos   uint64
}

// Open opens the named file, creating it if it does not exist, and
// returns a descriptor positioned at offset 0. There is no read/write
// mode: every descriptor can do both.
func (fs *FileSystem) Open(name string) (FD, error) {
	start := time.Now()
	fs.mu.Lock()
	fd, err := fs.open(name)
	fs.mu.Unlock()
	fs.metrics.RecordOpen(time.Since(start), err)
	return fd, err
}

func (fs *FileSystem) open(name string) (FD, error) {
	if err := validateName(name); err != nil {
		return -1, err
	}
	if !fs.mounted() {
		return -1, ErrNoMedium
	}

	slot, found, firstFree, err := fs.lookupFile(name)
	if err != nil {
		return -1, err
	}
	if !found {
		if firstFree == -1 {
			return -1, ErrDirectoryFull
		}
		slot = firstFree
		if err := fs.createFile(name, slot); err != nil {
			return -1, err
		}
	}
	return fs.addDescriptor(slot)
}

// addDescriptor allocates a descriptor for the file at the given
// directory slot, creating the shared open-file entry on first open.
func (fs *FileSystem) addDescriptor(slot int) (FD, error) {
	fd := FD(-1)
	for i, d := range fs.descs {
		if d == nil {
			fd = FD(i)
			break
		}
	}
	if fd < 0 {
		return -1, ErrTooManyOpenFiles
	}

	of := fs.openFiles[slot]
	if of == nil {
		of = &openFile{slot: slot}
		fs.openFiles[slot] = of
	}
	of.refCount++

	e, err := fs.dirEntryAt(slot)
	if err != nil {
		of.refCount--
		if of.refCount == 0 {
			delete(fs.openFiles, slot)
		}
		return -1, err
	}
	first := e.FirstBlock()
	fs.descs[fd] = &descriptor{file: of, start: first, cur: first}
	return fd, nil
}

// Close releases a descriptor. It never fails: closing an invalid
// descriptor does nothing. On-disk state is not touched.
func (fs *FileSystem) Close(fd FD) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fd < 0 || int(fd) >= len(fs.descs) {
		return
	}
	d := fs.descs[fd]
	if d == nil {
		return
	}
	fs.descs[fd] = nil

	d.file.refCount--
	if d.file.refCount == 0 {
		delete(fs.openFiles, d.file.slot)
	}
}

// FileInfo describes an open file.
type FileInfo struct {
	Name string
	Size uint32
}

// Stat returns the name and current size of the file behind fd.
func (fs *FileSystem) Stat(fd FD) (FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	d, err := fs.desc(fd)
	if err != nil {
		return FileInfo{}, err
	}
	e, err := fs.dirEntryAt(d.file.slot)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Name: e.Name(), Size: e.Size()}, nil
}

// desc resolves a descriptor handle. Callers hold fs.mu.
func (fs *FileSystem) desc(fd FD) (*descriptor, error) {
	if fd < 0 || int(fd) >= len(fs.descs) || fs.descs[fd] == nil {
		return nil, ErrBadDescriptor
	}
	return fs.descs[fd], nil
}
