package sharkfs

import (
	"fmt"
	"sync"

	"github.com/hupe1980/sharkfs/internal/mmap"
	"github.com/hupe1980/sharkfs/layout"
)

// FileSystem is the engine for one mounted disk image. It owns the
// shared mapping, the open-file table and the descriptor table.
//
// All operations are serialized by an internal lock; allocation,
// directory mutation and refcounting are one critical region.
type FileSystem struct {
	mu      sync.Mutex
	mapping *mmap.Mapping
	img     *layout.Image
	path    string

	// openFiles has one entry per unique open file, keyed by
	// directory slot; descs is the fixed-capacity descriptor table,
	// nil entries are free.
	openFiles map[int]*openFile
	descs     []*descriptor

	// gen counts directory mutations; listing tokens pin it.
	gen uint64

	logger  *Logger
	metrics MetricsCollector
}

// Format creates or truncates the image file at path with the given
// size in bytes, writes a fresh superblock and free list, and returns
// the mounted FileSystem. The previous contents of an existing file
// may be lost even if Format fails.
//
// size must be a positive multiple of the system page size and at
// most layout.MaxDiskSize.
func Format(path string, size int64, optFns ...Option) (*FileSystem, error) {
	if size <= 0 || size%int64(mmap.PageSize()) != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSize, size)
	}
	if uint64(size) > layout.MaxDiskSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrDiskTooBig, size)
	}

	m, err := mmap.Create(path, size)
	if err != nil {
		return nil, fmt.Errorf("create image %s: %w", path, err)
	}

	fs, err := newFileSystem(path, m, optFns)
	if err != nil {
		_ = m.Close()
		return nil, err
	}

	// Create truncated the file, so every byte is already zero: the
	// directory entries and next_rootdir need no initialization.
	super := fs.img.Super()
	super.SetMagic()
	super.SetNBlocks(fs.img.NumBlocks())
	if fs.img.NumBlocks() > 1 {
		super.SetFreeList(1)
	}
	for id := layout.BlockID(1); id < fs.img.NumBlocks(); id++ {
		h, err := fs.img.Header(id)
		if err != nil {
			_ = m.Close()
			return nil, corrupt(err)
		}
		h.SetType(layout.TagFree)
		h.SetPrev(id - 1)
		if id+1 == fs.img.NumBlocks() {
			h.SetNext(0)
		} else {
			h.SetNext(id + 1)
		}
	}

	fs.logger.LogMount(path, fs.img.NumBlocks(), true)
	return fs, nil
}

// Mount activates an existing image without altering its contents.
func Mount(path string, optFns ...Option) (*FileSystem, error) {
	m, err := mmap.OpenRW(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}

	size := int64(m.Size())
	if size%int64(mmap.PageSize()) != 0 {
		_ = m.Close()
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSize, size)
	}
	if uint64(size) > layout.MaxDiskSize {
		_ = m.Close()
		return nil, fmt.Errorf("%w: %d bytes", ErrDiskTooBig, size)
	}

	fs, err := newFileSystem(path, m, optFns)
	if err != nil {
		_ = m.Close()
		return nil, err
	}

	super := fs.img.Super()
	if !super.MagicOK() {
		_ = m.Close()
		return nil, fmt.Errorf("%w: bad magic in %s", ErrNotSFS, path)
	}
	if n := super.NBlocks(); uint64(n)*layout.BlockSize != uint64(size) {
		_ = m.Close()
		return nil, fmt.Errorf("%w: superblock declares %d blocks, image has %d",
			ErrNotSFS, n, size/layout.BlockSize)
	}

	fs.logger.LogMount(path, fs.img.NumBlocks(), false)
	return fs, nil
}

func newFileSystem(path string, m *mmap.Mapping, optFns []Option) (*FileSystem, error) {
	o := applyOptions(optFns)

	img, err := layout.NewImage(m.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSFS, err)
	}
	_ = m.Advise(mmap.AccessRandom)

	return &FileSystem{
		mapping:   m,
		img:       img,
		path:      path,
		openFiles: make(map[int]*openFile),
		descs:     make([]*descriptor, o.maxOpenFiles),
		logger:    o.logger,
		metrics:   o.metrics,
	}, nil
}

// Unmount flushes and deactivates the image. It fails with ErrBusy
// while descriptors are open and changes nothing in that case. A flush
// failure is reported, but the image is deactivated anyway.
//
// Unmounting an already-unmounted FileSystem is a no-op success.
func (fs *FileSystem) Unmount() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.mapping == nil {
		return nil
	}
	for _, d := range fs.descs {
		if d != nil {
			return fmt.Errorf("%w: descriptors still open", ErrBusy)
		}
	}

	syncErr := fs.mapping.Sync()
	closeErr := fs.mapping.Close()
	fs.mapping = nil
	fs.img = nil
	fs.openFiles = nil

	err := syncErr
	if err == nil {
		err = closeErr
	}
	if err != nil {
		err = fmt.Errorf("flush image %s: %w", fs.path, err)
	}
	fs.logger.LogUnmount(fs.path, err)
	return err
}

// Path returns the path of the image file backing this FileSystem.
func (fs *FileSystem) Path() string { return fs.path }

// mounted reports whether the image is still active. Callers hold fs.mu.
func (fs *FileSystem) mounted() bool { return fs.img != nil }
