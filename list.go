package sharkfs

import (
	"iter"

	"github.com/hupe1980/sharkfs/layout"
)

// ListToken tracks an incremental directory listing. The zero value
// starts a fresh listing; List resets it again once the listing is
// exhausted. A token is pinned to the directory state it started under:
// if a file is created, removed or renamed while the token is live, the
// next List call fails with ErrStaleToken rather than returning a
// partial or duplicated view.
type ListToken struct {
	next   int
	gen    uint64
	active bool
}

// List returns the next file name of the listing tracked by tok. ok is
// false once every name has been returned, at which point tok is reset
// and may be reused for a new listing.
func (fs *FileSystem) List(tok *ListToken) (name string, ok bool, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.mounted() {
		return "", false, ErrNoMedium
	}
	if tok.active && tok.gen != fs.gen {
		return "", false, ErrStaleToken
	}
	if !tok.active {
		tok.active = true
		tok.gen = fs.gen
		tok.next = 0
	}

	err = fs.forEachDirEntry(func(slot int, e layout.DirEntry) bool {
		if slot < tok.next || e.FirstBlock() == 0 {
			return false
		}
		name = e.Name()
		ok = true
		tok.next = slot + 1
		return true
	})
	if err != nil {
		return "", false, err
	}
	if !ok {
		*tok = ListToken{}
	}
	return name, ok, nil
}

// ListAll returns the names of all files as one consistent snapshot,
// taken under a single lock acquisition.
func (fs *FileSystem) ListAll() ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.mounted() {
		return nil, ErrNoMedium
	}
	var names []string
	err := fs.forEachDirEntry(func(_ int, e layout.DirEntry) bool {
		if e.FirstBlock() != 0 {
			names = append(names, e.Name())
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Names returns an iterator over file names, driven by an incremental
// listing token. The iterator yields a non-nil error and stops if the
// directory changes mid-iteration.
func (fs *FileSystem) Names() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var tok ListToken
		for {
			name, ok, err := fs.List(&tok)
			if err != nil {
				yield("", err)
				return
			}
			if !ok {
				return
			}
			if !yield(name, nil) {
				return
			}
		}
	}
}
