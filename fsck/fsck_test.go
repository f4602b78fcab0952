package fsck

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sharkfs"
	"github.com/hupe1980/sharkfs/internal/mmap"
	"github.com/hupe1980/sharkfs/layout"
)

// buildImage formats a one-page image, hands it to mutate, unmounts it
// and returns the raw bytes. One page is 8 blocks on common systems,
// small enough to reason about exact block placement: the free list is
// 1..7 in order, so the first allocation takes block 1, the next block
// 2, and so on.
func buildImage(t *testing.T, pages int64, mutate func(fs *sharkfs.FileSystem)) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	fs, err := sharkfs.Format(path, pages*int64(mmap.PageSize()))
	require.NoError(t, err)
	if mutate != nil {
		mutate(fs)
	}
	require.NoError(t, fs.Unmount())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func createFile(t *testing.T, fs *sharkfs.FileSystem, name string, size int) {
	t.Helper()
	fd, err := fs.Open(name)
	require.NoError(t, err)
	if size > 0 {
		_, err = fs.Write(fd, bytes.Repeat([]byte{0x5A}, size))
		require.NoError(t, err)
	}
	fs.Close(fd)
}

func findingCodes(r *Report) []string {
	codes := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		codes = append(codes, f.Code)
	}
	return codes
}

// Block header field offsets within the raw image.
func blockOff(id layout.BlockID) int { return int(id) * layout.BlockSize }

func setNext(data []byte, id, next layout.BlockID) {
	binary.LittleEndian.PutUint32(data[blockOff(id)+8:], next)
}

func entryOff(slot int) int { return (slot + 1) * layout.DirEntrySize }

func TestCheck_CleanAfterChurn(t *testing.T) {
	data := buildImage(t, 4, func(fs *sharkfs.FileSystem) {
		createFile(t, fs, "a", 0)
		createFile(t, fs, "b", 700)
		createFile(t, fs, "c", 2600)
		require.NoError(t, fs.Remove("b"))
		createFile(t, fs, "d", 1200)
		require.NoError(t, fs.Rename("c", "e"))
	})

	r, err := CheckBytes(data)
	require.NoError(t, err)
	assert.True(t, r.Clean(), "findings: %v", r.Findings)
	assert.Equal(t, 3, r.Files)

	// Every non-superblock block is either free or owned by a file.
	used := uint32(1 + 3 + 6) // a, d, e
	assert.Equal(t, r.NBlocks-1-used, r.FreeBlocks)
}

func TestCheck_FreshImageIsClean(t *testing.T) {
	data := buildImage(t, 1, nil)

	r, err := CheckBytes(data)
	require.NoError(t, err)
	assert.True(t, r.Clean())
	assert.Equal(t, 0, r.Files)
	assert.Equal(t, r.NBlocks-1, r.FreeBlocks)
}

func TestCheck_BadMagic(t *testing.T) {
	data := buildImage(t, 1, nil)
	data[0] ^= 0xFF

	r, err := CheckBytes(data)
	require.NoError(t, err)
	require.Len(t, r.Findings, 1)
	assert.Equal(t, "bad-magic", r.Findings[0].Code)
}

func TestCheck_DeclaredSizeMismatch(t *testing.T) {
	data := buildImage(t, 1, nil)
	binary.LittleEndian.PutUint32(data[8:12], 999)

	r, err := CheckBytes(data)
	require.NoError(t, err)
	require.Len(t, r.Findings, 1)
	assert.Equal(t, "size-mismatch", r.Findings[0].Code)
}

func TestCheck_CrossLinkedFiles(t *testing.T) {
	data := buildImage(t, 1, func(fs *sharkfs.FileSystem) {
		createFile(t, fs, "a", 0) // block 1
		createFile(t, fs, "b", 0) // block 2
	})

	// Point a's chain into b's block. Walking a claims blocks 1 and 2;
	// walking b then finds its head already taken.
	setNext(data, 1, 2)

	r, err := CheckBytes(data)
	require.NoError(t, err)
	assert.Contains(t, findingCodes(r), "cross-list")
	for _, f := range r.Findings {
		if f.Code == "cross-list" {
			assert.Equal(t, layout.BlockID(2), f.Block)
			assert.Contains(t, f.Detail, `also part of file "a"`)
		}
	}
}

func TestCheck_CycleInChain(t *testing.T) {
	data := buildImage(t, 1, func(fs *sharkfs.FileSystem) {
		createFile(t, fs, "loop", 600) // blocks 1 -> 2
	})
	setNext(data, 2, 1)

	r, err := CheckBytes(data)
	require.NoError(t, err)
	assert.Contains(t, findingCodes(r), "cycle")
}

func TestCheck_OrphanBlock(t *testing.T) {
	data := buildImage(t, 1, func(fs *sharkfs.FileSystem) {
		createFile(t, fs, "gone", 0) // block 1
	})

	// Wipe the directory entry; block 1 stays tagged as file data but
	// nothing reaches it.
	binary.LittleEndian.PutUint32(data[entryOff(0):], 0)

	r, err := CheckBytes(data)
	require.NoError(t, err)
	require.Len(t, r.Findings, 1)
	assert.Equal(t, "orphan", r.Findings[0].Code)
	assert.Equal(t, layout.BlockID(1), r.Findings[0].Block)
	assert.Equal(t, 0, r.Files)
}

func TestCheck_ChainLengthMismatch(t *testing.T) {
	data := buildImage(t, 1, func(fs *sharkfs.FileSystem) {
		createFile(t, fs, "f", 600) // 2 blocks
	})

	// Size says one block, the chain holds two.
	binary.LittleEndian.PutUint32(data[entryOff(0)+4:], 100)

	r, err := CheckBytes(data)
	require.NoError(t, err)
	require.Len(t, r.Findings, 1)
	assert.Equal(t, "chain-length", r.Findings[0].Code)
}

func TestCheck_BadTagInFileChain(t *testing.T) {
	data := buildImage(t, 1, func(fs *sharkfs.FileSystem) {
		createFile(t, fs, "f", 0) // block 1
	})
	copy(data[blockOff(1):], layout.TagFree[:])

	r, err := CheckBytes(data)
	require.NoError(t, err)
	assert.Contains(t, findingCodes(r), "bad-tag")
}

func TestCheck_BadBackLink(t *testing.T) {
	data := buildImage(t, 1, func(fs *sharkfs.FileSystem) {
		createFile(t, fs, "f", 600) // blocks 1 -> 2
	})
	binary.LittleEndian.PutUint32(data[blockOff(2)+4:], 7)

	r, err := CheckBytes(data)
	require.NoError(t, err)
	assert.Contains(t, findingCodes(r), "bad-backlink")
}

func TestCheck_ChainLeavesImage(t *testing.T) {
	data := buildImage(t, 1, func(fs *sharkfs.FileSystem) {
		createFile(t, fs, "f", 0)
	})
	binary.LittleEndian.PutUint32(data[entryOff(0):], 100)

	r, err := CheckBytes(data)
	require.NoError(t, err)
	codes := findingCodes(r)
	assert.Contains(t, codes, "out-of-range")
	// The file's real block is now unreachable.
	assert.Contains(t, codes, "orphan")
}

func TestCheck_BadNames(t *testing.T) {
	data := buildImage(t, 1, func(fs *sharkfs.FileSystem) {
		createFile(t, fs, "ok-name", 0)
	})

	nameOff := entryOff(0) + 8
	for i := 0; i < layout.NameSize; i++ {
		data[nameOff+i] = 'A'
	}

	r, err := CheckBytes(data)
	require.NoError(t, err)
	require.Len(t, r.Findings, 1)
	assert.Equal(t, "bad-name", r.Findings[0].Code)
	assert.Contains(t, r.Findings[0].Detail, "not NUL-terminated")
}

func TestCheck_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	fs, err := sharkfs.Format(path, int64(mmap.PageSize()))
	require.NoError(t, err)
	createFile(t, fs, "hello", 42)
	require.NoError(t, fs.Unmount())

	r, err := Check(path)
	require.NoError(t, err)
	assert.True(t, r.Clean())
	assert.Equal(t, path, r.Path)
	assert.Equal(t, 1, r.Files)
}

func TestReport_Serialization(t *testing.T) {
	data := buildImage(t, 1, func(fs *sharkfs.FileSystem) {
		createFile(t, fs, "f", 0)
	})
	copy(data[blockOff(1):], layout.TagFree[:])

	r, err := CheckBytes(data)
	require.NoError(t, err)
	require.False(t, r.Clean())

	var buf bytes.Buffer
	require.NoError(t, r.WriteJSON(&buf))
	assert.Contains(t, buf.String(), `"bad-tag"`)

	buf.Reset()
	require.NoError(t, r.WriteText(&buf))
	assert.Contains(t, buf.String(), "finding(s)")
}
