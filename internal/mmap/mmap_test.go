package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapping_OpenReadClose(t *testing.T) {
	content := []byte("Hello, Mapping!")
	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, len(content), m.Size())
	assert.Equal(t, content, m.Bytes())
	assert.False(t, m.Writable())

	// Read-only mappings refuse Sync.
	assert.ErrorIs(t, m.Sync(), ErrReadOnly)
}

func TestMapping_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestMapping_CreateWriteSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img")
	size := int64(2 * PageSize())

	m, err := Create(path, size)
	require.NoError(t, err)
	assert.True(t, m.Writable())
	require.Equal(t, int(size), m.Size())

	copy(m.Bytes(), "written through the mapping")
	require.NoError(t, m.Sync())
	require.NoError(t, m.Close())

	// The store is visible through plain file I/O.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("written through the mapping"), raw[:27])
}

func TestMapping_OpenRW(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img")
	m, err := Create(path, int64(PageSize()))
	require.NoError(t, err)
	m.Bytes()[0] = 0x42
	require.NoError(t, m.Close())

	rw, err := OpenRW(path)
	require.NoError(t, err)
	defer rw.Close()

	assert.Equal(t, byte(0x42), rw.Bytes()[0])
	rw.Bytes()[1] = 0x43
	require.NoError(t, rw.Sync())
}

func TestMapping_CreateInvalidSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img")
	_, err := Create(path, 0)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = Create(path, -5)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestMapping_CloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img")
	m, err := Create(path, int64(PageSize()))
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.Nil(t, m.Bytes())
	assert.ErrorIs(t, m.Sync(), ErrClosed)
	assert.ErrorIs(t, m.Advise(AccessRandom), ErrClosed)
}

func TestMapping_Advise(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img")
	m, err := Create(path, int64(PageSize()))
	require.NoError(t, err)
	defer m.Close()

	assert.NoError(t, m.Advise(AccessDefault))
	assert.NoError(t, m.Advise(AccessSequential))
	assert.NoError(t, m.Advise(AccessRandom))
}
