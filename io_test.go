package sharkfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWrite_RoundTrip(t *testing.T) {
	// Sizes straddling block payload boundaries.
	for _, size := range []int{1, 499, 500, 501, 1499, 1500, 1501, 4000} {
		fs := newTestFS(t, 4)
		payload := pattern(size, byte(size))

		fd, err := fs.Open("blob")
		require.NoError(t, err)

		n, err := fs.Write(fd, payload)
		require.NoError(t, err)
		require.Equal(t, size, n)

		pos, err := fs.Seek(fd, -int64(size))
		require.NoError(t, err)
		require.Equal(t, int64(0), pos)

		got := make([]byte, size)
		n, err = fs.Read(fd, got)
		require.NoError(t, err)
		assert.Equal(t, size, n)
		assert.Equal(t, payload, got, "size %d", size)

		fs.Close(fd)
	}
}

func TestRead_AtEndOfFile(t *testing.T) {
	fs := newTestFS(t, 2)

	fd, err := fs.Open("short")
	require.NoError(t, err)
	defer fs.Close(fd)

	// Empty file: nothing to read.
	buf := make([]byte, 16)
	n, err := fs.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = fs.Write(fd, pattern(100, 3))
	require.NoError(t, err)

	// Cursor at end: still nothing.
	n, err = fs.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Short read when the buffer reaches past end of file.
	_, err = fs.Seek(fd, -40)
	require.NoError(t, err)
	n, err = fs.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	n, err = fs.Read(fd, make([]byte, 100))
	require.NoError(t, err)
	assert.Equal(t, 24, n)
}

func TestWrite_Empty(t *testing.T) {
	fs := newTestFS(t, 1)

	fd, err := fs.Open("f")
	require.NoError(t, err)
	defer fs.Close(fd)

	n, err := fs.Write(fd, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	fi, err := fs.Stat(fd)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), fi.Size)
}

func TestWrite_AllOrNothingWhenFull(t *testing.T) {
	fs := newTestFS(t, 1) // 8 blocks: superblock + 7 usable

	fd, err := fs.Open("f") // takes 1 block
	require.NoError(t, err)
	defer fs.Close(fd)

	free, err := fs.FreeBlocks()
	require.NoError(t, err)
	require.Equal(t, blocksPerPage()-2, free)

	// Needs one block more than the image has left. Nothing may
	// change: no partial data, no size update, no blocks consumed.
	tooBig := int(free+2) * 500
	_, err = fs.Write(fd, pattern(tooBig, 1))
	assert.ErrorIs(t, err, ErrNoSpace)

	fi, err := fs.Stat(fd)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), fi.Size)

	after, err := fs.FreeBlocks()
	require.NoError(t, err)
	assert.Equal(t, free, after)

	pos, err := fs.GetPos(fd)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)

	// A write that fits still succeeds afterwards.
	fits := int(free) * 500
	n, err := fs.Write(fd, pattern(fits, 2))
	require.NoError(t, err)
	assert.Equal(t, fits, n)

	after, err = fs.FreeBlocks()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), after)
}

func TestWrite_OverwriteKeepsSize(t *testing.T) {
	fs := newTestFS(t, 2)

	fd, err := fs.Open("f")
	require.NoError(t, err)
	defer fs.Close(fd)

	first := pattern(1200, 5)
	_, err = fs.Write(fd, first)
	require.NoError(t, err)

	_, err = fs.Seek(fd, -1200)
	require.NoError(t, err)
	second := pattern(600, 9)
	_, err = fs.Write(fd, second)
	require.NoError(t, err)

	fi, err := fs.Stat(fd)
	require.NoError(t, err)
	assert.Equal(t, uint32(1200), fi.Size)

	_, err = fs.Seek(fd, -600)
	require.NoError(t, err)
	got := make([]byte, 1200)
	n, err := fs.Read(fd, got)
	require.NoError(t, err)
	require.Equal(t, 1200, n)
	assert.Equal(t, second, got[:600])
	assert.Equal(t, first[600:], got[600:])
}

func TestWrite_ExtendFromMidFile(t *testing.T) {
	fs := newTestFS(t, 4)

	fd, err := fs.Open("f")
	require.NoError(t, err)
	defer fs.Close(fd)

	_, err = fs.Write(fd, pattern(800, 1))
	require.NoError(t, err)

	// Rewind into the first block and write past the old end: the
	// overlap is overwritten and the tail grows the file.
	_, err = fs.Seek(fd, -500)
	require.NoError(t, err)
	tail := pattern(1700, 2)
	_, err = fs.Write(fd, tail)
	require.NoError(t, err)

	fi, err := fs.Stat(fd)
	require.NoError(t, err)
	assert.Equal(t, uint32(2000), fi.Size)

	_, err = fs.Seek(fd, -2000)
	require.NoError(t, err)
	got := make([]byte, 2000)
	_, err = fs.Read(fd, got)
	require.NoError(t, err)
	assert.Equal(t, pattern(800, 1)[:300], got[:300])
	assert.Equal(t, tail, got[300:])
}

func TestSeek_ClampsAndReports(t *testing.T) {
	fs := newTestFS(t, 4)

	fd, err := fs.Open("f")
	require.NoError(t, err)
	defer fs.Close(fd)

	_, err = fs.Write(fd, pattern(2500, 4))
	require.NoError(t, err)

	pos, err := fs.Seek(fd, -2000)
	require.NoError(t, err)
	assert.Equal(t, int64(500), pos)

	got, err := fs.GetPos(fd)
	require.NoError(t, err)
	assert.Equal(t, int64(500), got)

	// Past either end clamps, never errors.
	pos, err = fs.Seek(fd, 1<<40)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), pos)

	pos, err = fs.Seek(fd, -1<<40)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
}

func TestSeek_ReadsFromNewPosition(t *testing.T) {
	fs := newTestFS(t, 4)
	payload := pattern(2500, 8)

	fd, err := fs.Open("f")
	require.NoError(t, err)
	defer fs.Close(fd)

	_, err = fs.Write(fd, payload)
	require.NoError(t, err)

	for _, pos := range []int64{0, 1, 499, 500, 501, 1000, 2400} {
		_, err = fs.Seek(fd, -1 << 40)
		require.NoError(t, err)
		_, err = fs.Seek(fd, pos)
		require.NoError(t, err)

		got := make([]byte, 64)
		n, err := fs.Read(fd, got)
		require.NoError(t, err)
		want := payload[pos:min(int(pos)+64, len(payload))]
		assert.Equal(t, want, got[:n], "pos %d", pos)
	}
}

func TestSeek_IndependentCursors(t *testing.T) {
	fs := newTestFS(t, 4)

	fd1, err := fs.Open("f")
	require.NoError(t, err)
	defer fs.Close(fd1)
	fd2, err := fs.Open("f")
	require.NoError(t, err)
	defer fs.Close(fd2)

	payload := pattern(1000, 6)
	_, err = fs.Write(fd1, payload)
	require.NoError(t, err)

	// fd2 still sits at 0 and sees what fd1 wrote.
	pos, err := fs.GetPos(fd2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)

	got := make([]byte, 1000)
	n, err := fs.Read(fd2, got)
	require.NoError(t, err)
	assert.Equal(t, 1000, n)
	assert.Equal(t, payload, got)
}

func TestTruncate_ShrinkFreesBlocks(t *testing.T) {
	fs := newTestFS(t, 2)

	fd, err := fs.Open("f")
	require.NoError(t, err)
	defer fs.Close(fd)

	_, err = fs.Write(fd, pattern(2500, 1)) // 5 blocks
	require.NoError(t, err)

	before, err := fs.FreeBlocks()
	require.NoError(t, err)

	require.NoError(t, fs.Truncate(fd, 400)) // down to 1 block

	after, err := fs.FreeBlocks()
	require.NoError(t, err)
	assert.Equal(t, before+4, after)

	fi, err := fs.Stat(fd)
	require.NoError(t, err)
	assert.Equal(t, uint32(400), fi.Size)

	// Cursor was at 2500, past the new end; it is pulled back.
	pos, err := fs.GetPos(fd)
	require.NoError(t, err)
	assert.Equal(t, int64(400), pos)

	// The kept prefix is intact.
	_, err = fs.Seek(fd, -400)
	require.NoError(t, err)
	got := make([]byte, 400)
	_, err = fs.Read(fd, got)
	require.NoError(t, err)
	assert.Equal(t, pattern(2500, 1)[:400], got)
}

func TestTruncate_GrowReadsZeros(t *testing.T) {
	fs := newTestFS(t, 2)

	fd, err := fs.Open("f")
	require.NoError(t, err)
	defer fs.Close(fd)

	head := pattern(100, 0xAB)
	_, err = fs.Write(fd, head)
	require.NoError(t, err)

	require.NoError(t, fs.Truncate(fd, 1200))

	_, err = fs.Seek(fd, -1<<40)
	require.NoError(t, err)
	got := make([]byte, 1200)
	n, err := fs.Read(fd, got)
	require.NoError(t, err)
	require.Equal(t, 1200, n)
	assert.Equal(t, head, got[:100])
	assert.Equal(t, make([]byte, 1100), got[100:])
}

func TestTruncate_BusyWithSecondDescriptor(t *testing.T) {
	fs := newTestFS(t, 1)

	fd1, err := fs.Open("f")
	require.NoError(t, err)
	defer fs.Close(fd1)
	fd2, err := fs.Open("f")
	require.NoError(t, err)

	assert.ErrorIs(t, fs.Truncate(fd1, 0), ErrBusy)

	fs.Close(fd2)
	assert.NoError(t, fs.Truncate(fd1, 0))
}

func TestIO_BadDescriptor(t *testing.T) {
	fs := newTestFS(t, 1)

	buf := make([]byte, 8)
	_, err := fs.Read(FD(-1), buf)
	assert.ErrorIs(t, err, ErrBadDescriptor)
	_, err = fs.Write(FD(99), buf)
	assert.ErrorIs(t, err, ErrBadDescriptor)
	_, err = fs.Seek(FD(0), 0)
	assert.ErrorIs(t, err, ErrBadDescriptor)
	_, err = fs.GetPos(FD(0))
	assert.ErrorIs(t, err, ErrBadDescriptor)

	fd, err := fs.Open("f")
	require.NoError(t, err)
	fs.Close(fd)
	_, err = fs.Read(fd, buf)
	assert.ErrorIs(t, err, ErrBadDescriptor)
}

func TestFileSize_Accounting(t *testing.T) {
	fs := newTestFS(t, 4)

	fd, err := fs.Open("f")
	require.NoError(t, err)
	defer fs.Close(fd)

	sizes := []int{0, 1, 500, 999, 1000}
	total := uint32(0)
	for _, s := range sizes {
		if s > 0 {
			chunk := pattern(s-int(total), 1)
			_, err = fs.Write(fd, chunk)
			require.NoError(t, err)
			total = uint32(s)
		}
		fi, err := fs.Stat(fd)
		require.NoError(t, err)
		assert.Equal(t, uint32(s), fi.Size)
	}
}
