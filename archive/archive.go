// Package archive packs sharkfs disk images into compressed archive
// files and restores them. Images compress extremely well when mostly
// free, since a formatted image is dominated by zeroed block payloads.
package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the compression algorithm of an archive.
type Codec uint8

const (
	// CodecZstd is the default codec.
	CodecZstd Codec = iota
	// CodecLZ4 trades ratio for speed.
	CodecLZ4
)

func (c Codec) String() string {
	switch c {
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

var (
	// ErrNotArchive is returned when a file lacks the archive
	// signature.
	ErrNotArchive = errors.New("archive: not a sharkfs archive")
	// ErrUnknownCodec is returned for archives written with a codec
	// this build does not know.
	ErrUnknownCodec = errors.New("archive: unknown codec")
	// ErrSizeMismatch is returned when the decompressed payload does
	// not match the size recorded in the archive header.
	ErrSizeMismatch = errors.New("archive: decompressed size mismatch")
)

// The header is the signature, one codec byte, one reserved byte and
// the uncompressed image size.
var signature = [6]byte{'S', 'F', 'S', 'A', 'R', 0x01}

const headerSize = len(signature) + 2 + 8

type options struct {
	codec Codec
}

// Option configures packing.
type Option func(*options)

// WithCodec selects the compression codec. The default is CodecZstd.
func WithCodec(c Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// Pack compresses the image at imagePath into a new archive at
// archivePath.
func Pack(imagePath, archivePath string, optFns ...Option) error {
	o := options{codec: CodecZstd}
	for _, fn := range optFns {
		fn(&o)
	}

	src, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("archive: open image: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("archive: stat image: %w", err)
	}

	dst, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("archive: create archive: %w", err)
	}
	defer dst.Close()

	hdr := make([]byte, headerSize)
	copy(hdr, signature[:])
	hdr[6] = byte(o.codec)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(info.Size()))
	if _, err := dst.Write(hdr); err != nil {
		return fmt.Errorf("archive: write header: %w", err)
	}

	cw, err := newCompressor(dst, o.codec)
	if err != nil {
		return err
	}
	if _, err := io.Copy(cw, src); err != nil {
		_ = cw.Close()
		return fmt.Errorf("archive: compress: %w", err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("archive: flush: %w", err)
	}
	return dst.Close()
}

// Unpack restores the image held in the archive at archivePath to
// imagePath, replacing any existing file there.
func Unpack(archivePath, imagePath string) error {
	src, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("archive: open archive: %w", err)
	}
	defer src.Close()

	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(src, hdr); err != nil {
		return fmt.Errorf("%w: %v", ErrNotArchive, err)
	}
	if [6]byte(hdr[:6]) != signature {
		return ErrNotArchive
	}
	codec := Codec(hdr[6])
	size := binary.LittleEndian.Uint64(hdr[8:16])

	cr, closeReader, err := newDecompressor(src, codec)
	if err != nil {
		return err
	}
	defer closeReader()

	dst, err := os.Create(imagePath)
	if err != nil {
		return fmt.Errorf("archive: create image: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, cr)
	if err != nil {
		return fmt.Errorf("archive: decompress: %w", err)
	}
	if uint64(n) != size {
		return fmt.Errorf("%w: got %d bytes, header says %d", ErrSizeMismatch, n, size)
	}
	return dst.Close()
}

func newCompressor(w io.Writer, codec Codec) (io.WriteCloser, error) {
	switch codec {
	case CodecZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("archive: zstd writer: %w", err)
		}
		return zw, nil
	case CodecLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}
}

func newDecompressor(r io.Reader, codec Codec) (io.Reader, func(), error) {
	switch codec {
	case CodecZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("archive: zstd reader: %w", err)
		}
		return zr, zr.Close, nil
	case CodecLZ4:
		return lz4.NewReader(r), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}
}
