// SPDX-License-Identifier: MPL-2.0

package tarsink

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

const (
	// CompressionNone writes the tar stream unchanged.
	CompressionNone Compression = "none"
	// CompressionZstd selects zstd, chosen by the .zst and .tzst extensions.
	CompressionZstd Compression = "zstd"
	// CompressionLZ4 selects lz4 frames, chosen by .lz4.
	CompressionLZ4 Compression = "lz4"
	// CompressionGzip selects gzip, chosen by .gz and .tgz.
	CompressionGzip Compression = "gzip"
)

type (
	// Compression names a stream compressor.
	Compression string

	// Summary describes a written file.
	Summary struct {
		Path        string
		Compression Compression
		// TarBytes is the size of the uncompressed tar stream.
		TarBytes int64
		// FileBytes is the size of the file on disk.
		FileBytes int64
		// Digest is the hex BLAKE3-256 of the uncompressed stream.
		Digest string
	}

	countingWriter struct {
		w io.Writer
		n int64
	}
)

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// CompressionFor picks the compressor from the extension of path.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".tzst":
		return CompressionZstd
	case ".lz4":
		return CompressionLZ4
	case ".gz", ".tgz":
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// Compressor wraps w in the compressor for c. Closing the returned writer
// flushes the compressor but leaves w open.
func Compressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return enc, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionNone:
		return nopCloser{w}, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// File is a compressed tar file being written. Bytes written to it are
// hashed and compressed on the way to disk; nothing is buffered beyond the
// compressor's window. Finish it with exactly one of Commit or Abort.
type File struct {
	path     string
	c        Compression
	f        *os.File
	out      *countingWriter
	zw       io.WriteCloser
	hasher   *blake3.Hasher
	tarBytes int64
	err      error
}

// Create opens path for a tar stream, compressed as its extension selects.
func Create(path string) (*File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	c := CompressionFor(path)
	out := &countingWriter{w: f}
	zw, err := Compressor(out, c)
	if err != nil {
		_ = f.Close()
		return nil, errors.Join(err, removeIfExists(path))
	}
	return &File{path: path, c: c, f: f, out: out, zw: zw, hasher: blake3.New()}, nil
}

// Write implements io.Writer. After the first failure every call returns
// the same error.
func (t *File) Write(p []byte) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	n, err := t.zw.Write(p)
	_, _ = t.hasher.Write(p[:n])
	t.tarBytes += int64(n)
	if err != nil {
		t.err = fmt.Errorf("write tar stream: %w", err)
		return n, t.err
	}
	return n, nil
}

// Commit flushes the compressor, closes the file and summarizes it. The
// file is removed when any write or the flush failed.
func (t *File) Commit() (*Summary, error) {
	err := t.err
	if cerr := t.zw.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("write tar stream: %w", cerr)
	}
	if cerr := t.f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close %s: %w", t.path, cerr)
	}
	if err != nil {
		return nil, errors.Join(err, removeIfExists(t.path))
	}
	return &Summary{
		Path:        t.path,
		Compression: t.c,
		TarBytes:    t.tarBytes,
		FileBytes:   t.out.n,
		Digest:      hex.EncodeToString(t.hasher.Sum(nil)),
	}, nil
}

// Abort closes and removes the file.
func (t *File) Abort() error {
	_ = t.zw.Close()
	_ = t.f.Close()
	return removeIfExists(t.path)
}

// WriteFile writes r to path through the compressor its extension selects.
// A partially written file is removed on error.
func WriteFile(path string, r io.Reader) (*Summary, error) {
	f, err := Create(path)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, r); err != nil {
		if f.err == nil {
			err = fmt.Errorf("read tar stream: %w", err)
		}
		return nil, errors.Join(err, f.Abort())
	}
	return f.Commit()
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
