// Package compression picks a stream codec from a file name suffix so that
// inventories and mapping files can be stored compressed.
package compression

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Codec identifies a stream compression format
type Codec string

const (
	None Codec = ""
	Gzip Codec = "gzip"
	Zstd Codec = "zstd"
)

// ForPath returns the codec implied by the file name suffix (.gz or .zst)
func ForPath(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	default:
		return None
	}
}

// TrimExt returns path without its compression suffix, so the inner format can be
// detected from what remains (mappings.yaml.zst -> mappings.yaml)
func TrimExt(path string) string {
	if ForPath(path) == None {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// NewReader wraps r in a decompressor for codec
func NewReader(codec Codec, r io.Reader) (io.ReadCloser, error) {
	switch codec {
	case Gzip:
		return gzip.NewReader(r)
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return io.NopCloser(r), nil
	}
}

// NewWriter wraps w in a compressor for codec. Closing the returned writer
// flushes the compressor but does not close w.
func NewWriter(codec Codec, w io.Writer) (io.WriteCloser, error) {
	switch codec {
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		return zstd.NewWriter(w)
	default:
		return nopWriteCloser{w}, nil
	}
}

// ReadFile reads path, decompressing it according to its suffix
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r, err := NewReader(ForPath(path), f)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

// WriteFile writes data to path, compressing it according to its suffix
func WriteFile(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	w, err := NewWriter(ForPath(path), f)
	if err != nil {
		_ = f.Close()
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		_ = f.Close()
		return err
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
