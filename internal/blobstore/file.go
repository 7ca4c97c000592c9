package blobstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/arcfs/realm/internal/contentkey"
)

// File implements Store on the local filesystem: one file per key, placed in
// a subdirectory named by the key's first two hex characters. That first
// byte is the key's size-class flag, so keys spread over at most five
// subdirectories, each holding every key of its size class. Bodies are
// zstd-compressed at rest; the content key is always derived from the
// uncompressed bytes, so compression is purely a storage-layer detail the
// codec and tree engine never see.
type File struct {
	root string
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// NewFile creates (if needed) root and returns a filesystem-backed Store
// rooted there.
func NewFile(root string) (*File, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create root: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("blobstore: zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("blobstore: zstd reader: %w", err)
	}
	return &File{root: root, enc: enc, dec: dec}, nil
}

// Close releases the File store's reusable zstd codec resources.
func (f *File) Close() {
	f.enc.Close()
	f.dec.Close()
}

func (f *File) path(key contentkey.Key) string {
	s := key.String()
	return filepath.Join(f.root, s[:2], s[2:])
}

func (f *File) Put(key contentkey.Key, body []byte) error {
	path := f.path(key)
	if _, err := os.Stat(path); err == nil {
		// Content-addressed: an existing file under this key already has
		// these exact bytes, so the write is a no-op.
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("blobstore: create shard dir: %w", err)
	}

	compressed := f.enc.EncodeAll(body, nil)

	tmp := path + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("blobstore: create temp file: %w", err)
	}
	_, writeErr := fh.Write(compressed)
	closeErr := fh.Close()
	if writeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("blobstore: write: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("blobstore: close: %w", closeErr)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("blobstore: rename into place: %w", err)
	}
	return nil
}

func (f *File) Get(key contentkey.Key) ([]byte, error) {
	fh, err := os.Open(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blobstore: open: %w", err)
	}
	defer fh.Close()

	compressed, err := io.ReadAll(fh)
	if err != nil {
		return nil, fmt.Errorf("blobstore: read: %w", err)
	}
	body, err := f.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("blobstore: zstd decode: %w", err)
	}
	return body, nil
}

func (f *File) Del(key contentkey.Key) error {
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blobstore: delete: %w", err)
	}
	return nil
}

func (f *File) Has(key contentkey.Key) (bool, error) {
	_, err := os.Stat(f.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("blobstore: stat: %w", err)
}
