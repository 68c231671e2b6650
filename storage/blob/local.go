package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/poiesic/docvault/storage"
)

// LocalStore keeps blobs as files under a root directory.
type LocalStore struct {
	root string
}

var _ storage.BlobStore = (*LocalStore)(nil)

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty root", storage.ErrInvalidLocation)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &LocalStore{root: root}, nil
}

// Root returns the directory blobs are written to.
func (s *LocalStore) Root() string {
	return s.root
}

// Put writes to a temporary file and renames it into place, so readers never
// observe a partial blob.
func (s *LocalStore) Put(ctx context.Context, location string, r io.Reader, size int64, contentType string) error {
	if err := checkLocation(location); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.root, ".put-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return err
	}
	if size >= 0 && written != size {
		tmp.Close()
		return fmt.Errorf("short write for %s: %d of %d bytes", location, written, size)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(s.root, location))
}

// Open returns the blob at location.
func (s *LocalStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := checkLocation(location); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.root, location))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, location)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes the blob at location.
func (s *LocalStore) Delete(ctx context.Context, location string) error {
	if err := checkLocation(location); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.root, location))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
