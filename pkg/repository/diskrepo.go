package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
)

const (
	// DefaultBlobsPath is the base directory used when no explicit path
	// is configured for a storage node's local blob store.
	DefaultBlobsPath = "/var/lib/menmos/blobs"
)

// ErrNotFound is returned by DiskRepository when the requested blob
// does not exist on disk.
var ErrNotFound = errors.New("repository: blob not found")

// DiskRepository is the default BlobRepository: one file per blob id
// under a base directory, grounded on the teacher's local volume
// driver idiom.
type DiskRepository struct {
	baseDir string
}

// NewDiskRepository returns a DiskRepository rooted at baseDir,
// creating it if necessary. An empty baseDir falls back to
// DefaultBlobsPath.
func NewDiskRepository(baseDir string) (*DiskRepository, error) {
	if baseDir == "" {
		baseDir = DefaultBlobsPath
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("repository: create blobs directory: %w", err)
	}

	return &DiskRepository{baseDir: baseDir}, nil
}

func (d *DiskRepository) path(id string) string {
	return filepath.Join(d.baseDir, id)
}

// Save writes a new blob of the given size from r, replacing any
// existing content under id.
func (d *DiskRepository) Save(ctx context.Context, id string, size int64, r io.Reader) error {
	f, err := os.Create(d.path(id))
	if err != nil {
		return fmt.Errorf("repository: create blob %q: %w", id, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("repository: write blob %q: %w", id, err)
	}
	return nil
}

// Write applies a partial update of p at offset to an existing blob.
func (d *DiskRepository) Write(ctx context.Context, id string, offset int64, p []byte) (int64, error) {
	f, err := os.OpenFile(d.path(id), os.O_WRONLY, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("repository: write blob %q: %w", id, ErrNotFound)
		}
		return 0, fmt.Errorf("repository: open blob %q: %w", id, err)
	}
	defer f.Close()

	n, err := f.WriteAt(p, offset)
	if err != nil {
		return int64(n), fmt.Errorf("repository: write blob %q at offset %d: %w", id, offset, err)
	}
	return int64(n), nil
}

// Get opens a blob for reading, returning its size alongside the
// stream. The caller must close the returned ReadCloser.
func (d *DiskRepository) Get(ctx context.Context, id string) (io.ReadCloser, int64, error) {
	f, err := os.Open(d.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("repository: get blob %q: %w", id, ErrNotFound)
		}
		return nil, 0, fmt.Errorf("repository: open blob %q: %w", id, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("repository: stat blob %q: %w", id, err)
	}

	return f, info.Size(), nil
}

// Delete removes a blob. Deleting an already-absent blob is not an
// error.
func (d *DiskRepository) Delete(ctx context.Context, id string) error {
	if err := os.Remove(d.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("repository: delete blob %q: %w", id, err)
	}
	return nil
}

// Walk yields the id of every blob currently stored on disk, for the
// storage node's rebuild walk (supplements a feature the distilled
// spec dropped; see original_source's amphora rebuild.rs).
func (d *DiskRepository) Walk(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		entries, err := os.ReadDir(d.baseDir)
		if err != nil {
			return
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			if !yield(entry.Name()) {
				return
			}
		}
	}
}

// Fsync forces a blob's bytes to stable storage.
func (d *DiskRepository) Fsync(ctx context.Context, id string) error {
	f, err := os.OpenFile(d.path(id), os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("repository: fsync blob %q: %w", id, ErrNotFound)
		}
		return fmt.Errorf("repository: open blob %q: %w", id, err)
	}
	defer f.Close()

	if err := f.Sync(); err != nil {
		return fmt.Errorf("repository: fsync blob %q: %w", id, err)
	}
	return nil
}
